package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame payload.
const MaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned for frames whose declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// ReadFrame reads one frame from r.
// Wire format: [4 bytes LE: payload length][payload].
// Returns the payload bytes (without the length header). A clean EOF before
// the header is returned as io.EOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	payloadLen := binary.LittleEndian.Uint32(header[:])
	if payloadLen > MaxFrameSize {
		return nil, fmt.Errorf("read frame: %d bytes: %w", payloadLen, ErrFrameTooLarge)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes one frame to w.
// Wire format: [4 bytes LE: len(data)][data].
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("write frame: %d bytes: %w", len(data), ErrFrameTooLarge)
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// AppendFrame appends the framed form of data to buf.
func AppendFrame(buf, data []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
