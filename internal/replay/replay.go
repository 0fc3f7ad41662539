// Package replay records per-tick frames to a file and reads them back.
//
// File layout: the 4-byte magic "HCRP", one framed msgpack Meta record,
// then one framed msgpack frame.Frame per tick. Frames use the same
// length-prefixed framing as the overlay feed.
package replay

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	hnet "github.com/hordecore/server/internal/net"
	"github.com/hordecore/server/internal/net/frame"
	"github.com/vmihailenco/msgpack/v5"
)

var magic = [4]byte{'H', 'C', 'R', 'P'}

// ErrBadMagic is returned when a file is not a replay.
var ErrBadMagic = errors.New("not a replay file")

// Meta describes the run a replay belongs to.
type Meta struct {
	Version    int           `msgpack:"v"`
	ServerName string        `msgpack:"server"`
	Seed       uint64        `msgpack:"seed"`
	TickRate   time.Duration `msgpack:"tick_rate"`
	StartedAt  time.Time     `msgpack:"started_at"`
}

const formatVersion = 1

// Recorder appends frames to a replay file. Game loop only.
type Recorder struct {
	f      *os.File
	w      *bufio.Writer
	enc    *frame.Encoder
	frames uint64
}

// Create truncates path and writes the replay header.
func Create(path string, meta Meta) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create replay %s: %w", path, err)
	}
	r := &Recorder{f: f, w: bufio.NewWriterSize(f, 64<<10), enc: frame.NewEncoder()}

	meta.Version = formatVersion
	raw, err := msgpack.Marshal(&meta)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("encode replay meta: %w", err)
	}
	if _, err := r.w.Write(magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("write replay header: %w", err)
	}
	if err := hnet.WriteFrame(r.w, raw); err != nil {
		f.Close()
		return nil, fmt.Errorf("write replay header: %w", err)
	}
	return r, nil
}

// Record appends one frame.
func (r *Recorder) Record(f *frame.Frame) error {
	raw, err := r.enc.Encode(f)
	if err != nil {
		return err
	}
	if err := hnet.WriteFrame(r.w, raw); err != nil {
		return fmt.Errorf("record tick %d: %w", f.Tick, err)
	}
	r.frames++
	return nil
}

// Frames returns how many frames were recorded.
func (r *Recorder) Frames() uint64 { return r.frames }

// Close flushes buffered frames and closes the file.
func (r *Recorder) Close() error {
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	if flushErr != nil {
		return fmt.Errorf("flush replay: %w", flushErr)
	}
	return closeErr
}

// Reader iterates the frames of a replay.
type Reader struct {
	r    *bufio.Reader
	c    io.Closer
	meta Meta
}

// Open opens a replay file and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay %s: %w", path, err)
	}
	rd, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open replay %s: %w", path, err)
	}
	rd.c = f
	return rd, nil
}

// NewReader reads the replay header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	var got [4]byte
	if _, err := io.ReadFull(br, got[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(got[:], magic[:]) {
		return nil, ErrBadMagic
	}
	raw, err := hnet.ReadFrame(br)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	rd := &Reader{r: br}
	if err := msgpack.Unmarshal(raw, &rd.meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if rd.meta.Version != formatVersion {
		return nil, fmt.Errorf("replay version %d, want %d", rd.meta.Version, formatVersion)
	}
	return rd, nil
}

func (rd *Reader) Meta() Meta { return rd.meta }

// Next returns the next frame, or io.EOF after the last one.
func (rd *Reader) Next() (*frame.Frame, error) {
	raw, err := hnet.ReadFrame(rd.r)
	if err != nil {
		return nil, err
	}
	return frame.Decode(raw)
}

// Close closes the underlying file, if Open created it.
func (rd *Reader) Close() error {
	if rd.c == nil {
		return nil
	}
	return rd.c.Close()
}
