// Package frame defines the per-tick frame shared by the overlay feed and
// replay files, and its msgpack encoding.
package frame

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame summarises one simulation tick.
type Frame struct {
	Tick         uint64    `msgpack:"t"`
	Live         int       `msgpack:"l"`  // hostiles, dead-but-unswept included
	Projectiles  int       `msgpack:"pr"` // live projectiles
	PlayerHealth float32   `msgpack:"hp"`
	PlayerMax    float32   `msgpack:"mhp"`
	Spawned      int       `msgpack:"sp"` // admitted this tick
	Swept        int       `msgpack:"sw"` // removed by this tick's sweep
	Index        uint64    `msgpack:"ix"` // spatial snapshot version
	Over         bool      `msgpack:"o"`
	Outcomes     []Outcome `msgpack:"oc"`
	Dropped      int       `msgpack:"dr"` // outcomes left out of Outcomes
}

// Outcome is one resolved damage event.
type Outcome struct {
	Target  uint64  `msgpack:"tg"`
	Amount  float32 `msgpack:"a"`
	Kind    uint32  `msgpack:"k"`
	Applied bool    `msgpack:"ap"`
	Reason  uint8   `msgpack:"r"`
	Killed  bool    `msgpack:"kd"`
}

// Encoder marshals frames into a reused buffer. Not safe for concurrent use.
type Encoder struct {
	buf bytes.Buffer
	enc *msgpack.Encoder
}

func NewEncoder() *Encoder {
	e := &Encoder{}
	e.enc = msgpack.NewEncoder(&e.buf)
	return e
}

// Encode returns the msgpack form of f. The returned slice is reused by the
// next Encode; callers that keep it must copy.
func (e *Encoder) Encode(f *Frame) ([]byte, error) {
	e.buf.Reset()
	if err := e.enc.Encode(f); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	return e.buf.Bytes(), nil
}

// Decode unmarshals one msgpack frame.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &f, nil
}
