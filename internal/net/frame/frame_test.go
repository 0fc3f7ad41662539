package frame

import "testing"

func TestEncoderReusesBuffer(t *testing.T) {
	enc := NewEncoder()
	first, err := enc.Encode(&Frame{Tick: 1, Live: 3, Outcomes: []Outcome{{Target: 9, Amount: 20, Applied: true}}})
	if err != nil {
		t.Fatal(err)
	}
	firstCopy := append([]byte(nil), first...)

	if _, err := enc.Encode(&Frame{Tick: 2}); err != nil {
		t.Fatal(err)
	}
	f, err := Decode(firstCopy)
	if err != nil {
		t.Fatal(err)
	}
	if f.Tick != 1 || f.Live != 3 || len(f.Outcomes) != 1 || f.Outcomes[0].Target != 9 || !f.Outcomes[0].Applied {
		t.Errorf("decoded = %+v", f)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xc1}); err == nil {
		t.Error("Decode accepted a reserved msgpack byte")
	}
}
