package net

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte{0x02, 1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes()[:2]; got[0] != 6 || got[1] != 0 {
		t.Errorf("expected length header 06 00, got % x", got)
	}
	payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, []byte{0x02, 1, 2, 3}) {
		t.Errorf("unexpected payload % x", payload)
	}
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	for _, hdr := range [][]byte{{0, 0}, {2, 0}, {1, 0}} {
		if _, err := ReadFrame(bytes.NewReader(hdr)); err == nil {
			t.Errorf("header % x: expected error", hdr)
		}
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{10, 0, 1, 2})); err == nil {
		t.Error("expected short payload error")
	}
	if err := WriteFrame(&bytes.Buffer{}, nil); err == nil {
		t.Error("expected error for empty payload")
	}
}
