package pcm

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	f := L16Mono16K
	if got := f.BytesInDuration(25 * time.Millisecond); got != 800 {
		t.Errorf("BytesInDuration(25ms) = %d, want 800", got)
	}
	if got := f.Samples(800); got != 400 {
		t.Errorf("Samples(800) = %d, want 400", got)
	}
	if got := f.Duration(32000); got != time.Second {
		t.Errorf("Duration(32000) = %v, want 1s", got)
	}
}

func TestNormalize(t *testing.T) {
	b := Encode([]int16{0, 16384, -32768, 32767})
	x := Normalize(b)
	want := []float64{0, 0.5, -1, 32767.0 / 32768.0}
	for i := range want {
		if math.Abs(x[i]-want[i]) > 1e-12 {
			t.Errorf("x[%d] = %f, want %f", i, x[i], want[i])
		}
	}
	if got := Normalize(append(b, 0x7f)); len(got) != 4 {
		t.Errorf("odd trailing byte: len = %d, want 4", len(got))
	}
}

func TestMeanSquare(t *testing.T) {
	if got := MeanSquare(nil); got != 0 {
		t.Errorf("MeanSquare(nil) = %f", got)
	}
	b := Encode([]int16{10, -10, 20, -20})
	if got := MeanSquare(b); got != 250 {
		t.Errorf("MeanSquare = %f, want 250", got)
	}
}

func TestStereoToMono(t *testing.T) {
	b := Encode([]int16{100, 300, -50, -150})
	got := Int16s(StereoToMono(b))
	if len(got) != 2 || got[0] != 200 || got[1] != -100 {
		t.Errorf("StereoToMono = %v, want [200 -100]", got)
	}
}

func TestReadChunk(t *testing.T) {
	data := make([]byte, 3200+100)
	r := bytes.NewReader(data)
	c, err := L16Mono16K.ReadChunk(r, 100*time.Millisecond)
	if err != nil || len(c) != 3200 {
		t.Fatalf("first chunk: len=%d err=%v", len(c), err)
	}
	c, err = L16Mono16K.ReadChunk(r, 100*time.Millisecond)
	if !errors.Is(err, io.ErrUnexpectedEOF) || len(c) != 100 {
		t.Fatalf("tail chunk: len=%d err=%v", len(c), err)
	}
	_, err = L16Mono16K.ReadChunk(r, 100*time.Millisecond)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFormatForRate(t *testing.T) {
	for _, rate := range []int{16000, 24000, 48000} {
		f, ok := FormatForRate(rate)
		if !ok || f.SampleRate() != rate {
			t.Errorf("FormatForRate(%d) = %v, %v", rate, f, ok)
		}
	}
	if _, ok := FormatForRate(44100); ok {
		t.Error("FormatForRate(44100) should not be supported")
	}
}
