package resampler

import (
	"errors"
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/diarize/pkg/audio/pcm"
)

// Converter turns source PCM into mono PCM at the destination rate.
// It is not safe for concurrent use.
type Converter struct {
	src     Format
	dstRate int

	rs      resampling.Resampler // nil when rates match
	pending []byte               // partial source frame
}

// New creates a Converter from src to mono at dstRate.
func New(src Format, dstRate int) (*Converter, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid target rate %d", dstRate)
	}
	c := &Converter{src: src, dstRate: dstRate}
	if src.SampleRate != dstRate {
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(src.SampleRate),
			OutputRate: float64(dstRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: create %s -> %dHz: %w", src, dstRate, err)
		}
		c.rs = rs
	}
	return c, nil
}

// Passthrough reports whether the source needs no conversion at all.
func (c *Converter) Passthrough() bool {
	return c.rs == nil && c.src.Channels == 1
}

// Convert consumes p and returns the converted PCM available so far.
// The result may be empty while the resampler fills its filter.
func (c *Converter) Convert(p []byte) ([]byte, error) {
	fb := c.src.frameBytes()
	buf := append(c.pending, p...)
	whole := len(buf) / fb * fb
	c.pending = append([]byte(nil), buf[whole:]...)
	buf = buf[:whole]
	if len(buf) == 0 {
		return nil, nil
	}

	if c.Passthrough() {
		return buf, nil
	}

	mono := downmix(buf, c.src.Channels)
	if c.rs == nil {
		return encode(mono), nil
	}
	out, err := c.rs.Process(mono)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	return encode(out), nil
}

// downmix averages interleaved channels into normalized mono samples.
func downmix(b []byte, channels int) []float64 {
	if channels == 2 {
		return pcm.Normalize(pcm.StereoToMono(b))
	}
	samples := pcm.Int16s(b)
	frames := len(samples) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum int32
		for _, v := range samples[i*channels : (i+1)*channels] {
			sum += int32(v)
		}
		out[i] = float64(sum) / float64(channels) / 32768.0
	}
	return out
}

// encode converts normalized samples to int16 little-endian, clipping
// out-of-range values.
func encode(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		var v int16
		switch {
		case s >= 1.0:
			v = 32767
		case s < -1.0:
			v = -32768
		default:
			v = int16(s * 32768.0)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// Reader returns an io.Reader that yields converted PCM read from r.
// A trailing partial source frame at EOF is dropped.
func (c *Converter) Reader(r io.Reader) io.Reader {
	return &reader{c: c, src: r, buf: make([]byte, 4096*c.src.frameBytes())}
}

type reader struct {
	c   *Converter
	src io.Reader
	buf []byte
	out []byte
	err error
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		n, err := r.src.Read(r.buf)
		if n > 0 {
			out, cerr := r.c.Convert(r.buf[:n])
			if cerr != nil {
				r.err = cerr
				return 0, cerr
			}
			r.out = out
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			r.err = err
		}
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}
