// Package wav reads the RIFF/WAVE container around 16-bit PCM.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrFormat is returned for input that is not a 16-bit PCM WAVE stream.
var ErrFormat = errors.New("wav: unsupported format")

const formatPCM = 1

// Header describes the audio that follows the header.
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int

	// DataSize is the declared size of the data chunk. Streams written
	// before their length was known may declare 0 or 0xFFFFFFFF.
	DataSize uint32
}

// ReadHeader consumes r up to the first byte of sample data. Chunks
// other than "fmt " and "data" are skipped.
func ReadHeader(r io.Reader) (Header, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Header{}, fmt.Errorf("wav: read header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrFormat)
	}

	var h Header
	var sawFmt bool
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return Header{}, fmt.Errorf("wav: read chunk: %w", err)
		}
		id := string(ch[0:4])
		size := binary.LittleEndian.Uint32(ch[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Header{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrFormat, size)
			}
			buf := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Header{}, fmt.Errorf("wav: read fmt: %w", err)
			}
			format := binary.LittleEndian.Uint16(buf[0:2])
			h.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			h.BitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))
			if format != formatPCM || h.BitsPerSample != 16 || h.Channels < 1 || h.SampleRate <= 0 {
				return Header{}, fmt.Errorf("%w: format %d, %d-bit, %d channels, %d Hz",
					ErrFormat, format, h.BitsPerSample, h.Channels, h.SampleRate)
			}
			sawFmt = true
		case "data":
			if !sawFmt {
				return Header{}, fmt.Errorf("%w: data before fmt", ErrFormat)
			}
			h.DataSize = size
			return h, nil
		default:
			// Chunks are padded to even sizes.
			if _, err := io.CopyN(io.Discard, r, int64(size)+int64(size%2)); err != nil {
				return Header{}, fmt.Errorf("wav: skip %q: %w", id, err)
			}
		}
	}
}

// AppendHeader appends a canonical 44-byte header for dataSize bytes of
// 16-bit PCM.
func AppendHeader(b []byte, sampleRate, channels int, dataSize uint32) []byte {
	blockAlign := channels * 2
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, 36+dataSize)
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, formatPCM)
	b = binary.LittleEndian.AppendUint16(b, uint16(channels))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate*blockAlign))
	b = binary.LittleEndian.AppendUint16(b, uint16(blockAlign))
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, dataSize)
	return b
}
