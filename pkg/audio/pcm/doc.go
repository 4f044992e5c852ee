// Package pcm provides helpers for 16-bit little-endian PCM audio as it
// arrives from capture devices: format arithmetic, sample decoding and
// the raw energy measure used by the voice activity gate.
//
// Example usage:
//
//	format := pcm.L16Mono16K
//
//	// Bytes in one 100 ms chunk.
//	n := format.BytesInDuration(100 * time.Millisecond)
//
//	// Samples normalized to [-1, 1].
//	x := pcm.Normalize(chunk)
package pcm
