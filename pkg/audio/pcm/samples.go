package pcm

// sample decodes the little-endian int16 at sample index i.
func sample(b []byte, i int) int16 {
	return int16(b[i*2]) | int16(b[i*2+1])<<8
}

// Int16s decodes little-endian 16-bit samples. A trailing odd byte is
// ignored.
func Int16s(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = sample(b, i)
	}
	return out
}

// Normalize decodes little-endian 16-bit samples and scales them to
// [-1, 1].
func Normalize(b []byte) []float64 {
	n := len(b) / 2
	out := make([]float64, n)
	for i := range n {
		out[i] = float64(sample(b, i)) / 32768.0
	}
	return out
}

// MeanSquare returns the mean of the squared raw int16 sample values.
// Returns 0 for an empty buffer.
func MeanSquare(b []byte) float64 {
	n := len(b) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(sample(b, i))
		sum += s * s
	}
	return sum / float64(n)
}

// Encode writes samples as little-endian int16 bytes.
func Encode(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// StereoToMono averages interleaved left/right frames into a new mono
// buffer.
func StereoToMono(b []byte) []byte {
	frames := len(b) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sample(b, i*2))
		r := int32(sample(b, i*2+1))
		m := int16((l + r) / 2)
		out[i*2] = byte(m)
		out[i*2+1] = byte(m >> 8)
	}
	return out
}
