// Package resampler converts interleaved 16-bit PCM of any sample rate
// and channel count into mono PCM at a target rate.
//
// Channels are averaged before rate conversion, which runs on the pure
// Go go-audio-resampling library. Input may arrive in arbitrary byte
// slices; partial frames are carried over to the next call.
//
//	conv, err := resampler.New(resampler.Format{SampleRate: 44100, Channels: 2}, 16000)
//	if err != nil {
//	    return err
//	}
//	r := conv.Reader(file) // yields 16 kHz mono
package resampler
