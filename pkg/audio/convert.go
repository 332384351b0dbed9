package audio

import "encoding/binary"

// Float32ToS16LE converts normalised float32 samples to 16-bit signed
// little-endian PCM bytes. Samples outside [-1.0, 1.0] are clipped.
func Float32ToS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}

// S16LEToFloat32 converts 16-bit signed little-endian PCM bytes to normalised
// float32 samples. Any trailing odd byte is silently ignored.
func S16LEToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// DownmixMono folds interleaved multi-channel float32 samples to mono by
// averaging all channels per frame. If channels is 1 the input is returned
// unchanged.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	mono := make([]float32, n)
	for i := range n {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
