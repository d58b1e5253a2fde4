package audiocore

import "math"

// synthSampleRate is the internal sample rate used for WAVE-generated
// buffers; the mixer resamples as needed when mixing sources that share a
// device running at a different rate.
const synthSampleRate = 48000

// synthesize builds a mono buffer for one of the WAVE waveform types at
// the given frequency (Hz), starting phase (radians) and duration
// (seconds).
func synthesize(waveform int, frequency, phase, durationSeconds float64) *AudioBuffer {
	frames := int(durationSeconds * synthSampleRate)
	samples := make([]float32, frames)

	rng := newWhiteNoiseSource(frequency, phase)
	for i := range samples {
		t := float64(i) / synthSampleRate
		angle := 2*math.Pi*frequency*t + phase
		switch waveform {
		case WaveformSquare:
			samples[i] = float32(math.Copysign(1, math.Sin(angle)))
		case WaveformSawtooth:
			frac := angle / (2 * math.Pi)
			frac -= math.Floor(frac)
			samples[i] = float32(2*frac - 1)
		case WaveformWhiteNoise:
			samples[i] = rng.next()
		default: // WaveformSine
			samples[i] = float32(math.Sin(angle))
		}
	}

	return &AudioBuffer{
		SampleRate: synthSampleRate,
		Channels:   1,
		Samples:    samples,
	}
}

// whiteNoiseSource is a simple xorshift PRNG seeded from the requested
// frequency and phase so that repeated WAVE calls with identical
// parameters are reproducible, which matters for the server's testable
// properties around source creation.
type whiteNoiseSource struct {
	state uint64
}

func newWhiteNoiseSource(frequency, phase float64) *whiteNoiseSource {
	seed := uint64(frequency*1000) ^ uint64(phase*1000)<<32
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	return &whiteNoiseSource{state: seed}
}

func (w *whiteNoiseSource) next() float32 {
	w.state ^= w.state << 13
	w.state ^= w.state >> 7
	w.state ^= w.state << 17
	return float32(int64(w.state)%2000)/1000 - 1
}
