package audiocore

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"oasd/internal/errors"
)

// decodeFile reads a WAV or FLAC file already opened through
// internal/cachefs's sandbox and returns a fully decoded, normalized
// AudioBuffer. The format is chosen by filename extension; everything else
// the wire protocol calls a "filename" is opaque to this package.
func decodeFile(f *os.File, filename string) (*AudioBuffer, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".flac":
		return decodeFLAC(f, filename)
	default:
		return decodeWAV(f, filename)
	}
}

func decodeWAV(f *os.File, path string) (*AudioBuffer, error) {
	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("not a valid WAV file: %s", path).
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Context("operation", "decode_wav").
			Build()
	}

	var divisor float32
	switch decoder.BitDepth {
	case 8:
		divisor = 128.0
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, errors.Newf("unsupported bit depth %d in %s", decoder.BitDepth, path).
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("path", path).
			Context("bit_depth", decoder.BitDepth).
			Build()
	}

	samples := make([]float32, len(pcm.Data))
	for i, s := range pcm.Data {
		samples[i] = float32(s) / divisor
	}

	return &AudioBuffer{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		Samples:    samples,
	}, nil
}

func decodeFLAC(f *os.File, path string) (*AudioBuffer, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Context("operation", "decode_flac").
			Build()
	}

	channels := int(stream.Info.NChannels)
	divisor := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentAudioCore).
				Category(errors.CategoryFileIO).
				Context("path", path).
				Context("operation", "parse_flac_frame").
				Build()
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/divisor)
			}
		}
	}

	return &AudioBuffer{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}, nil
}
