package audiocore

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"oasd/internal/cachefs"
	"oasd/internal/errors"
	"oasd/internal/logging"
)

// deviceSampleRate and deviceChannels are the fixed output format the
// playback device is opened with; per-source renderers resample and
// downmix/upmix their buffer to this format as they render.
const (
	deviceSampleRate = 48000
	deviceChannels   = 2
)

// malgoDevice is the Device implementation backing AudioHandler in
// production: it owns a malgo playback device and mixes every active
// source's renderer into the device's output callback.
type malgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu       sync.Mutex
	renderers map[*malgoSourceRenderer]struct{}
}

// NewMalgoDevice opens the named playback device (or the platform default,
// for an empty name) and starts the mixing callback.
func NewMalgoDevice(deviceName string) (*malgoDevice, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryFatal).
			Context("operation", "init_context").
			Build()
	}

	d := &malgoDevice{
		ctx:       mctx,
		renderers: make(map[*malgoSourceRenderer]struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = deviceChannels
	deviceConfig.SampleRate = deviceSampleRate
	if deviceName != "" {
		deviceConfig.Playback.DeviceID = resolvePlaybackDeviceID(mctx, deviceName)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: d.mix,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryFatal).
			Context("operation", "init_device").
			Context("device_name", deviceName).
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryFatal).
			Context("operation", "start_device").
			Build()
	}
	d.device = device

	if logger := logging.ForService("audiocore"); logger != nil {
		logger.Info("playback device started",
			"device_name", deviceName, "sample_rate", deviceSampleRate, "channels", deviceChannels)
	}

	return d, nil
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system %s", runtime.GOOS).
			Component(ComponentAudioCore).
			Category(errors.CategoryFatal).
			Build()
	}
}

func resolvePlaybackDeviceID(ctx *malgo.AllocatedContext, name string) malgo.DeviceID {
	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceID{}
	}
	for i := range infos {
		if infos[i].Name() == name {
			return infos[i].ID
		}
	}
	return malgo.DeviceID{}
}

// mix is the malgo data callback: it sums every registered renderer's
// contribution for this period into the output buffer, in f32 interleaved
// stereo.
func (d *malgoDevice) mix(out, _ []byte, frameCount uint32) {
	frames := int(frameCount)
	samples := make([]float32, frames*deviceChannels)

	d.mu.Lock()
	renderers := make([]*malgoSourceRenderer, 0, len(d.renderers))
	for r := range d.renderers {
		renderers = append(renderers, r)
	}
	d.mu.Unlock()

	for _, r := range renderers {
		r.render(samples, frames)
	}

	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		putFloat32(out[i*4:], v)
	}
}

func (d *malgoDevice) register(r *malgoSourceRenderer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renderers[r] = struct{}{}
}

func (d *malgoDevice) unregister(r *malgoSourceRenderer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.renderers, r)
}

func (d *malgoDevice) NewSourceRenderer() sourceRenderer {
	return &malgoSourceRenderer{device: d, gain: DefaultGain, pitch: DefaultPitch}
}

func (d *malgoDevice) DecodeFile(files *cachefs.FileHandler, filename string) (*AudioBuffer, error) {
	f, err := files.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeFile(f, filename)
}

func (d *malgoDevice) Synthesize(waveform int, frequency, phase, durationSeconds float64) (*AudioBuffer, error) {
	return synthesize(waveform, frequency, phase, durationSeconds), nil
}

func (d *malgoDevice) Close() error {
	if d.device != nil {
		d.device.Uninit()
	}
	return d.ctx.Uninit()
}

// malgoSourceRenderer is the per-source playback cursor mixed into the
// device's output by malgoDevice.mix. Position, velocity, direction,
// rolloff, reference distance and cone settings are accepted and discarded;
// the mixer applies only gain and pitch (as the playback step rate), since
// spatialization math is explicitly out of scope (the core treats the
// rendering library as an opaque state machine).
type malgoSourceRenderer struct {
	device *malgoDevice

	mu       sync.Mutex
	buf      *AudioBuffer
	offset   int
	loop     bool
	gain     float64
	pitch    float64
	finished atomic.Bool
}

func (r *malgoSourceRenderer) Play(buf *AudioBuffer, offsetFrames int, loop bool, gain, pitch float64) error {
	r.mu.Lock()
	r.buf = buf
	r.offset = offsetFrames
	r.loop = loop
	r.gain = gain
	r.pitch = pitch
	r.mu.Unlock()
	r.finished.Store(false)
	r.device.register(r)
	return nil
}

func (r *malgoSourceRenderer) Pause() error {
	r.device.unregister(r)
	return nil
}

func (r *malgoSourceRenderer) Stop() error {
	r.device.unregister(r)
	r.mu.Lock()
	r.offset = 0
	r.mu.Unlock()
	return nil
}

func (r *malgoSourceRenderer) Finished() bool { return r.finished.Load() }

func (r *malgoSourceRenderer) SetGain(gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = gain
}

func (r *malgoSourceRenderer) SetPitch(pitch float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pitch = pitch
	return nil
}

func (r *malgoSourceRenderer) SetPosition(Vec3)              {}
func (r *malgoSourceRenderer) SetVelocity(Vec3)              {}
func (r *malgoSourceRenderer) SetDirection(Vec3)             {}
func (r *malgoSourceRenderer) SetRolloff(float64)            {}
func (r *malgoSourceRenderer) SetReferenceDistance(float64)  {}
func (r *malgoSourceRenderer) SetCone(_, _, _ float64)       {}

// render advances this source by `frames` device frames, writing
// gain-scaled, channel-expanded samples into out (interleaved, deviceChannels
// wide). Reaching the end of the buffer sets finished (non-looping) or
// wraps the cursor (looping).
func (r *malgoSourceRenderer) render(out []float32, frames int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf == nil || len(r.buf.Samples) == 0 {
		return
	}

	step := r.pitch * float64(r.buf.SampleRate) / float64(deviceSampleRate)
	pos := float64(r.offset)
	srcFrames := len(r.buf.Samples) / r.buf.Channels

	for i := 0; i < frames; i++ {
		frame := int(pos)
		if frame >= srcFrames {
			if r.loop {
				frame %= srcFrames
				pos = float64(frame)
			} else {
				r.finished.Store(true)
				break
			}
		}
		for ch := 0; ch < deviceChannels; ch++ {
			srcCh := ch % r.buf.Channels
			sample := r.buf.Samples[frame*r.buf.Channels+srcCh]
			out[i*deviceChannels+ch] += float32(r.gain) * sample
		}
		pos += step
	}
	r.offset = int(pos)
}

// nullDevice is a Device that decodes and synthesizes real buffers but
// renders nothing: no backend is opened, no goroutine mixes audio. It
// backs the "null" audio_device setting for headless deployments (CI,
// integration tests, a server instance that only needs to exercise the
// wire protocol and scene state) where no playback hardware exists.
type nullDevice struct{}

// NewNullDevice returns a Device with no playback backend; every other
// operation (file decode, waveform synthesis, source lifecycle) behaves
// normally.
func NewNullDevice() Device { return nullDevice{} }

func (nullDevice) NewSourceRenderer() sourceRenderer { return &nullSourceRenderer{} }

func (nullDevice) DecodeFile(files *cachefs.FileHandler, filename string) (*AudioBuffer, error) {
	f, err := files.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeFile(f, filename)
}

func (nullDevice) Synthesize(waveform int, frequency, phase, durationSeconds float64) (*AudioBuffer, error) {
	return synthesize(waveform, frequency, phase, durationSeconds), nil
}

func (nullDevice) Close() error { return nil }

// nullSourceRenderer tracks just enough state to make STAT/Update
// semantics observable without ever producing a sample.
type nullSourceRenderer struct {
	mu       sync.Mutex
	playing  bool
	loop     bool
	gain     float64
	pitch    float64
}

func (r *nullSourceRenderer) Play(_ *AudioBuffer, _ int, loop bool, gain, pitch float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = true
	r.loop = loop
	r.gain = gain
	r.pitch = pitch
	return nil
}

func (r *nullSourceRenderer) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = false
	return nil
}

func (r *nullSourceRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = false
	return nil
}

// Finished always reports false: with no callback clock driving playback,
// a null-device source plays until explicitly stopped.
func (r *nullSourceRenderer) Finished() bool { return false }

func (r *nullSourceRenderer) SetGain(gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = gain
}

func (r *nullSourceRenderer) SetPitch(pitch float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pitch = pitch
	return nil
}

func (r *nullSourceRenderer) SetPosition(Vec3)             {}
func (r *nullSourceRenderer) SetVelocity(Vec3)             {}
func (r *nullSourceRenderer) SetDirection(Vec3)            {}
func (r *nullSourceRenderer) SetRolloff(float64)           {}
func (r *nullSourceRenderer) SetReferenceDistance(float64) {}
func (r *nullSourceRenderer) SetCone(_, _, _ float64)      {}

// putFloat32 writes v as little-endian IEEE-754 bits into b, matching the
// f32 sample format negotiated in NewMalgoDevice.
func putFloat32(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
