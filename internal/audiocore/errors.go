package audiocore

import (
	"oasd/internal/errors"
)

// ComponentAudioCore identifies errors raised from this package.
const ComponentAudioCore = "audiocore"

var (
	// ErrSourceNotFound is returned when a handle has no corresponding
	// entry in the source map (already deleted, or never allocated).
	ErrSourceNotFound = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryNotFound).
				Context("resource", "audio_source").
				Build()

	// ErrBufferNotFound is returned when a filename has no cached buffer
	// and no backing file exists in the cache directory.
	ErrBufferNotFound = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryNotFound).
				Context("resource", "audio_buffer").
				Build()

	// ErrInvalidPitch is returned by SetPitch for pitch <= 0.
	ErrInvalidPitch = errors.New(nil).
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("operation", "set_pitch").
			Build()

	// ErrDeviceUnavailable is returned when the renderer cannot open the
	// requested (or default) playback device.
	ErrDeviceUnavailable = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryFatal).
				Context("resource", "audio_device").
				Build()

	// ErrRendererTransient wraps a renderer error-flag trip that the
	// handler downgrades to a resource error per the error-handling
	// design: the scene is left intact, only the failed operation is a
	// no-op.
	ErrRendererTransient = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryRenderer).
				Context("resource", "renderer").
				Build()
)
