package server

import (
	"oasd/internal/audiocore"
	"oasd/internal/protocol"
)

// dispatch routes one parsed Message against the scene per spec §4.1,
// mirroring the original server's per-tag switch. A mutation is followed
// by publishing a Snapshot of whatever it touched, matching §4.6's "if
// recentlyModifiedAudioUnit: publish to observer, clear".
func (s *Server) dispatch(m protocol.Message) {
	if protocol.UnsupportedTags[m.Tag] {
		s.logger.Warn("ignoring unsupported tag", "tag", m.Tag)
		s.respondFailure(m.Tag)
		return
	}

	switch m.Tag {
	case protocol.TagGHDL:
		handle, err := s.handler.CreateSourceFromFile(m.Filename)
		s.respondCreate(m.Tag, handle, err, "filename", m.Filename)

	case protocol.TagPTFI:
		// Handled entirely by the listener's raw-upload sink; nothing to
		// dispatch here.

	case protocol.TagWAVE:
		handle, err := s.handler.CreateSourceFromWaveform(m.Waveform, m.Floats[0], m.Floats[1], m.Floats[2])
		s.respondCreate(m.Tag, handle, err, "waveform", m.Waveform)

	case protocol.TagRHDL:
		s.handler.DeleteSource(m.Handle)
		s.publishSource(m.Handle)

	case protocol.TagPLAY:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { _ = src.Play() })

	case protocol.TagSTOP:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { _ = src.Stop() })

	case protocol.TagPAUS:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { _ = src.Pause() })

	case protocol.TagSSEC:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { src.SetPlaybackPosition(m.Floats[0]) })

	case protocol.TagSSPO:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) {
			src.SetPosition(audiocore.Vec3{X: m.Floats[0], Y: m.Floats[1], Z: m.Floats[2]})
		})

	case protocol.TagSSVE:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) {
			if len(m.Floats) == 1 {
				s.logger.Warn("SSVE 1-float speed form is deprecated", "handle", m.Handle)
				src.SetSpeed(m.Floats[0])
				return
			}
			src.SetVelocity(audiocore.Vec3{X: m.Floats[0], Y: m.Floats[1], Z: m.Floats[2]})
		})

	case protocol.TagSSDI:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) {
			if len(m.Floats) == 1 {
				src.SetDirectionAngle(m.Floats[0])
				return
			}
			src.SetDirection(audiocore.Vec3{X: m.Floats[0], Y: m.Floats[1], Z: m.Floats[2]})
		})

	case protocol.TagSSDV:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) {
			src.SetDirectionAngle(m.Floats[0])
			src.SetGain(m.Floats[1])
		})

	case protocol.TagSSVO:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { src.SetGain(m.Floats[0]) })

	case protocol.TagSSLP:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { src.SetLoop(m.Ints[0] != 0) })

	case protocol.TagSPIT:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) {
			if err := src.SetPitch(m.Floats[0]); err != nil {
				s.logger.Warn("rejected pitch", "handle", m.Handle, "pitch", m.Floats[0], "error", err)
			}
		})

	case protocol.TagFADE:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { src.SetFade(m.Floats[0], m.Floats[1]) })

	case protocol.TagSPAR:
		s.withSource(m.Handle, func(src *audiocore.AudioSource) { applySourceParam(src, m.Ints[0], m.Floats[0]) })

	case protocol.TagSTAT:
		state := audiocore.StateUnknown
		// A source deleted earlier in this cycle stays in the map until the
		// lazy-deletion sweep; it reports UNKNOWN like one already reaped.
		if src := s.handler.Source(m.Handle); src != nil && src.State() != audiocore.StateDeleted {
			state = src.State()
		}
		s.listener.Respond(protocol.EncodeInt(state.StatusCode()))

	case protocol.TagSLPO:
		s.handler.Listener.SetPosition(audiocore.Vec3{X: m.Floats[0], Y: m.Floats[1], Z: m.Floats[2]})
		s.publishListener()

	case protocol.TagSLVE:
		s.handler.Listener.SetVelocity(audiocore.Vec3{X: m.Floats[0], Y: m.Floats[1], Z: m.Floats[2]})
		s.publishListener()

	case protocol.TagSLOR:
		s.handler.Listener.SetOrientation(
			audiocore.Vec3{X: m.Floats[0], Y: m.Floats[1], Z: m.Floats[2]},
			audiocore.Vec3{X: m.Floats[3], Y: m.Floats[4], Z: m.Floats[5]},
		)
		s.publishListener()

	case protocol.TagGAIN:
		s.handler.Listener.SetGain(m.Floats[0])
		s.publishListener()

	case protocol.TagPARA:
		s.applyGlobalParam(m.Ints[0], m.Floats[0])
		s.publishListener()

	case protocol.TagSYNC:
		s.listener.Respond(protocol.EncodeSync())

	case protocol.TagTEST:
		// Acknowledged implicitly by the absence of a failure response.

	case protocol.TagQUIT:
		s.handleQuit()

	default:
		s.logger.Warn("dispatch received an unrecognized tag", "tag", m.Tag)
	}
}

// withSource looks up handle and, if it still exists, runs fn against it
// and republishes its snapshot. An unknown or already-reaped handle is a
// silent no-op per spec §7's resource-error handling.
func (s *Server) withSource(handle int, fn func(src *audiocore.AudioSource)) {
	src := s.handler.Source(handle)
	if src == nil {
		return
	}
	fn(src)
	s.publishSource(handle)
}

// respondCreate answers GHDL/WAVE: the new handle on success, -1 (logged)
// on failure.
func (s *Server) respondCreate(tag protocol.Tag, handle int, err error, logKey string, logValue any) {
	if err != nil {
		s.logger.Warn("failed to create source", "tag", tag, logKey, logValue, "error", err)
		s.listener.Respond(protocol.FailureResponse(tag))
		return
	}
	s.listener.Respond(protocol.EncodeInt(handle))
	s.publishSource(handle)
}

// respondFailure answers a recognized-but-unsupported or otherwise-failed
// tag with its sentinel, if the tag is one that owes the client a
// response at all.
func (s *Server) respondFailure(tag protocol.Tag) {
	if protocol.RespondsOnFailure(tag) {
		s.listener.Respond(protocol.FailureResponse(tag))
	}
}

// publishSource publishes a Snapshot for handle's current state, if it
// still exists.
func (s *Server) publishSource(handle int) {
	if snap, ok := s.handler.SourceSnapshot(handle); ok {
		s.events.Publish(audiocore.Snapshot{Source: &snap})
	}
}

// publishListener publishes a Snapshot of the listener's current state.
func (s *Server) publishListener() {
	snap := s.handler.Listener.Snapshot()
	s.events.Publish(audiocore.Snapshot{Listener: &snap})
}

// applySourceParam applies one SPAR parameter id/value pair to src; an
// unrecognized id is a silent no-op.
func applySourceParam(src *audiocore.AudioSource, paramID int, value float64) {
	switch paramID {
	case audiocore.ParamSourceRolloff:
		src.SetRolloff(value)
	case audiocore.ParamSourceReferenceDistance:
		src.SetReferenceDistance(value)
	case audiocore.ParamSourceConeInnerAngle:
		src.SetConeInnerAngle(value)
	case audiocore.ParamSourceConeOuterAngle:
		src.SetConeOuterAngle(value)
	case audiocore.ParamSourceConeOuterGain:
		src.SetConeOuterGain(value)
	}
}

// applyGlobalParam applies one PARA parameter id/value pair scene-wide; an
// unrecognized id is a silent no-op.
func (s *Server) applyGlobalParam(paramID int, value float64) {
	switch paramID {
	case audiocore.ParamSpeedOfSound:
		s.handler.Listener.SetSpeedOfSound(value)
	case audiocore.ParamDopplerFactor:
		s.handler.Listener.SetDopplerFactor(value)
	case audiocore.ParamDefaultRolloff:
		s.handler.SetDefaultRolloffFactor(value)
	case audiocore.ParamDefaultReferenceDistance:
		s.handler.SetDefaultReferenceDistance(value)
	}
}
