package server

import "time"

// handleQuit implements QUIT: release every audio resource on the
// existing handler, then reopen a device and retry until one opens. Per
// spec §7 this is a session-reset error, not fatal — each failed attempt
// logs and sleeps, with the delay growing by quitBackoffIncrement, and
// retries indefinitely. The handler itself is never replaced, so handle
// allocation stays strictly monotonic across QUIT (testable property 8).
func (s *Server) handleQuit() {
	s.logger.Info("QUIT received, resetting audio session")

	if err := s.handler.Release(); err != nil {
		s.logger.Warn("error releasing audio resources during QUIT", "error", err)
	}

	delay := quitBackoffInitial
	for {
		device, err := openDevice(s.settings.AudioDevice)
		if err == nil {
			s.handler.Reopen(device)
			s.logger.Info("audio session reinitialized after QUIT")
			return
		}
		s.logger.Error("failed to reinitialize audio device, retrying", "error", err, "retry_in", delay)
		time.Sleep(delay)
		delay += quitBackoffIncrement
	}
}
