package netserver

import "oasd/internal/errors"

// ComponentNetServer identifies errors raised from this package.
const ComponentNetServer = "netserver"

var (
	// ErrListenerClosed is returned by Serve once the listener has been
	// closed deliberately (shutdown), distinguishing it from a genuine
	// accept failure.
	ErrListenerClosed = errors.New(nil).
				Component(ComponentNetServer).
				Category(errors.CategoryNetwork).
				Context("operation", "accept").
				Build()
)
