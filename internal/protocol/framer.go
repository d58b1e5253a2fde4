package protocol

import "bytes"

// Framer reassembles a byte stream into NUL-terminated packets, buffering
// a partial packet across read boundaries. It also supports a one-shot
// "raw mode" used for PTFI file uploads, where the next N bytes bypass
// NUL framing entirely.
type Framer struct {
	buf bytes.Buffer

	rawRemaining int
	rawSink      func([]byte)
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// BeginRaw switches the framer into raw mode: the next n bytes appended
// are handed to sink in arbitrary-sized chunks instead of being scanned
// for NUL terminators. Framing resumes automatically once n bytes have
// been delivered. Feed frames every byte it is given before returning, so
// the caller must stop feeding at the PTFI packet's terminator and call
// BeginRaw before passing the payload.
func (f *Framer) BeginRaw(n int, sink func([]byte)) {
	f.rawRemaining = n
	f.rawSink = sink
}

// Feed appends newly read bytes and returns every complete packet now
// available (without their terminators), plus the tag of every malformed
// packet whose tag still owes the client a sentinel response (see
// RespondsOnFailure). While in raw mode, bytes are routed to the raw sink
// instead and never appear as packets.
func (f *Framer) Feed(data []byte) ([]Message, []Tag) {
	var messages []Message
	var failures []Tag

	for len(data) > 0 {
		if f.rawRemaining > 0 {
			n := f.rawRemaining
			if n > len(data) {
				n = len(data)
			}
			f.rawSink(data[:n])
			f.rawRemaining -= n
			data = data[n:]
			continue
		}

		idx := bytes.IndexByte(data, Terminator)
		if idx < 0 {
			f.buf.Write(data)
			break
		}

		f.buf.Write(data[:idx])
		packet := append([]byte(nil), f.buf.Bytes()...)
		f.buf.Reset()
		data = data[idx+1:]

		// A PTFI message requires the caller to call BeginRaw before Feed
		// is invoked again; any bytes following the packet's terminator
		// within the same Feed call are still framed as packets here.
		msg, err := Parse(packet)
		if err == nil {
			messages = append(messages, msg)
			continue
		}
		// The packet itself is dropped per the protocol error policy, but
		// a recognized tag that RespondsOnFailure still owes the client
		// its sentinel response instead of leaving it waiting forever.
		if RespondsOnFailure(msg.Tag) {
			failures = append(failures, msg.Tag)
		}
	}

	return messages, failures
}

// Pending reports how many raw bytes are still expected before framing
// resumes.
func (f *Framer) Pending() int {
	return f.rawRemaining
}
