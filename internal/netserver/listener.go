package netserver

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
	"golang.org/x/sync/errgroup"

	"oasd/internal/cachefs"
	"oasd/internal/errors"
	"oasd/internal/logging"
	"oasd/internal/protocol"
)

// accumulatorCapacity bounds the per-connection ring buffer sitting between
// raw socket reads and the Framer: large enough to absorb a full 1024-byte
// read plus whatever the framer hasn't drained yet without ever blocking
// the reader goroutine.
const accumulatorCapacity = 64 * 1024

// readChunkSize matches spec.md §4.5: the socket is read up to 1024 bytes
// at a time.
const readChunkSize = protocol.MaxPacketSize

// Listener is the server's SocketHandler: one listening TCP socket serving
// a single concurrent client at a time. Connect attempts beyond the first
// are serialized by the accept loop itself — Serve only calls Accept again
// once the current connection's goroutines have returned.
type Listener struct {
	ln    net.Listener
	files *cachefs.FileHandler

	incoming chan protocol.Message

	mu       sync.Mutex
	outgoing chan []byte // nil when no client is connected; Respond drops silently

	logger *slog.Logger
}

// New binds addr (host:port) and returns a Listener ready for Serve. files
// resolves PTFI uploads into the cache directory.
func New(addr string, files *cachefs.FileHandler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentNetServer).
			Category(errors.CategoryFatal).
			Context("address", addr).
			Build()
	}
	logger := logging.ForService("netserver")
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		ln:       ln,
		files:    files,
		incoming: make(chan protocol.Message, 256),
		logger:   logger,
	}, nil
}

// Addr returns the bound local address (useful for tests binding to ":0").
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections; an in-flight connection's
// goroutines observe this via the context passed to Serve.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve runs the accept loop until ctx is canceled or the listener is
// closed. Each accepted connection is served to completion (QUIT or
// disconnect) before the next Accept call.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return errors.New(err).
				Component(ComponentNetServer).
				Category(errors.CategoryNetwork).
				Context("operation", "accept").
				Build()
		}

		if err := l.serveConn(ctx, conn); err != nil {
			l.logger.Warn("connection terminated with error", "error", err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// serveConn drives a single client connection to completion: a reader
// goroutine framing incoming packets (with the PTFI raw bypass), a writer
// goroutine draining enqueued responses, and a watcher that force-closes
// the connection if ctx is canceled out from under a blocking Read.
// golang.org/x/sync/errgroup supervises all three; once the reader returns
// (disconnect or error) the writer and watcher stop too, and readLoop
// aborts any upload still in flight.
func (l *Listener) serveConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	out := make(chan []byte, 64)
	l.mu.Lock()
	l.outgoing = out
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		if l.outgoing == out {
			l.outgoing = nil
		}
		l.mu.Unlock()
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(connCtx)
	g.Go(func() error {
		// A clean disconnect returns nil, which errgroup alone would not
		// treat as a reason to stop the writer and watcher.
		defer cancel()
		return l.readLoop(gctx, conn)
	})
	g.Go(func() error { return writeLoop(gctx, conn, out) })
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readLoop accumulates raw socket reads in a ring buffer, drains it into
// the Framer, and routes PTFI payloads to a cachefs.Upload sink. It
// returns nil on a clean client disconnect (EOF) and a wrapped error
// otherwise; a disconnect while an upload is in flight aborts it.
func (l *Listener) readLoop(ctx context.Context, conn net.Conn) error {
	framer := protocol.NewFramer()
	ring := ringbuffer.New(accumulatorCapacity)

	var upload *cachefs.Upload
	defer func() {
		if upload != nil {
			_ = upload.Abort()
		}
	}()

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := ring.Write(buf[:n]); werr != nil {
				return errors.New(werr).
					Component(ComponentNetServer).
					Category(errors.CategoryNetwork).
					Context("operation", "accumulate").
					Build()
			}
			drained := make([]byte, ring.Length())
			if _, rerr := ring.Read(drained); rerr != nil {
				return errors.New(rerr).
					Component(ComponentNetServer).
					Category(errors.CategoryNetwork).
					Context("operation", "drain").
					Build()
			}

			msgs, uploadErr := l.frameAndUpload(framer, &upload, drained)
			if uploadErr != nil {
				return uploadErr
			}
			for _, m := range msgs {
				select {
				case l.incoming <- m:
				case <-ctx.Done():
					return nil
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.New(err).
				Component(ComponentNetServer).
				Category(errors.CategoryNetwork).
				Context("operation", "read").
				Build()
		}
	}
}

// frameAndUpload feeds data to framer one packet at a time so a PTFI
// message can trigger BeginRaw before any bytes that follow it in the same
// read are handed to the framer — matching the protocol.Framer contract
// that BeginRaw must be called between the PTFI packet and the raw payload
// it introduces, even when both arrive in a single TCP segment.
func (l *Listener) frameAndUpload(framer *protocol.Framer, upload **cachefs.Upload, data []byte) ([]protocol.Message, error) {
	var out []protocol.Message

	for len(data) > 0 {
		if framer.Pending() > 0 {
			n := framer.Pending()
			if n > len(data) {
				n = len(data)
			}
			framer.Feed(data[:n]) // raw payload only: yields no packets
			data = data[n:]
			if framer.Pending() == 0 && *upload != nil {
				if err := (*upload).Commit(); err != nil {
					l.logger.Warn("upload commit failed", "error", err)
				}
				*upload = nil
			}
			continue
		}

		idx := bytes.IndexByte(data, protocol.Terminator)
		if idx < 0 {
			_, failures := framer.Feed(data)
			l.respondFailures(failures)
			break
		}

		msgs, failures := framer.Feed(data[:idx+1])
		l.respondFailures(failures)
		data = data[idx+1:]

		for _, m := range msgs {
			if m.Tag == protocol.TagPTFI {
				up, err := l.files.BeginUpload(m.Filename, int64(m.Size))
				if err != nil {
					l.logger.Warn("PTFI upload rejected", "filename", m.Filename, "error", err)
					// Drain the announced size with no sink so framing
					// resumes at the right offset; the following GHDL
					// will simply fail to find the file.
					framer.BeginRaw(m.Size, func([]byte) {})
				} else {
					*upload = up
					framer.BeginRaw(m.Size, func(b []byte) { _, _ = up.Write(b) })
				}
			}
		}
		out = append(out, msgs...)
	}

	return out, nil
}

// writeLoop drains out and writes each packet to conn until ctx is
// canceled or the write fails.
func writeLoop(ctx context.Context, conn net.Conn, out <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-out:
			if !ok {
				return nil
			}
			if _, err := conn.Write(packet); err != nil {
				return errors.New(err).
					Component(ComponentNetServer).
					Category(errors.CategoryNetwork).
					Context("operation", "write").
					Build()
			}
		}
	}
}

// Connected reports whether a client is currently connected, used by
// internal/server to pick between the fast-poll and idle-poll deadlines.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outgoing != nil
}

// Respond enqueues a response packet for the currently connected client.
// If nobody is connected, the response is dropped — nothing is listening.
func (l *Listener) Respond(packet []byte) {
	l.mu.Lock()
	out := l.outgoing
	l.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- packet:
	default:
		l.logger.Warn("response queue full, dropping packet")
	}
}

// respondFailures sends the sentinel failure response for every malformed
// packet whose tag still owes the client a reply (see
// protocol.RespondsOnFailure), so a client never blocks waiting for a
// response to a packet the framer silently dropped.
func (l *Listener) respondFailures(failures []protocol.Tag) {
	for _, tag := range failures {
		l.Respond(protocol.FailureResponse(tag))
	}
}

// Populate blocks until deadline for at least one incoming message, then
// drains and returns every message already queued without blocking
// further. An empty return means the deadline elapsed with nothing
// received, used by the main loop to poll time-driven updates (fades,
// playback completion) even when the client is idle.
func (l *Listener) Populate(deadline time.Time) []protocol.Message {
	timeout := time.Until(deadline)
	if timeout < 0 {
		timeout = 0
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var msgs []protocol.Message
	select {
	case m := <-l.incoming:
		msgs = append(msgs, m)
	case <-timer.C:
		return nil
	}

	for {
		select {
		case m := <-l.incoming:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}
