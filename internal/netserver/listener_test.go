package netserver

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasd/internal/cachefs"
	"oasd/internal/protocol"
)

func newTestListener(t *testing.T) (*Listener, *cachefs.FileHandler) {
	t.Helper()
	files, err := cachefs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })

	l, err := New("127.0.0.1:0", files)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		_ = l.Close()
		<-done
	})

	return l, files
}

func dial(t *testing.T, l *Listener) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readPacket(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString(protocol.Terminator)
	require.NoError(t, err)
	return line[:len(line)-1]
}

func TestRoundTripGHDLMissingFile(t *testing.T) {
	l, _ := newTestListener(t)
	conn := dial(t, l)
	r := bufio.NewReader(conn)

	_, err := conn.Write(append([]byte("GHDL missing.wav"), protocol.Terminator))
	require.NoError(t, err)

	msgs := l.Populate(time.Now().Add(time.Second))
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.TagGHDL, msgs[0].Tag)
	assert.Equal(t, "missing.wav", msgs[0].Filename)

	l.Respond(protocol.FailureResponse(protocol.TagGHDL))
	assert.Equal(t, "-1", readPacket(t, r))
}

func TestMalformedRespondingPacketGetsSentinelWithoutDispatch(t *testing.T) {
	l, _ := newTestListener(t)
	conn := dial(t, l)
	r := bufio.NewReader(conn)

	// GHDL takes exactly one filename argument; two arguments is a parse
	// failure, but GHDL still owes the client a response.
	_, err := conn.Write(append([]byte("GHDL a b"), protocol.Terminator))
	require.NoError(t, err)

	assert.Equal(t, "-1", readPacket(t, r))

	// No Message reaches the dispatcher for the malformed packet.
	msgs := l.Populate(time.Now().Add(50 * time.Millisecond))
	assert.Empty(t, msgs)
}

func TestPopulateTimesOutWithNoMessages(t *testing.T) {
	l, _ := newTestListener(t)
	msgs := l.Populate(time.Now().Add(10 * time.Millisecond))
	assert.Nil(t, msgs)
}

func TestPTFIUploadThenGHDLInSingleWrite(t *testing.T) {
	l, files := newTestListener(t)
	conn := dial(t, l)

	var packet []byte
	packet = append(packet, []byte("PTFI upload.bin 5")...)
	packet = append(packet, protocol.Terminator)
	packet = append(packet, []byte("ABCDE")...)
	packet = append(packet, []byte("GHDL upload.bin")...)
	packet = append(packet, protocol.Terminator)

	_, err := conn.Write(packet)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var got []protocol.Message
	for len(got) < 2 && time.Now().Before(deadline) {
		got = append(got, l.Populate(time.Now().Add(200*time.Millisecond))...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, protocol.TagPTFI, got[0].Tag)
	assert.Equal(t, protocol.TagGHDL, got[1].Tag)
	assert.Equal(t, "upload.bin", got[1].Filename)

	data, err := os.ReadFile(filepath.Join(files.BaseDir(), "upload.bin"))
	require.NoError(t, err)
	assert.Equal(t, "ABCDE", string(data))
}

func TestPTFIDisconnectAbortsUpload(t *testing.T) {
	l, files := newTestListener(t)
	conn := dial(t, l)

	var packet []byte
	packet = append(packet, []byte("PTFI partial.bin 100")...)
	packet = append(packet, protocol.Terminator)
	packet = append(packet, []byte("onlyafewbytes")...)

	_, err := conn.Write(packet)
	require.NoError(t, err)
	_ = l.Populate(time.Now().Add(time.Second)) // drain the PTFI message

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return !files.Exists("partial.bin")
	}, time.Second, 10*time.Millisecond)
}

func TestConnectedReflectsActiveConnection(t *testing.T) {
	l, _ := newTestListener(t)
	assert.False(t, l.Connected())

	conn := dial(t, l)
	require.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !l.Connected() }, time.Second, 5*time.Millisecond)
}

func TestRespondWithNoConnectionDoesNotBlock(t *testing.T) {
	l, _ := newTestListener(t)
	l.Respond(protocol.EncodeInt(1))
}
