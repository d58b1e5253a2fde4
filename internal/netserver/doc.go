// Package netserver implements the server's SocketHandler: the listening
// TCP socket, the single-concurrent-client accept loop, NUL-packet framing
// (via internal/protocol.Framer) with the PTFI raw-upload bypass, and the
// incoming-message/outgoing-response queues internal/server drains and
// fills each main-loop iteration.
package netserver
