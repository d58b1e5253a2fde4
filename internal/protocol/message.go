// Package protocol decodes and encodes the server's wire format: a stream
// of NUL-terminated ASCII packets, each a four-character tag followed by
// whitespace-separated parameters.
package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// MaxPacketSize is the largest packet the wire format allows, terminator
// included.
const MaxPacketSize = 1024

// Terminator is the single byte that ends every packet.
const Terminator byte = 0

// Tag identifies the command or response a Message carries. Every tag is
// exactly four uppercase ASCII characters.
type Tag string

const (
	TagGHDL Tag = "GHDL"
	TagPTFI Tag = "PTFI"
	TagWAVE Tag = "WAVE"
	TagRHDL Tag = "RHDL"
	TagPLAY Tag = "PLAY"
	TagSTOP Tag = "STOP"
	TagPAUS Tag = "PAUS"
	TagSSEC Tag = "SSEC"
	TagSSPO Tag = "SSPO"
	TagSSVE Tag = "SSVE"
	TagSSDI Tag = "SSDI"
	TagSSDV Tag = "SSDV"
	TagSSVO Tag = "SSVO"
	TagSSLP Tag = "SSLP"
	TagSPIT Tag = "SPIT"
	TagFADE Tag = "FADE"
	TagSPAR Tag = "SPAR"
	TagSTAT Tag = "STAT"
	TagSLPO Tag = "SLPO"
	TagSLVE Tag = "SLVE"
	TagSLOR Tag = "SLOR"
	TagGAIN Tag = "GAIN"
	TagPARA Tag = "PARA"
	TagSYNC Tag = "SYNC"
	TagTEST Tag = "TEST"
	TagQUIT Tag = "QUIT"

	// TagSSDR and TagSSRV parse successfully but are explicitly unsupported;
	// the dispatcher warns and ignores them.
	TagSSDR Tag = "SSDR"
	TagSSRV Tag = "SSRV"
)

// UnsupportedTags are recognized by Parse but never produce a scene
// mutation.
var UnsupportedTags = map[Tag]bool{
	TagSSDR: true,
	TagSSRV: true,
}

// respondingTags produce a response packet even on failure (sentinel -1,
// or 0/UNKNOWN for STAT).
var respondingTags = map[Tag]bool{
	TagGHDL: true,
	TagWAVE: true,
	TagSTAT: true,
	TagSYNC: true,
}

// RespondsOnFailure reports whether a failed dispatch of tag still owes
// the client a sentinel response.
func RespondsOnFailure(tag Tag) bool {
	return respondingTags[tag]
}

// ErrBadFormat is returned when a packet's tag is unrecognized or its
// parameters don't match the tag's expected arity/type.
var ErrBadFormat = fmt.Errorf("protocol: bad format")

// ErrOversized is returned when a packet (terminator included) exceeds
// MaxPacketSize.
var ErrOversized = fmt.Errorf("protocol: packet exceeds %d bytes", MaxPacketSize)

// Message is a parsed wire packet. Not every field is meaningful for
// every Tag; see the per-tag comments below. Handle defaults to -1 when
// the tag carries no handle.
type Message struct {
	Tag      Tag
	Handle   int       // GHDL reuses Filename instead; all other handle-scoped tags set this
	Filename string    // GHDL, PTFI
	Size     int       // PTFI: number of raw bytes that follow on the stream
	Waveform int       // WAVE: waveform shape id
	Ints     []int     // SSLP (loop flag), PARA/SPAR (parameter id)
	Floats   []float64 // positions, velocities, gains, durations, angles — order matches the wire table
}

// Parse decodes a single packet (without its trailing NUL terminator,
// which the framer has already stripped) into a Message. On a parse
// failure the returned Message still carries the best-effort Tag
// recognized from the packet's first field (zero value if the tag itself
// is unrecognized), so a caller can tell whether the failure is for a tag
// that RespondsOnFailure and owes the client a sentinel even though the
// rest of the packet is unusable.
func Parse(packet []byte) (Message, error) {
	if len(packet)+1 > MaxPacketSize {
		return Message{}, ErrOversized
	}

	fields := bytes.Fields(packet)
	if len(fields) == 0 {
		return Message{}, ErrBadFormat
	}

	tag := Tag(fields[0])
	params := fields[1:]

	switch tag {
	case TagGHDL:
		return parseFilenameOnly(tag, params)
	case TagPTFI:
		return parsePTFI(params)
	case TagWAVE:
		return parseWave(params)
	case TagRHDL, TagPLAY, TagSTOP, TagPAUS, TagSTAT:
		return parseHandleOnly(tag, params)
	case TagSSEC, TagSSVO, TagSPIT:
		return parseHandle1F(tag, params)
	case TagSSPO:
		return parseHandle3F(tag, params)
	case TagSSVE, TagSSDI:
		return parseHandleVariadicF(tag, params, 1, 3)
	case TagSSDV:
		return parseHandle2F(tag, params)
	case TagSSLP:
		return parseHandle1I(tag, params)
	case TagFADE:
		return parseHandle2F(tag, params)
	case TagSPAR:
		return parseHandle1I1F(tag, params)
	case TagSLPO, TagSLVE:
		return parse3F(tag, params)
	case TagSLOR:
		return parse6F(tag, params)
	case TagGAIN:
		return parse1F(tag, params)
	case TagPARA:
		return parse1I1F(tag, params)
	case TagSSDR:
		return parseHandle1F(tag, params)
	case TagSSRV:
		return parseSSRV(params)
	case TagSYNC, TagTEST, TagQUIT:
		if len(params) != 0 {
			return Message{Tag: tag}, ErrBadFormat
		}
		return Message{Tag: tag, Handle: -1}, nil
	default:
		// tag itself isn't one of the recognized four-character commands,
		// so there's no tag to report RespondsOnFailure against.
		return Message{}, ErrBadFormat
	}
}

func parseFilenameOnly(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 1 {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: -1, Filename: string(params[0])}, nil
}

func parsePTFI(params [][]byte) (Message, error) {
	if len(params) != 2 {
		return Message{Tag: TagPTFI}, ErrBadFormat
	}
	size, err := strconv.Atoi(string(params[1]))
	if err != nil || size < 0 {
		return Message{Tag: TagPTFI}, ErrBadFormat
	}
	return Message{Tag: TagPTFI, Handle: -1, Filename: string(params[0]), Size: size}, nil
}

func parseWave(params [][]byte) (Message, error) {
	if len(params) != 4 {
		return Message{Tag: TagWAVE}, ErrBadFormat
	}
	waveform, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: TagWAVE}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: TagWAVE}, ErrBadFormat
	}
	return Message{Tag: TagWAVE, Handle: -1, Waveform: waveform, Floats: floats}, nil
}

func parseHandleOnly(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 1 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle}, nil
}

func parseHandle1F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 2 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle, Floats: floats}, nil
}

func parseHandle2F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 3 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle, Floats: floats}, nil
}

func parseHandle3F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 4 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle, Floats: floats}, nil
}

// parseHandleVariadicF handles the SSVE/SSDI tags, which accept either a
// short (deprecated) or long parameter form after the handle.
func parseHandleVariadicF(tag Tag, params [][]byte, short, long int) (Message, error) {
	if len(params) != short+1 && len(params) != long+1 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle, Floats: floats}, nil
}

func parseHandle1I(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 2 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	v, err := strconv.Atoi(string(params[1]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle, Ints: []int{v}}, nil
}

func parseHandle1I1F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 3 {
		return Message{Tag: tag}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	paramID, err := strconv.Atoi(string(params[1]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params[2:])
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: handle, Ints: []int{paramID}, Floats: floats}, nil
}

func parse1F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 1 {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params)
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: -1, Floats: floats}, nil
}

func parse3F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 3 {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params)
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: -1, Floats: floats}, nil
}

func parse6F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 6 {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params)
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: -1, Floats: floats}, nil
}

func parse1I1F(tag Tag, params [][]byte) (Message, error) {
	if len(params) != 2 {
		return Message{Tag: tag}, ErrBadFormat
	}
	paramID, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: tag}, ErrBadFormat
	}
	return Message{Tag: tag, Handle: -1, Ints: []int{paramID}, Floats: floats}, nil
}

// parseSSRV accepts both of the unsupported tag's historical arities
// (handle+1f+1f or handle+3f+1f) purely so Parse doesn't reject it as
// malformed; the dispatcher discards the result either way.
func parseSSRV(params [][]byte) (Message, error) {
	if len(params) != 3 && len(params) != 5 {
		return Message{Tag: TagSSRV}, ErrBadFormat
	}
	handle, err := strconv.Atoi(string(params[0]))
	if err != nil {
		return Message{Tag: TagSSRV}, ErrBadFormat
	}
	floats, err := parseFloats(params[1:])
	if err != nil {
		return Message{Tag: TagSSRV}, ErrBadFormat
	}
	return Message{Tag: TagSSRV, Handle: handle, Floats: floats}, nil
}

func parseFloats(fields [][]byte) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(string(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EncodeInt formats n as a NUL-terminated ASCII integer response packet.
func EncodeInt(n int) []byte {
	return append([]byte(strconv.Itoa(n)), Terminator)
}

// EncodeSync returns the literal "SYNC" response packet.
func EncodeSync() []byte {
	return append([]byte(string(TagSYNC)), Terminator)
}

// FailureResponse is the sentinel packet for a command that normally
// responds but whose operation failed (-1, or 0/UNKNOWN for STAT).
func FailureResponse(tag Tag) []byte {
	if tag == TagSTAT {
		return EncodeInt(0)
	}
	return EncodeInt(-1)
}
