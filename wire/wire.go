// Package wire implements the line-oriented request/response protocol: a
// handful of fixed keyword requests, one of which carries a 4-byte
// little-endian binary argument, and three response shapes (streaming
// payload, length-prefixed OK, and ERROR, optionally followed by a reason
// line). It follows the same
// fixed-header-then-body discipline as internal/muxado/frame (explicit byte
// order, no implicit padding) but with a far smaller frame set, since this
// protocol doesn't multiplex streams over one connection.
package wire

import (
	"bytes"
	"encoding/binary"
)

// Kind tags the recognized request shapes.
type Kind int

const (
	KindInvalid Kind = iota
	KindStream
	KindGetXrayTotal
	KindGetXray
)

// Request is the parsed form of one client request line.
type Request struct {
	Kind  Kind
	Index uint32 // valid only when Kind == KindGetXray
}

// Status reports what Parse learned from the bytes accumulated so far.
type Status int

const (
	// StatusIncomplete means buf is a valid prefix of some request but
	// doesn't yet contain a full one; the caller should read more bytes
	// and parse again.
	StatusIncomplete Status = iota
	// StatusOK means buf is exactly one complete, valid request.
	StatusOK
	// StatusInvalid means buf can never become a valid request, or it
	// already exceeded maxBytes while still incomplete.
	StatusInvalid
)

var (
	lineStream    = []byte("STREAM\n")
	lineXrayTotal = []byte("GET XRAY TOTALNUM\n")
	lineXrayHead  = []byte("GET XRAY\n") // followed by 4 bytes LE index + '\n'
)

// xrayRequestLen is len("GET XRAY\n") + 4 + 1, the exact total length of a
// GET XRAY request per spec.
var xrayRequestLen = len(lineXrayHead) + 4 + 1

// Parse attempts to interpret buf, the bytes accumulated from a connection
// so far, as a single request. It is safe to call repeatedly as buf grows.
func Parse(buf []byte, maxBytes int) (Request, Status) {
	if bytes.Equal(buf, lineStream) {
		return Request{Kind: KindStream}, StatusOK
	}
	if bytes.Equal(buf, lineXrayTotal) {
		return Request{Kind: KindGetXrayTotal}, StatusOK
	}
	if len(buf) >= len(lineXrayHead) && bytes.Equal(buf[:len(lineXrayHead)], lineXrayHead) {
		return parseXrayIndex(buf, maxBytes)
	}
	if isPrefixOfAny(buf) {
		if len(buf) > maxBytes {
			return Request{}, StatusInvalid
		}
		return Request{}, StatusIncomplete
	}
	return Request{}, StatusInvalid
}

func parseXrayIndex(buf []byte, maxBytes int) (Request, Status) {
	if len(buf) < xrayRequestLen {
		if len(buf) > maxBytes {
			return Request{}, StatusInvalid
		}
		return Request{}, StatusIncomplete
	}
	if len(buf) > xrayRequestLen || buf[xrayRequestLen-1] != '\n' {
		return Request{}, StatusInvalid
	}
	idx := binary.LittleEndian.Uint32(buf[len(lineXrayHead) : len(lineXrayHead)+4])
	return Request{Kind: KindGetXray, Index: idx}, StatusOK
}

func isPrefixOfAny(buf []byte) bool {
	return bytes.HasPrefix(lineStream, buf) ||
		bytes.HasPrefix(lineXrayTotal, buf) ||
		bytes.HasPrefix(lineXrayHead, buf)
}

// NotFoundReason is the human-readable body sent with the ERROR response
// for a GET XRAY request whose index is out of range.
const NotFoundReason = "The required index is not available."

// EncodeOKCount builds the OK response for GET XRAY TOTALNUM.
func EncodeOKCount(total uint32) []byte {
	buf := make([]byte, 0, 3+4+1)
	buf = append(buf, 'O', 'K', '\n')
	buf = binary.LittleEndian.AppendUint32(buf, total)
	buf = append(buf, '\n')
	return buf
}

// EncodeOKImage builds the OK response for a valid GET XRAY fetch.
func EncodeOKImage(data []byte) []byte {
	buf := make([]byte, 0, 3+4+len(data))
	buf = append(buf, 'O', 'K', '\n')
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	return buf
}

// EncodeError builds a bare ERROR response with no reason body, used for
// Invalid requests (matching the original implementation's wire behavior).
func EncodeError() []byte {
	return []byte("ERROR\n")
}

// EncodeErrorReason builds an ERROR response followed by a human-readable
// reason and a trailing newline, used for a GET XRAY index that's out of
// range.
func EncodeErrorReason(reason string) []byte {
	buf := make([]byte, 0, len("ERROR\n")+len(reason)+1)
	buf = append(buf, "ERROR\n"...)
	buf = append(buf, reason...)
	buf = append(buf, '\n')
	return buf
}
