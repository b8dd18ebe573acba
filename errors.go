package nircamera

import (
	"fmt"
	"reflect"
)

// ErrContext carries the situational detail for one kind of Error.
type ErrContext interface {
	message() string
}

// Error pairs a typed context with the underlying cause, if any. Two Errors
// with the same context type compare equal under errors.Is regardless of
// their Inner error, which lets callers check "was this a TransportError"
// without caring which specific op failed.
type Error[C ErrContext] struct {
	Inner   error
	Context C
}

func (e Error[C]) Unwrap() error {
	return e.Inner
}

func (e Error[C]) Error() string {
	msg := e.Context.message()
	if e.Inner != nil {
		return fmt.Sprintf("%s: %v", msg, e.Inner.Error())
	}
	return msg
}

func (e Error[C]) Is(other error) bool {
	return reflect.TypeOf(e) == reflect.TypeOf(other)
}

// TransportError wraps any failure to accept, read, send, or reset a
// connection's socket. It never reaches the client; it only ever drives a
// Connection into StateWaitReset.
type TransportError = Error[TransportContext]

type TransportContext struct {
	SlotID int
	Op     string // "accept", "read", "send", or "reset"
}

func (c TransportContext) message() string {
	return fmt.Sprintf("connection %d: %s failed", c.SlotID, c.Op)
}

// ProtocolError means a client's request violated the wire protocol in §6.
// It is surfaced to the client as an ERROR response and the connection is
// then reset.
type ProtocolError = Error[ProtocolContext]

type ProtocolContext struct {
	SlotID int
	Reason string
}

func (c ProtocolContext) message() string {
	return fmt.Sprintf("connection %d: protocol error: %s", c.SlotID, c.Reason)
}

// StartupError is fatal for the server: the listening socket couldn't be
// bound, the reactor couldn't be built, or a worker failed to spawn. Run
// unwinds any partial initialization and returns this.
type StartupError = Error[StartupContext]

type StartupContext struct {
	Addr string
	Op   string // "listen", "reactor", "worker"
}

func (c StartupContext) message() string {
	return fmt.Sprintf("starting server on %s: %s failed", c.Addr, c.Op)
}
