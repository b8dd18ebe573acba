package nircamera

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/DKandrew/NirCamera/reactor"
	"github.com/DKandrew/NirCamera/wire"
)

// connState is one of the four states a Connection cycles through for as
// long as the server is running. There is no terminal state: WaitReset
// always completes back to WaitAccept.
type connState int

const (
	StateWaitAccept connState = iota
	StateWaitReadRequest
	StateWaitSendData
	StateWaitReset
)

func (s connState) String() string {
	switch s {
	case StateWaitAccept:
		return "wait_accept"
	case StateWaitReadRequest:
		return "wait_read_request"
	case StateWaitSendData:
		return "wait_send_data"
	case StateWaitReset:
		return "wait_reset"
	default:
		return "unknown"
	}
}

const readChunkSize = 4096

// streamRetryInterval is how long a streaming connection with nothing to
// send yet waits before checking its cached frame again, instead of sending
// a zero-length payload (see the design note on suppressing empty sends).
const streamRetryInterval = 10 * time.Millisecond

// Connection is one pre-created slot in the server's connection table. It is
// reused across TCP sessions: the net.Conn underneath it is closed and
// replaced on every reset rather than the slot itself being reallocated,
// which is the closest a userspace Go program gets to the original
// disconnect-and-reuse socket primitive (Go offers no way to rearm an
// existing file descriptor for a fresh accept).
//
// A Connection has at most one asynchronous operation outstanding at a time,
// so everything below except netConn during shutdown is touched by exactly
// one goroutine at a time: the goroutine servicing whichever operation is
// currently in flight.
type Connection struct {
	slotID int
	server *Server
	log    log15.Logger

	// connMu guards netConn only, since it's the one field Close can touch
	// from outside the normal one-goroutine-at-a-time dispatch path (forcing
	// open sockets closed while an accept/read/send goroutine may still be
	// using them).
	connMu  sync.Mutex
	netConn net.Conn
	peerIP  string

	state       connState
	readAccum   []byte
	pendingRead []byte
	parsed      wire.Request
	cachedFrame []byte
}

func newConnection(slotID int, srv *Server) *Connection {
	return &Connection{
		slotID: slotID,
		server: srv,
		log:    connLogger(srv.log, slotID),
		state:  StateWaitAccept,
	}
}

// State reports the connection's current state. Intended for tests and
// diagnostics; callers outside the reactor dispatch path may observe a
// stale value.
func (c *Connection) State() connState {
	return c.state
}

func (c *Connection) setState(s connState) {
	c.state = s
}

// OnComplete is called by exactly one reactor worker at a time per
// connection, on the worker servicing whatever operation the connection
// currently has outstanding. cached is that worker's most recently observed
// published frame, or nil if that worker has not observed one yet.
func (c *Connection) OnComplete(cached []byte) {
	if cached != nil {
		c.cachedFrame = cached
	}

	switch c.state {
	case StateWaitAccept:
		c.onAcceptComplete()
	case StateWaitReadRequest:
		c.onReadComplete()
	case StateWaitSendData:
		c.onSendComplete()
	case StateWaitReset:
		c.onResetComplete()
	}
}

// Reset is called by the reactor when any outstanding operation for this
// connection failed. It tears down the socket and loops the slot back
// through WaitReset to WaitAccept, the same as a clean disconnect.
func (c *Connection) Reset(err error) {
	if err != nil && err != io.EOF {
		c.log.Warn("connection error", "err", err, "state", c.state.String())
	}
	c.teardown()
	c.setState(StateWaitReset)
	c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpReset})
}

func (c *Connection) onAcceptComplete() {
	c.setState(StateWaitReadRequest)
	c.issueRead()
}

func (c *Connection) onReadComplete() {
	c.readAccum = append(c.readAccum, c.pendingRead...)
	c.pendingRead = nil

	req, status := wire.Parse(c.readAccum, c.server.requestMaxBytes)
	switch status {
	case wire.StatusIncomplete:
		c.issueRead()
		return
	case wire.StatusInvalid:
		c.log.Warn("invalid request", "bytes", len(c.readAccum), "peer", c.peerIP)
		c.parsed = wire.Request{}
		c.transitionToSend(wire.EncodeError())
		return
	}

	c.parsed = req
	c.transitionToSend(c.buildResponse(req))
}

func (c *Connection) buildResponse(req wire.Request) []byte {
	switch req.Kind {
	case wire.KindStream:
		return c.cachedFrame
	case wire.KindGetXrayTotal:
		return wire.EncodeOKCount(c.server.catalog.Count())
	case wire.KindGetXray:
		data, err := c.server.catalog.Read(req.Index)
		if err != nil {
			return wire.EncodeErrorReason(wire.NotFoundReason)
		}
		return wire.EncodeOKImage(data)
	default:
		return wire.EncodeError()
	}
}

func (c *Connection) transitionToSend(resp []byte) {
	c.setState(StateWaitSendData)
	if resp == nil {
		c.issueStreamTick()
		return
	}
	c.issueSend(resp)
}

func (c *Connection) onSendComplete() {
	if c.parsed.Kind == wire.KindStream {
		c.transitionToSend(c.cachedFrame)
		return
	}

	c.teardown()
	c.setState(StateWaitReset)
	c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpReset})
}

func (c *Connection) onResetComplete() {
	c.peerIP = ""
	c.cachedFrame = nil
	c.setState(StateWaitAccept)
	c.issueAccept()
}

func (c *Connection) teardown() {
	c.closeNetConn()
	c.readAccum = c.readAccum[:0]
	c.parsed = wire.Request{}
}

func (c *Connection) closeNetConn() {
	c.connMu.Lock()
	nc := c.netConn
	c.netConn = nil
	c.connMu.Unlock()

	if nc != nil {
		_ = nc.Close()
	}
}

func (c *Connection) setNetConn(nc net.Conn) {
	c.connMu.Lock()
	c.netConn = nc
	c.connMu.Unlock()
}

func (c *Connection) getNetConn() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.netConn
}

// issueAccept submits the connection's next accept. Several slots may have
// an accept outstanding on the shared listener at once; Go's net.Listener
// supports concurrent Accept callers the same way AcceptEx supports multiple
// outstanding accepts per listen socket, and whichever goroutine's Accept
// returns first claims the next incoming connection for its slot.
func (c *Connection) issueAccept() {
	go func() {
		nc, err := c.server.listener.Accept()
		if err == nil {
			c.setNetConn(newLoggedConn(nc, c.log))
			c.peerIP = peerIPOf(nc)
		}
		c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpAccept, Err: err})
	}()
}

func (c *Connection) issueRead() {
	go func() {
		nc := c.getNetConn()
		if nc == nil {
			c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpRead, Err: io.ErrClosedPipe})
			return
		}
		buf := make([]byte, readChunkSize)
		n, err := nc.Read(buf)
		if n > 0 {
			c.pendingRead = buf[:n]
		}
		c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpRead, N: n, Err: err})
	}()
}

func (c *Connection) issueSend(payload []byte) {
	go func() {
		nc := c.getNetConn()
		if nc == nil {
			c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpSend, Err: io.ErrClosedPipe})
			return
		}
		n, err := writeFull(nc, payload)
		c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpSend, N: n, Err: err})
	}()
}

// issueStreamTick stands in for a send when a STREAM connection has no
// cached frame yet: rather than writing a zero-length payload to the
// socket, it waits briefly and re-enters the dispatch loop so the worker
// gets another chance to drain a fresher frame off its queue.
func (c *Connection) issueStreamTick() {
	go func() {
		time.Sleep(streamRetryInterval)
		c.server.pool.Post(reactor.Event{Conn: c, Op: reactor.OpSend})
	}()
}

func writeFull(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func peerIPOf(nc net.Conn) string {
	host, _, err := net.SplitHostPort(nc.RemoteAddr().String())
	if err != nil {
		return nc.RemoteAddr().String()
	}
	return host
}
