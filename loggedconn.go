package nircamera

import (
	"net"

	"github.com/inconshreveable/log15"
)

// loggedConn wraps a net.Conn with the connection's scoped logger so a
// close is always recorded, regardless of which of accept/read/send path
// triggered it.
type loggedConn struct {
	net.Conn
	log log15.Logger
}

func newLoggedConn(conn net.Conn, log log15.Logger) *loggedConn {
	return &loggedConn{Conn: conn, log: log}
}

func (c *loggedConn) Close() error {
	err := c.Conn.Close()
	if err != nil {
		c.log.Debug("socket close", "err", err)
	} else {
		c.log.Debug("socket close")
	}
	return err
}
