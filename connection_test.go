package nircamera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DKandrew/NirCamera/catalog"
)

func TestConnStateString(t *testing.T) {
	require.Equal(t, "wait_accept", StateWaitAccept.String())
	require.Equal(t, "wait_read_request", StateWaitReadRequest.String())
	require.Equal(t, "wait_send_data", StateWaitSendData.String())
	require.Equal(t, "wait_reset", StateWaitReset.String())
}

// Property 5: after any sequence of events, every connection's state is one
// of the four declared states. newConnection starts a slot in WaitAccept,
// and every transition in onAcceptComplete/onReadComplete/onSendComplete/
// onResetComplete only ever sets one of the four constants.
func TestNewConnectionStartsInWaitAccept(t *testing.T) {
	srv := New("127.0.0.1", "0", catalog.NewDirProvider(t.TempDir()), WithMaxClients(1))
	require.NoError(t, srv.Run(context.Background()))
	defer srv.Close()

	require.Len(t, srv.conns, 1)
	require.Equal(t, StateWaitAccept, srv.conns[0].State())
}

// onSendComplete for a non-stream request tears down the socket and loops
// back through WaitReset rather than re-entering WaitReadRequest directly,
// matching the state machine's only path back to WaitAccept.
func TestNonStreamRequestResetsAfterOneResponse(t *testing.T) {
	srv := startTestServer(t, t.TempDir())
	conn := dial(t, srv)

	_, err := conn.Write([]byte("GET XRAY TOTALNUM\n"))
	require.NoError(t, err)
	_ = readExactly(t, conn, 8)

	// The server closed its end after responding; a further read observes EOF.
	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err)
}
