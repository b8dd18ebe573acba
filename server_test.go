package nircamera

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DKandrew/NirCamera/catalog"
)

func startTestServer(t *testing.T, catalogDir string) *Server {
	t.Helper()

	srv := New("127.0.0.1", "0", catalog.NewDirProvider(catalogDir),
		WithWorkers(2),
		WithMaxClients(4),
	)
	require.NoError(t, srv.Run(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// S1: count, empty catalog.
func TestServerCountEmptyCatalog(t *testing.T) {
	srv := startTestServer(t, t.TempDir())
	conn := dial(t, srv)

	_, err := conn.Write([]byte("GET XRAY TOTALNUM\n"))
	require.NoError(t, err)

	resp := readExactly(t, conn, 8)
	require.Equal(t, []byte{'O', 'K', '\n', 0, 0, 0, 0, '\n'}, resp)
}

// S2: count, non-empty catalog.
func TestServerCountNonEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 7; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d.jpg", i)), []byte{byte(i)}, 0o644))
	}

	srv := startTestServer(t, dir)
	conn := dial(t, srv)

	_, err := conn.Write([]byte("GET XRAY TOTALNUM\n"))
	require.NoError(t, err)

	resp := readExactly(t, conn, 8)
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(resp[3:7]))
}

// S3: valid fetch.
func TestServerGetXrayValidIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jpg"), []byte{0xFF, 0xEE, 0xDD}, 0o644))

	srv := startTestServer(t, dir)
	conn := dial(t, srv)

	req := append([]byte("GET XRAY\n"), 1, 0, 0, 0, '\n')
	_, err := conn.Write(req)
	require.NoError(t, err)

	resp := readExactly(t, conn, 3+4+3)
	require.Equal(t, []byte{'O', 'K', '\n'}, resp[:3])
	require.EqualValues(t, 3, binary.LittleEndian.Uint32(resp[3:7]))
	require.Equal(t, []byte{0xFF, 0xEE, 0xDD}, resp[7:])
}

// S4: invalid fetch, empty catalog.
func TestServerGetXrayInvalidIndex(t *testing.T) {
	srv := startTestServer(t, t.TempDir())
	conn := dial(t, srv)

	req := append([]byte("GET XRAY\n"), 1, 0, 0, 0, '\n')
	_, err := conn.Write(req)
	require.NoError(t, err)

	want := append([]byte("ERROR\n"), []byte("The required index is not available.\n")...)
	resp := readExactly(t, conn, len(want))
	require.Equal(t, want, resp)
}

// S5: garbage request.
func TestServerGarbageRequest(t *testing.T) {
	srv := startTestServer(t, t.TempDir())
	conn := dial(t, srv)

	_, err := conn.Write([]byte("HELLO\n"))
	require.NoError(t, err)

	resp := readExactly(t, conn, len("ERROR\n"))
	require.Equal(t, []byte("ERROR\n"), resp)
}

// S6 (simplified): a STREAM connection receives whole published frames,
// never a torn or interleaved mixture of two frames.
func TestServerStreamDeliversWholeFrames(t *testing.T) {
	srv := startTestServer(t, t.TempDir())
	conn := dial(t, srv)

	_, err := conn.Write([]byte("STREAM\n"))
	require.NoError(t, err)

	frame := []byte("FRAME-PAYLOAD-0001")
	reader := bufio.NewReader(conn)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		srv.Publish(frame)
		time.Sleep(5 * time.Millisecond)

		_ = conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		buf := make([]byte, len(frame))
		n, err := io.ReadFull(reader, buf)
		if err != nil {
			continue
		}
		require.Equal(t, len(frame), n)
		require.Equal(t, frame, buf)
		return
	}
	t.Fatal("never received a whole frame over the stream")
}

// Property 7: after Close returns, no listener socket remains open.
func TestCloseStopsAcceptingConnections(t *testing.T) {
	srv := New("127.0.0.1", "0", catalog.NewDirProvider(t.TempDir()), WithWorkers(2), WithMaxClients(2))
	require.NoError(t, srv.Run(context.Background()))
	addr := srv.Addr().String()

	require.NoError(t, srv.Close())

	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	require.Error(t, err)
}

func readExactly(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, n)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	return buf
}
