package tcp_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chanrelay/internal/chat"
	"github.com/omochice/chanrelay/internal/transport/tcp"
	"github.com/omochice/chanrelay/pkg/protocol"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)

	frame, err := protocol.Encode(protocol.NewRegister("alice"))
	require.NoError(t, err)

	go func() {
		// split the frame across writes to exercise reassembly
		server.Write(frame[:3])
		server.Write(frame[3:])
		server.Close()
	}()

	payload, err := conn.Read(context.Background())
	require.NoError(t, err)
	msg, err := protocol.Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.NewRegister("alice"), msg)

	_, err = conn.Read(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestConn_ReadTruncatedFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := tcp.NewConn(client, 0)

	frame, err := protocol.Encode(protocol.Join{Channel: "general"})
	require.NoError(t, err)

	go func() {
		server.Write(frame[:len(frame)-2])
		server.Close()
	}()

	_, err = conn.Read(context.Background())
	assert.ErrorIs(t, err, protocol.ErrTransport)
}

func TestConn_ReadDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Read(ctx)
	assert.ErrorIs(t, err, protocol.ErrTransport)
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)
	payload, err := protocol.Marshal(protocol.Text{Channel: "general", Message: "hello"})
	require.NoError(t, err)

	go func() {
		err := conn.Write(context.Background(), payload)
		if err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	msg, err := protocol.ReadFrame(server)
	require.NoError(t, err)
	assert.Equal(t, protocol.Text{Channel: "general", Message: "hello"}, msg)
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client, 0)

	err := conn.Close()
	assert.NoError(t, err)

	_, err = client.Read(make([]byte, 1))
	assert.Error(t, err, "expected error after close")
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)
	assert.NotEmpty(t, conn.RemoteAddr())
}
