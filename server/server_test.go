package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gossiprouter/address"
	"gossiprouter/client"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := New(Config{BindAddr: "127.0.0.1", Port: 0, ExpiryMillis: 0})
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func dial(srv *Server) (*client.Client, error) {
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		return nil, err
	}
	return client.New(conn, nil), nil
}

func TestConcurrentConnectUniqueAddresses(t *testing.T) {
	srv := newTestServer(t)

	nClients := 100
	statusCh := make(chan bool, nClients)
	for i := 0; i < nClients; i++ {
		go func() {
			c, err := dial(srv)
			if err != nil {
				statusCh <- false
				return
			}
			status, err := c.Connect("g", address.NewLogical(), nil, nil)
			statusCh <- err == nil && status.String() == "CONNECT_OK"
		}()
	}
	for i := 0; i < nClients; i++ {
		assert.True(t, <-statusCh)
	}

	assert.Len(t, srv.table.Members("g"), nClients)
}

func TestStartTwiceFailsLoudly(t *testing.T) {
	srv := newTestServer(t)
	assert.Error(t, srv.Start())
}

func TestStopIsIdempotentAndToleratesNeverStarted(t *testing.T) {
	srv := New(Config{BindAddr: "127.0.0.1", Port: 0})
	assert.NoError(t, srv.Stop())

	srv2 := newTestServer(t)
	assert.NoError(t, srv2.Stop())
	assert.NoError(t, srv2.Stop())
}

func TestClearEmptiesIndicesButLeavesListenerUp(t *testing.T) {
	srv := newTestServer(t)

	c, err := dial(srv)
	require.NoError(t, err)
	a := address.NewLogical()
	phys := &address.Physical{Host: "127.0.0.1", Port: 4}
	status, err := c.Connect("g", a, nil, phys)
	require.NoError(t, err)
	assert.Equal(t, "CONNECT_OK", status.String())
	assert.Contains(t, srv.DumpRoutingTable(), a.String())
	assert.Contains(t, srv.DumpAddressMappings(), a.String())

	srv.Clear()

	assert.Empty(t, srv.table.Groups())
	assert.Equal(t, "", srv.DumpRoutingTable())
	assert.Equal(t, "", srv.DumpAddressMappings())

	// The listener itself must still accept new connections after Clear.
	c2, err := dial(srv)
	require.NoError(t, err)
	status, err = c2.Connect("g", address.NewLogical(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "CONNECT_OK", status.String())
}
