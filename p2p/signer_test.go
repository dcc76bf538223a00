package p2p

import (
	"context"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/state"
	"github.com/aucusaga/gokms/types"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func netPipe() (net.Conn, net.Conn) {
	return net.Pipe()
}

func newCryptoClient(t *testing.T) *crypto.DefaultCryptoClient {
	sk, _, err := ic.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	cc, err := crypto.NewDefaultCryptoClient(sk)
	require.NoError(t, err)
	return cc
}

// startPair serves one end of a pipe and returns a client on the other.
func startPair(t *testing.T, cc *crypto.DefaultCryptoClient) (*SignerClient, *SignerServer) {
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := NewSignerServer(rules, cc.PubKey(), ServerConfig{}, nil, nil)
	require.NoError(t, err)

	a, b := netPipe()
	go srv.HandleConn(b)
	client := NewSignerClient(a, ClientConfig{Timeout: 2 * time.Second}, nil)
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return client, srv
}

func remoteCode(t *testing.T, err error) int64 {
	var rerr *types.RemoteSignerError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	return rerr.Code
}

func TestSignerPubKeyAndPing(t *testing.T) {
	cc := newCryptoClient(t)
	client, _ := startPair(t, cc)
	ctx := context.Background()

	pk, err := client.GetPubKey(ctx)
	require.NoError(t, err)
	assert.True(t, pk.Equals(cc.PubKey()))
	require.NoError(t, client.Ping(ctx))
}

func TestSignerSignProposal(t *testing.T) {
	cc := newCryptoClient(t)
	client, _ := startPair(t, cc)
	ctx := context.Background()

	first, err := client.SignProposal(ctx, types.NewUnsignedProposal(testProposal(t, 5, 0)))
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyProposal(cc.PubKey(), first))

	again, err := client.SignProposal(ctx, types.NewUnsignedProposal(testProposal(t, 5, 0)))
	require.NoError(t, err)
	assert.Equal(t, first.Signature(), again.Signature())

	conflicting := testProposal(t, 5, 0)
	conflicting.BlockPartsHeader.Total = 7
	_, err = client.SignProposal(ctx, types.NewUnsignedProposal(conflicting))
	assert.Equal(t, types.CodeDoubleSign, remoteCode(t, err))

	_, err = client.SignProposal(ctx, types.NewUnsignedProposal(testProposal(t, 4, 0)))
	assert.Equal(t, types.CodeDoubleSign, remoteCode(t, err))

	_, err = client.SignProposal(ctx, types.NewUnsignedProposal(testProposal(t, 0, 0)))
	assert.Equal(t, types.CodeInvalidProposal, remoteCode(t, err))

	// the connection survives refusals
	next, err := client.SignProposal(ctx, types.NewUnsignedProposal(testProposal(t, 6, 0)))
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyProposal(cc.PubKey(), next))
}

func TestSignerRejectsSignedRequest(t *testing.T) {
	cc := newCryptoClient(t)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := NewSignerServer(rules, cc.PubKey(), ServerConfig{}, nil, nil)
	require.NoError(t, err)
	defer srv.Stop()

	a, b := netPipe()
	go srv.HandleConn(b)
	conn := NewDefaultConn(a, 0, nil)
	defer conn.Close()

	signed, err := crypto.SignProposal(cc, types.NewUnsignedProposal(testProposal(t, 1, 0)))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMsg(signed))
	resp, err := conn.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, types.CodeUnexpectedMessage, remoteCode(t, resp.(error)))
	assert.Equal(t, int64(0), rules.LastSignState().Height)
}

func TestSignerClosesOnUnknownPrefix(t *testing.T) {
	cc := newCryptoClient(t)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := NewSignerServer(rules, cc.PubKey(), ServerConfig{}, nil, nil)
	require.NoError(t, err)
	defer srv.Stop()

	a, b := netPipe()
	done := make(chan struct{})
	go func() {
		srv.HandleConn(b)
		close(done)
	}()

	_, err = a.Write([]byte{0x05, 0xde, 0xad, 0xbe, 0xef, 0x00})
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed")
	}
	_, err = NewDefaultConn(a, 0, nil).ReadMsg()
	assert.True(t, errors.Is(err, libs.ErrTransport), "got %v", err)
	assert.Equal(t, 0, srv.conns.Size())
}

// fakeSigner answers every proposal with a signature over other.
func fakeSigner(t *testing.T, sk ic.PrivKey, other types.Proposal) net.Conn {
	a, b := netPipe()
	go func() {
		conn := NewDefaultConn(b, 0, nil)
		defer conn.Close()
		for {
			msg, err := conn.ReadMsg()
			if err != nil {
				return
			}
			if _, ok := msg.(*types.UnsignedProposal); !ok {
				return
			}
			cc, err := crypto.NewDefaultCryptoClient(sk)
			if err != nil {
				return
			}
			signed, err := crypto.SignProposal(cc, types.NewUnsignedProposal(other))
			if err != nil {
				return
			}
			if conn.WriteMsg(signed) != nil {
				return
			}
		}
	}()
	return a
}

func TestClientDetectsBadSigner(t *testing.T) {
	cc := newCryptoClient(t)
	ctx := context.Background()
	req := testProposal(t, 3, 1)

	t.Run("different proposal", func(t *testing.T) {
		other := testProposal(t, 3, 2)
		client := NewSignerClient(fakeSigner(t, cc.SK, other), ClientConfig{PubKey: cc.PubKey()}, nil)
		defer client.Close()
		_, err := client.SignProposal(ctx, types.NewUnsignedProposal(req))
		assert.True(t, errors.Is(err, libs.ErrSignatureVerificationFailed), "got %v", err)
	})

	t.Run("foreign key", func(t *testing.T) {
		impostor := newCryptoClient(t)
		client := NewSignerClient(fakeSigner(t, impostor.SK, req), ClientConfig{PubKey: cc.PubKey()}, nil)
		defer client.Close()
		_, err := client.SignProposal(ctx, types.NewUnsignedProposal(req))
		assert.True(t, errors.Is(err, libs.ErrSignatureVerificationFailed), "got %v", err)
	})
}

func TestClientTimeout(t *testing.T) {
	a, b := netPipe()
	defer b.Close()
	client := NewSignerClient(a, ClientConfig{Timeout: 50 * time.Millisecond}, nil)
	defer client.Close()

	// nobody reads b, so the write itself times out
	err := client.Ping(context.Background())
	assert.True(t, errors.Is(err, libs.ErrTransport), "got %v", err)
}

func TestServeTCP(t *testing.T) {
	cc := newCryptoClient(t)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := NewSignerServer(rules, cc.PubKey(), ServerConfig{}, nil, nil)
	require.NoError(t, err)

	l, err := Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := DialSignerClient(ctx, "tcp://"+l.Addr().String(), ClientConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx))
	signed, err := client.SignProposal(ctx, types.NewUnsignedProposal(testProposal(t, 9, 0)))
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyProposal(cc.PubKey(), signed))

	srv.Stop()
	require.NoError(t, <-served)
	assert.Error(t, client.Ping(ctx))
	client.Close()
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in, network, addr string
		fail              bool
	}{
		{"tcp://127.0.0.1:26659", "tcp", "127.0.0.1:26659", false},
		{"unix:///tmp/gokms.sock", "unix", "/tmp/gokms.sock", false},
		{"127.0.0.1:1", "tcp", "127.0.0.1:1", false},
		{"udp://1.2.3.4:5", "", "", true},
		{"tcp://", "", "", true},
	}
	for _, tt := range tests {
		network, addr, err := ParseAddr(tt.in)
		if tt.fail {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.network, network)
		assert.Equal(t, tt.addr, addr)
	}
}

// slowSigner answers the first request after delay and the rest at once.
func slowSigner(t *testing.T, delay time.Duration, pub []byte) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		conn := NewDefaultConn(c, 0, nil)
		defer conn.Close()
		for i := 0; ; i++ {
			msg, err := conn.ReadMsg()
			if err != nil {
				return
			}
			if i == 0 {
				time.Sleep(delay)
			}
			var resp types.Msg = &types.PingResponse{}
			if _, ok := msg.(*types.PubKeyRequest); ok {
				resp = &types.PubKeyMsg{PubKey: pub}
			}
			if conn.WriteMsg(resp) != nil {
				return
			}
		}
	}()
	return "tcp://" + l.Addr().String()
}

func TestClientClosesAfterLateReply(t *testing.T) {
	cc := newCryptoClient(t)
	pub, err := crypto.PubKeyBytes(cc.PubKey())
	require.NoError(t, err)
	addr := slowSigner(t, 200*time.Millisecond, pub)

	ctx := context.Background()
	client, err := DialSignerClient(ctx, addr, ClientConfig{Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer client.Close()

	err = client.Ping(ctx)
	assert.True(t, errors.Is(err, libs.ErrTransport), "got %v", err)
	select {
	case <-client.Done():
	default:
		t.Fatal("client still open after a failed exchange")
	}
	require.Error(t, client.Err())

	// the late PingResponse must never be read as the answer to this request
	time.Sleep(250 * time.Millisecond)
	_, err = client.GetPubKey(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, libs.ErrTransport), "got %v", err)
	assert.NotContains(t, err.Error(), "unexpected response")
	assert.Nil(t, client.PubKey())
}

func TestClientKeepAlive(t *testing.T) {
	cc := newCryptoClient(t)
	client, srv := startPair(t, cc)
	pt := client.KeepAlive(10 * time.Millisecond)
	defer pt.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Err())

	srv.Stop()
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive did not close the client")
	}
	assert.True(t, errors.Is(client.Ping(context.Background()), libs.ErrTransport))
}

func TestServerDropsConnAfterStop(t *testing.T) {
	cc := newCryptoClient(t)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := NewSignerServer(rules, cc.PubKey(), ServerConfig{}, nil, nil)
	require.NoError(t, err)
	srv.Stop()
	srv.Stop()

	a, b := netPipe()
	done := make(chan struct{})
	go func() {
		srv.HandleConn(b)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream accepted after Stop")
	}
	assert.Equal(t, 0, srv.conns.Size())
	_, err = NewDefaultConn(a, 0, nil).ReadMsg()
	assert.True(t, errors.Is(err, libs.ErrTransport), "got %v", err)

	l, err := Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, srv.Serve(l))
}

func TestServerStopClosesLiveConns(t *testing.T) {
	cc := newCryptoClient(t)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := NewSignerServer(rules, cc.PubKey(), ServerConfig{}, nil, nil)
	require.NoError(t, err)

	clients := make([]*SignerClient, 3)
	for i := range clients {
		a, b := netPipe()
		go srv.HandleConn(b)
		clients[i] = NewSignerClient(a, ClientConfig{Timeout: time.Second}, nil)
		require.NoError(t, clients[i].Ping(context.Background()))
	}
	assert.Equal(t, 3, srv.conns.Size())

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 0, srv.conns.Size())
	for _, c := range clients {
		assert.Error(t, c.Ping(context.Background()))
	}
}
