package cmd

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/p2p"
	"github.com/aucusaga/gokms/state"
	"github.com/aucusaga/gokms/types"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignArgsProposal(t *testing.T) {
	a := &signArgs{
		height:    12345,
		round:     23456,
		polRound:  types.NoPOLRound,
		timestamp: "2018-02-11T07:09:22.765Z",
		total:     111,
		partsHash: "626c6f636b7061727473",
	}
	p, err := a.proposal()
	require.NoError(t, err)
	assert.Equal(t, []byte("blockparts"), p.BlockPartsHeader.Hash)
	assert.Equal(t, int32(765000000), p.Timestamp.Nanos)

	a.height = 0
	_, err = a.proposal()
	assert.Error(t, err)

	a.height = 1
	a.partsHash = "zz"
	_, err = a.proposal()
	assert.Error(t, err)
}

func TestGenerateKeysRejectsUnknownType(t *testing.T) {
	assert.Error(t, GenerateKeys("address"))
	_, err := KeyDirReady("bogus")
	assert.Error(t, err)
}

func TestWatchSignerReportsLostSigner(t *testing.T) {
	sk, _, err := ic.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	cc, err := crypto.NewDefaultCryptoClient(sk)
	require.NoError(t, err)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := p2p.NewSignerServer(rules, cc.PubKey(), p2p.ServerConfig{}, nil, nil)
	require.NoError(t, err)
	l, err := p2p.Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)

	cfg, err := libs.GetConfig("")
	require.NoError(t, err)
	cfg.PingIntervalMs = 20
	cfg.TimeoutMs = 500

	done := make(chan error, 1)
	go func() { done <- watchSigner(context.Background(), cfg, "tcp://"+l.Addr().String()) }()

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("watch ended early: %v", err)
	default:
	}

	srv.Stop()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("lost signer not reported")
	}
}

func TestWatchSignerStopsWithContext(t *testing.T) {
	sk, _, err := ic.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	cc, err := crypto.NewDefaultCryptoClient(sk)
	require.NoError(t, err)
	rules, err := state.NewDefaultSafetyRules(cc, &state.MemSignStateStore{}, nil)
	require.NoError(t, err)
	srv, err := p2p.NewSignerServer(rules, cc.PubKey(), p2p.ServerConfig{}, nil, nil)
	require.NoError(t, err)
	defer srv.Stop()
	l, err := p2p.Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)

	cfg, err := libs.GetConfig("")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, watchSigner(ctx, cfg, "tcp://"+l.Addr().String()))
}
