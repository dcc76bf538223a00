package node

import (
	"context"
	"crypto/rand"
	"io/ioutil"
	"os"
	"path/filepath"
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

func testConfig(t *testing.T) *libs.Config {
	dir, err := ioutil.TempDir("", "gokms-node")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	keys := filepath.Join(dir, "keys")
	netkeys := filepath.Join(dir, "netkeys")
	require.NoError(t, libs.MakeDir(keys))
	require.NoError(t, libs.MakeDir(netkeys))
	require.NoError(t, crypto.GenKeyPair(keys))
	require.NoError(t, p2p.GenerateKeyPairWithPath(netkeys))

	cfg, err := libs.GetConfig("")
	require.NoError(t, err)
	cfg.Listen = "tcp://127.0.0.1:0"
	cfg.Keypath = keys
	cfg.Netpath = netkeys
	cfg.StateFile = filepath.Join(dir, "data", "sign_state.json")
	return cfg
}

func proposal(height, round int64) *types.UnsignedProposal {
	return types.NewUnsignedProposal(types.Proposal{
		Height:           height,
		Round:            round,
		Timestamp:        types.Time{Seconds: 1518332962, Nanos: 765000000},
		BlockPartsHeader: types.PartsSetHeader{Total: 1, Hash: []byte("parts")},
		POLRound:         types.NoPOLRound,
	})
}

func TestNodeSignsAndPersists(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := NewNode(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))

	client, err := p2p.DialSignerClient(ctx, "tcp://"+n.ListenAddr().String(), p2p.ClientConfig{}, nil)
	require.NoError(t, err)
	signed, err := client.SignProposal(ctx, proposal(3, 0))
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyProposal(client.PubKey(), signed))
	client.Close()
	n.Stop()

	lss, err := state.NewFileSignStateStore(cfg.StateFile).Load()
	require.NoError(t, err)
	assert.Equal(t, int64(3), lss.Height)

	// a restarted signer refuses to go back
	restarted, err := NewNode(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, restarted.Start(ctx))
	defer restarted.Stop()
	client, err = p2p.DialSignerClient(ctx, "tcp://"+restarted.ListenAddr().String(), p2p.ClientConfig{}, nil)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.SignProposal(ctx, proposal(2, 0))
	assert.Error(t, err)
}

func TestNodeOverLibp2p(t *testing.T) {
	cfg := testConfig(t)
	cfg.P2PAddress = "/ip4/127.0.0.1/tcp/0"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := NewNode(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))
	defer n.Stop()
	require.NotEmpty(t, n.P2PAddr())

	dir, err := ioutil.TempDir("", "gokms-validator")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	require.NoError(t, p2p.GenerateKeyPairWithPath(dir))
	priv, err := p2p.GetKeyPairFromPath(dir)
	require.NoError(t, err)

	validator, err := p2p.NewSwitch(&p2p.Config{Address: "/ip4/127.0.0.1/tcp/0", PrivateKey: priv}, nil)
	require.NoError(t, err)
	require.NoError(t, validator.Start(ctx))
	defer validator.Stop()

	client, err := validator.DialSigner(ctx, n.P2PAddr(), p2p.ClientConfig{})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Ping(ctx))
	signed, err := client.SignProposal(ctx, proposal(1, 0))
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyProposal(client.PubKey(), signed))
}

func TestNodeMissingKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keypath = filepath.Join(cfg.Keypath, "nowhere")
	_, err := NewNode(cfg, nil)
	assert.Error(t, err)
}

func TestNodeUsesRegisteredCryptoClient(t *testing.T) {
	sk, _, err := ic.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	hsm, err := crypto.NewDefaultCryptoClient(sk)
	require.NoError(t, err)
	crypto.RegisterCryptoClient(func() crypto.CryptoClient { return hsm })
	t.Cleanup(func() { crypto.CryptoClientPicker = nil })

	// no key file on disk, the registered client is used instead
	cfg := testConfig(t)
	cfg.Keypath = filepath.Join(cfg.Keypath, "nowhere")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := NewNode(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))
	defer n.Stop()

	client, err := p2p.DialSignerClient(ctx, "tcp://"+n.ListenAddr().String(), p2p.ClientConfig{}, nil)
	require.NoError(t, err)
	defer client.Close()
	signed, err := client.SignProposal(ctx, proposal(1, 0))
	require.NoError(t, err)
	assert.True(t, client.PubKey().Equals(hsm.PubKey()))
	require.NoError(t, crypto.VerifyProposal(hsm.PubKey(), signed))
}
