package node

import (
	"context"
	"io/ioutil"
	"net"
	"path/filepath"
	"sync"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/metrics"
	"github.com/aucusaga/gokms/p2p"
	"github.com/aucusaga/gokms/state"
	"github.com/pkg/errors"
)

// Node is the signer service: the key, its safety rules and the listeners
// nodes connect through.
type Node struct {
	cfg *libs.Config

	cc       crypto.CryptoClient
	rules    state.SafetyRules
	server   *p2p.SignerServer
	p2p      *p2p.Switch
	pull     *metrics.PullService
	listener net.Listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    libs.Logger
}

// loadCryptoClient prefers a registered client, e.g. an HSM, over the key file.
func loadCryptoClient(keypath string, logger libs.Logger) (crypto.CryptoClient, error) {
	if cc := crypto.RegisteredCryptoClient(); cc != nil {
		logger.Info("use registered crypto client @ loadCryptoClient")
		return cc, nil
	}
	priKey, err := ioutil.ReadFile(filepath.Join(keypath, crypto.KeyFileName))
	if err != nil {
		return nil, errors.Wrap(err, "load signing key")
	}
	return crypto.InitCryptoClient(priKey)
}

func createP2P(config *libs.Config, logger libs.Logger) (*p2p.Switch, error) {
	priv, err := p2p.GetKeyPairFromPath(libs.ResolvePath(config.Netpath))
	if err != nil {
		return nil, err
	}
	return p2p.NewSwitch(&p2p.Config{
		Address:    config.P2PAddress,
		PrivateKey: priv,
	}, logger)
}

func NewNode(config *libs.Config, logger libs.Logger) (*Node, error) {
	logger = libs.NewLogger(logger)

	cc, err := loadCryptoClient(libs.ResolvePath(config.Keypath), logger)
	if err != nil {
		logger.Warn("init crypto client err, err: %+v", err)
		return nil, err
	}

	// safetyrules take responsibility for never signing twice at one height/round/step.
	store := state.NewFileSignStateStore(libs.ResolvePath(config.StateFile))
	rules, err := state.NewDefaultSafetyRules(cc, store, logger)
	if err != nil {
		logger.Warn("load sign state err, err: %+v", err)
		return nil, err
	}

	server, err := p2p.NewSignerServer(rules, cc.PubKey(), p2p.ServerConfig{
		MaxPacketMsgSize: config.MaxFrameSize,
	}, metrics.NewSignerMetrics(libs.SignerModule), logger)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:    config,
		cc:     cc,
		rules:  rules,
		server: server,
		log:    logger,
	}
	if config.P2PAddress != "" {
		if n.p2p, err = createP2P(config, logger); err != nil {
			logger.Warn("create p2p err, err: %+v", err)
			return nil, err
		}
	}
	if config.Metrics != "" {
		n.pull = metrics.NewPullService(config.Metrics, logger)
	}
	return n, nil
}

func (n *Node) Start(ctx context.Context) error {
	ctx, n.cancel = context.WithCancel(ctx)

	l, err := p2p.Listen(n.cfg.Listen)
	if err != nil {
		n.cancel()
		return errors.Wrapf(err, "listen on %s", n.cfg.Listen)
	}
	n.listener = l
	n.goRun("signer", func() error { return n.server.Serve(l) })

	if n.p2p != nil {
		if err := n.p2p.Start(ctx); err != nil {
			n.Stop()
			return err
		}
		n.p2p.ServeSigner(n.server)
	}
	if n.pull != nil {
		n.goRun("metrics", func() error { return n.pull.Run(ctx) })
	}
	n.log.Info("node started @ Node.Start, listen: %s, last: %s", l.Addr(), n.rules.LastSignState())
	return nil
}

func (n *Node) goRun(name string, f func() error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := f(); err != nil {
			n.log.Error("%s stopped @ Node, err: %v", name, err)
		}
	}()
}

// ListenAddr is the bound address of the socket listener, nil before Start.
func (n *Node) ListenAddr() net.Addr {
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// P2PAddr is the full libp2p address, empty when the transport is disabled.
func (n *Node) P2PAddr() string {
	if n.p2p == nil || n.p2p.Addr() == nil {
		return ""
	}
	return n.p2p.Addr().String()
}

func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.server.Stop()
	if n.p2p != nil {
		if err := n.p2p.Stop(); err != nil {
			n.log.Warn("p2p stop err @ Node.Stop, err: %v", err)
		}
	}
	n.wg.Wait()
	n.log.Info("node stopped @ Node.Stop")
}
