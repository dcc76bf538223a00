package p2p

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/types"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/pkg/errors"
)

type ClientConfig struct {
	MaxPacketMsgSize int
	// Timeout bounds a request when the context carries no deadline.
	Timeout time.Duration
	// PubKey pins the signer key; when nil it is fetched on first use.
	PubKey ic.PubKey
}

// SignerClient talks to a remote signer over one connection. Requests are
// answered in order, so they are serialized. Once an exchange fails the reply
// stream can no longer be matched to requests: the connection is closed and
// every later call fails with libs.ErrTransport until the caller redials.
type SignerClient struct {
	cfg    ClientConfig
	conn   *DefaultConn
	pubKey ic.PubKey
	keyMtx sync.RWMutex

	broken    chan struct{}
	brokenErr error
	closeErr  error
	closeOnce sync.Once

	mtx sync.Mutex
	log libs.Logger
}

func NewSignerClient(stream io.ReadWriteCloser, cfg ClientConfig, logger libs.Logger) *SignerClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log := libs.NewLogger(logger)
	return &SignerClient{
		cfg:    cfg,
		conn:   NewDefaultConn(stream, cfg.MaxPacketMsgSize, log),
		pubKey: cfg.PubKey,
		broken: make(chan struct{}),
		log:    log,
	}
}

// DialSignerClient connects to a signer listening on "tcp://" or "unix://" addr.
func DialSignerClient(ctx context.Context, addr string, cfg ClientConfig, logger libs.Logger) (*SignerClient, error) {
	conn, err := Dial(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(libs.ErrTransport, err.Error())
	}
	return NewSignerClient(conn, cfg, logger), nil
}

// shutdown closes the connection once and records why.
func (c *SignerClient) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.brokenErr = cause
		close(c.broken)
		c.closeErr = c.conn.Close()
	})
}

// Done is closed once the connection is unusable.
func (c *SignerClient) Done() <-chan struct{} {
	return c.broken
}

// Err returns why the connection was closed, nil while it is usable.
func (c *SignerClient) Err() error {
	select {
	case <-c.broken:
		return c.brokenErr
	default:
		return nil
	}
}

// protocolErr closes the link on a reply that does not answer the request.
func (c *SignerClient) protocolErr(req string, resp types.Msg) error {
	err := errors.Wrapf(libs.ErrTransport, "unexpected response %s to %s", resp.AminoName(), req)
	c.log.Error("out of step reply @ SignerClient, err: %v", err)
	c.shutdown(err)
	return err
}

func (c *SignerClient) request(ctx context.Context, req types.Msg) (types.Msg, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := c.Err(); err != nil {
		return nil, errors.Wrapf(libs.ErrTransport, "connection closed: %v", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.Timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, errors.Wrap(libs.ErrTransport, err.Error())
	}
	defer c.conn.SetDeadline(time.Time{})

	if err := c.conn.WriteMsg(req); err != nil {
		// encoding failures happen before anything is written
		if errors.Is(err, libs.ErrTransport) {
			c.shutdown(err)
		}
		return nil, err
	}
	resp, err := c.conn.ReadMsg()
	if err != nil {
		c.log.Error("read response fail @ SignerClient.request, req: %s, err: %v", req.AminoName(), err)
		c.shutdown(err)
		if !errors.Is(err, libs.ErrTransport) {
			err = errors.Wrap(libs.ErrTransport, err.Error())
		}
		return nil, err
	}
	if rerr, ok := resp.(*types.RemoteSignerError); ok {
		c.log.Warn("signer refused @ SignerClient.request, req: %s, err: %v", req.AminoName(), rerr)
		return nil, rerr
	}
	return resp, nil
}

// GetPubKey asks the signer for its key and remembers it.
func (c *SignerClient) GetPubKey(ctx context.Context) (ic.PubKey, error) {
	resp, err := c.request(ctx, &types.PubKeyRequest{})
	if err != nil {
		return nil, err
	}
	msg, ok := resp.(*types.PubKeyMsg)
	if !ok {
		return nil, c.protocolErr("PubKeyRequest", resp)
	}
	pk, err := crypto.PubKeyFromBytes(msg.PubKey)
	if err != nil {
		return nil, err
	}
	c.keyMtx.Lock()
	defer c.keyMtx.Unlock()
	if c.pubKey != nil && !c.pubKey.Equals(pk) {
		return nil, errors.Wrap(libs.ErrSignatureVerificationFailed, "signer key differs from the pinned key")
	}
	c.pubKey = pk
	return pk, nil
}

func (c *SignerClient) Ping(ctx context.Context) error {
	resp, err := c.request(ctx, &types.PingRequest{})
	if err != nil {
		return err
	}
	if _, ok := resp.(*types.PingResponse); !ok {
		return c.protocolErr("PingRequest", resp)
	}
	return nil
}

// SignProposal sends msg and returns the signed proposal once its signature
// verifies and its sign bytes match what was asked for.
func (c *SignerClient) SignProposal(ctx context.Context, msg *types.UnsignedProposal) (*types.SignedProposal, error) {
	want, err := msg.SignBytes()
	if err != nil {
		return nil, err
	}
	pk := c.PubKey()
	if pk == nil {
		if pk, err = c.GetPubKey(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.request(ctx, msg)
	if err != nil {
		return nil, err
	}
	var signed *types.SignedProposal
	switch m := resp.(type) {
	case *types.SignedProposal:
		signed = m
	case *types.UnsignedProposal:
		return nil, errors.Wrap(libs.ErrMissingSignature, "signer returned an unsigned proposal")
	default:
		return nil, c.protocolErr("SignProposalMsg", resp)
	}

	got, err := signed.SignBytes()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want, got) {
		c.log.Error("proposal changed @ SignerClient.SignProposal, want: %s, got: %s", libs.GetSum(want), libs.GetSum(got))
		return nil, errors.Wrap(libs.ErrSignatureVerificationFailed, "signer returned a different proposal")
	}
	if err := crypto.VerifyProposal(pk, signed); err != nil {
		c.log.Error("bad signature @ SignerClient.SignProposal, msg: %s, err: %v", libs.GetSum(got), err)
		return nil, err
	}
	return signed, nil
}

func (c *SignerClient) PubKey() ic.PubKey {
	c.keyMtx.RLock()
	defer c.keyMtx.RUnlock()
	return c.pubKey
}

// KeepAlive pings the signer every interval and closes the client on the
// first failed ping. The returned ticker stops with the client.
func (c *SignerClient) KeepAlive(interval time.Duration) *PingTicker {
	pt := NewPingTicker(c, interval, c.cfg.Timeout, c.log)
	go func() {
		defer pt.Stop()
		select {
		case err := <-pt.Chan():
			c.log.Error("signer unreachable @ SignerClient.KeepAlive, err: %v", err)
			c.shutdown(errors.WithMessage(err, "keepalive"))
		case <-c.broken:
		}
	}()
	return pt
}

func (c *SignerClient) Close() error {
	c.shutdown(errors.New("closed by caller"))
	return c.closeErr
}
