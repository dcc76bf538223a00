package p2p

import (
	"io"
	"net"
	"path"
	"sync"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/metrics"
	"github.com/aucusaga/gokms/state"
	"github.com/aucusaga/gokms/types"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/pkg/errors"
)

type ServerConfig struct {
	MaxPacketMsgSize int
}

// SignerServer answers signer requests on every connection handed to it,
// one goroutine per connection.
type SignerServer struct {
	cfg     ServerConfig
	rules   state.SafetyRules
	pubKey  []byte
	metrics *metrics.SignerMetrics

	conns     *ConnSet
	listeners []net.Listener
	quit      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	mtx       sync.Mutex

	log libs.Logger
}

func NewSignerServer(rules state.SafetyRules, pk ic.PubKey, cfg ServerConfig, m *metrics.SignerMetrics, logger libs.Logger) (*SignerServer, error) {
	raw, err := crypto.PubKeyBytes(pk)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.NewSignerMetrics(libs.SignerModule)
	}
	return &SignerServer{
		cfg:     cfg,
		rules:   rules,
		pubKey:  raw,
		metrics: m,
		conns:   NewConnSet(),
		quit:    make(chan struct{}),
		log:     libs.NewLogger(logger),
	}, nil
}

// Serve accepts connections until Stop is called.
func (s *SignerServer) Serve(l net.Listener) error {
	s.mtx.Lock()
	select {
	case <-s.quit:
		s.mtx.Unlock()
		l.Close()
		return nil
	default:
	}
	s.listeners = append(s.listeners, l)
	s.mtx.Unlock()

	s.log.Info("signer listening @ SignerServer.Serve, addr: %s", l.Addr())
	for {
		c, err := l.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			s.log.Error("accept fail @ SignerServer.Serve, err: %v", err)
			return errors.Wrap(libs.ErrTransport, err.Error())
		}
		go s.HandleConn(c)
	}
}

// admit registers conn unless the server is stopping. Stop closes quit under
// the same lock, so every admitted conn is in the set Stop closes.
func (s *SignerServer) admit(conn *DefaultConn) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.wg.Add(1)
	s.conns.Add(conn)
	return true
}

// HandleConn serves one stream until it fails or closes. Streams arriving
// after Stop are closed at once.
func (s *SignerServer) HandleConn(stream io.ReadWriteCloser) {
	conn := NewDefaultConn(stream, s.cfg.MaxPacketMsgSize, s.log)
	if !s.admit(conn) {
		s.log.Warn("server stopped, drop connection @ SignerServer.HandleConn, conn: %s", conn.ID())
		conn.Close()
		return
	}
	defer func() {
		s.conns.Remove(conn.ID())
		conn.Close()
		s.wg.Done()
	}()
	s.log.Info("new connection @ SignerServer.HandleConn, conn: %s", conn.ID())

	for {
		var (
			resp    types.Msg
			status  string
			msgType string
		)
		req, err := conn.ReadMsg()
		switch {
		case err == nil:
			msgType = path.Base(req.AminoName())
			timer := s.metrics.Latency(msgType)
			resp, status = s.handle(req)
			timer.ObserveDuration()
		case errors.Is(err, libs.ErrTransport):
			s.log.Info("connection closed @ SignerServer.HandleConn, conn: %s, err: %v", conn.ID(), err)
			return
		case errors.Is(err, libs.ErrInvalidMessage), errors.Is(err, libs.ErrInvalidSignature):
			// well framed but not signable, the stream is still in sync
			s.log.Warn("invalid request @ SignerServer.HandleConn, conn: %s, err: %v", conn.ID(), err)
			msgType = "invalid"
			resp, status = &types.RemoteSignerError{Code: types.CodeInvalidProposal, Description: err.Error()}, metrics.StatusRejected
		default:
			s.metrics.Requests("unknown", metrics.StatusRejected).Inc()
			s.log.Error("bad frame, closing @ SignerServer.HandleConn, conn: %s, err: %v", conn.ID(), err)
			return
		}
		s.metrics.Requests(msgType, status).Inc()

		if err := conn.WriteMsg(resp); err != nil {
			s.log.Error("reply fail @ SignerServer.HandleConn, conn: %s, err: %v", conn.ID(), err)
			return
		}
	}
}

func (s *SignerServer) handle(req types.Msg) (types.Msg, string) {
	switch m := req.(type) {
	case *types.PubKeyRequest:
		return &types.PubKeyMsg{PubKey: s.pubKey}, metrics.StatusOK
	case *types.PingRequest:
		return &types.PingResponse{}, metrics.StatusOK
	case *types.UnsignedProposal:
		signed, err := s.rules.SignProposal(m)
		if err != nil {
			return signError(err)
		}
		return signed, metrics.StatusOK
	case *types.SignedProposal:
		return &types.RemoteSignerError{
			Code:        types.CodeUnexpectedMessage,
			Description: libs.ErrAlreadySigned.Error(),
		}, metrics.StatusRejected
	default:
		s.log.Warn("unexpected request @ SignerServer.handle, msg: %s", req.AminoName())
		return &types.RemoteSignerError{
			Code:        types.CodeUnexpectedMessage,
			Description: "unexpected request " + req.AminoName(),
		}, metrics.StatusRejected
	}
}

func signError(err error) (*types.RemoteSignerError, string) {
	switch {
	case errors.Is(err, libs.ErrInvalidMessage), errors.Is(err, libs.ErrEncoding):
		return &types.RemoteSignerError{Code: types.CodeInvalidProposal, Description: err.Error()}, metrics.StatusRejected
	case errors.Is(err, state.ErrDoubleSign),
		errors.Is(err, state.ErrHeightRegression),
		errors.Is(err, state.ErrRoundRegression),
		errors.Is(err, state.ErrStepRegression):
		return &types.RemoteSignerError{Code: types.CodeDoubleSign, Description: err.Error()}, metrics.StatusRefused
	default:
		return &types.RemoteSignerError{Code: types.CodeSigningFailed, Description: err.Error()}, metrics.StatusError
	}
}

// Stop closes every listener and connection and waits for the handlers.
func (s *SignerServer) Stop() {
	s.stopOnce.Do(func() {
		s.mtx.Lock()
		close(s.quit)
		for _, l := range s.listeners {
			l.Close()
		}
		s.mtx.Unlock()

		for range s.conns.Range(func(c *DefaultConn) bool {
			return c.Close() == nil
		}) {
		}
		s.wg.Wait()
		s.log.Info("signer stopped @ SignerServer.Stop")
	})
}
