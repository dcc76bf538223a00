package p2p

import (
	"context"
	"fmt"

	"github.com/aucusaga/gokms/libs"
	ipfsaddr "github.com/ipfs/go-ipfs-addr"
	"github.com/libp2p/go-libp2p"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"
	secio "github.com/libp2p/go-libp2p-secio"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

type Config struct {
	Address    string
	PrivateKey ic.PrivKey // only for networking
}

// Switch carries the signer protocol over authenticated libp2p streams.
type Switch struct {
	cfg *Config

	id   multiaddr.Multiaddr
	host host.Host

	log libs.Logger
}

func NewSwitch(cfg *Config, logger libs.Logger) (*Switch, error) {
	if cfg == nil || cfg.PrivateKey == nil {
		return nil, errors.New("p2p key missing")
	}
	return &Switch{
		cfg: cfg,
		log: libs.NewLogger(logger),
	}, nil
}

func (sw *Switch) Start(ctx context.Context) error {
	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(sw.cfg.Address),
		libp2p.Identity(sw.cfg.PrivateKey),
		libp2p.Security(secio.ID, secio.New),
	}
	h, err := libp2p.New(ctx, opts...)
	if err != nil {
		sw.log.Error("new libp2p host failed @ p2p.Start, err: %v", err)
		return err
	}
	sw.host = h

	hostAddr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/p2p/%s", h.ID().Pretty()))
	if err != nil {
		return err
	}
	if len(h.Addrs()) == 0 {
		return errors.Errorf("libp2p host has no listen address, cfg: %s", sw.cfg.Address)
	}
	sw.id = h.Addrs()[0].Encapsulate(hostAddr)
	sw.log.Info("new p2pnode @ p2p.Start host's multiaddr: %s", sw.id)
	return nil
}

// Addr is the full multiaddr, /ip4/.../tcp/.../p2p/<id>, clients dial.
func (sw *Switch) Addr() multiaddr.Multiaddr {
	return sw.id
}

// ServeSigner hands every inbound signer stream to srv.
func (sw *Switch) ServeSigner(srv *SignerServer) {
	sw.host.SetStreamHandler(protocol.ID(libs.SignerProtocol), func(s network.Stream) {
		sw.log.Info("signer stream @ handleStream, remote_peer: %s", s.Conn().RemotePeer())
		srv.HandleConn(s)
	})
}

// DialSigner opens a signer stream to target, a multiaddr ending in /p2p/<id>.
func (sw *Switch) DialSigner(ctx context.Context, target string, cfg ClientConfig) (*SignerClient, error) {
	peerAddr, err := ipfsaddr.ParseString(target)
	if err != nil {
		sw.log.Error("parse string failed @ p2p.DialSigner, peer: %s, err: %v", target, err)
		return nil, err
	}
	addrInfo, err := peer.AddrInfoFromP2pAddr(peerAddr.Multiaddr())
	if err != nil {
		return nil, err
	}
	if err := sw.host.Connect(ctx, *addrInfo); err != nil {
		sw.log.Error("connect failed @ p2p.DialSigner, err: %v, addrinfo: %+v", err, *addrInfo)
		return nil, errors.Wrap(libs.ErrTransport, err.Error())
	}
	stream, err := sw.host.NewStream(ctx, addrInfo.ID, protocol.ID(libs.SignerProtocol))
	if err != nil {
		sw.log.Error("host make newstream fail @ p2p.DialSigner, peer_id: %s, err: %v", addrInfo.ID.Pretty(), err)
		return nil, errors.Wrap(libs.ErrTransport, err.Error())
	}
	return NewSignerClient(stream, cfg, sw.log), nil
}

func (sw *Switch) Stop() error {
	if sw.host == nil {
		return nil
	}
	sw.host.RemoveStreamHandler(protocol.ID(libs.SignerProtocol))
	return sw.host.Close()
}
