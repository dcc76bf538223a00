package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/p2p"
	"github.com/aucusaga/gokms/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type SignCmd struct {
	Cmd *cobra.Command
}

type signArgs struct {
	addr      string
	height    int64
	round     int64
	polRound  int64
	timestamp string
	total     int64
	partsHash string
}

func GetSignCmd() *SignCmd {
	cmd := new(SignCmd)
	args := &signArgs{}

	cmd.Cmd = &cobra.Command{
		Use:           "sign",
		Short:         "Ask a running signer to sign a proposal, print the signed frame.",
		Example:       "gokms sign --addr tcp://127.0.0.1:26659 --height 12345 --round 23456",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RequestSignature(args)
		},
	}

	flags := cmd.Cmd.Flags()
	flags.StringVarP(&args.addr, "addr", "a", "", "signer address, tcp://, unix:// or a libp2p multiaddr")
	flags.Int64Var(&args.height, "height", 1, "proposal height")
	flags.Int64Var(&args.round, "round", 0, "proposal round")
	flags.Int64Var(&args.polRound, "pol-round", types.NoPOLRound, "proof of lock round, -1 for none")
	flags.StringVar(&args.timestamp, "time", "", "RFC3339 timestamp, now when empty")
	flags.Int64Var(&args.total, "parts-total", 1, "block parts total")
	flags.StringVar(&args.partsHash, "parts-hash", "", "block parts hash, hex")

	return cmd
}

func (a *signArgs) proposal() (types.Proposal, error) {
	ts := types.NewTime(time.Now())
	if a.timestamp != "" {
		var err error
		if ts, err = types.ParseTime(a.timestamp); err != nil {
			return types.Proposal{}, err
		}
	}
	hash, err := hex.DecodeString(a.partsHash)
	if err != nil {
		return types.Proposal{}, errors.Wrap(err, "parts hash")
	}
	p := types.Proposal{
		Height:           a.height,
		Round:            a.round,
		Timestamp:        ts,
		BlockPartsHeader: types.PartsSetHeader{Total: a.total, Hash: hash},
		POLRound:         a.polRound,
	}
	return p, p.Validate()
}

func RequestSignature(a *signArgs) error {
	p, err := a.proposal()
	if err != nil {
		return err
	}
	cfg, err := libs.GetConfig(confFile(filepath.Join(libs.GetCurRootDir(), "conf/conf.yaml")))
	if err != nil {
		return err
	}
	if a.addr == "" {
		a.addr = cfg.Listen
	}
	clientCfg := p2p.ClientConfig{MaxPacketMsgSize: cfg.MaxFrameSize, Timeout: cfg.Timeout()}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Timeout())
	defer cancel()

	var client *p2p.SignerClient
	if strings.HasPrefix(a.addr, "/") {
		var sw *p2p.Switch
		if sw, err = startSwitch(ctx, cfg); err != nil {
			return err
		}
		defer sw.Stop()
		client, err = sw.DialSigner(ctx, a.addr, clientCfg)
	} else {
		client, err = p2p.DialSignerClient(ctx, a.addr, clientCfg, nil)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	signed, err := client.SignProposal(ctx, types.NewUnsignedProposal(p))
	if err != nil {
		return err
	}
	frame, err := types.MarshalBinary(signed)
	if err != nil {
		return err
	}
	fmt.Printf("proposal: %s\n", signed.Proposal())
	fmt.Printf("signature: %s\n", signed.Signature())
	fmt.Printf("frame: %X\n", frame)
	return nil
}

// startSwitch starts an outbound-only libp2p host on the configured network key.
func startSwitch(ctx context.Context, cfg *libs.Config) (*p2p.Switch, error) {
	priv, err := p2p.GetKeyPairFromPath(libs.ResolvePath(cfg.Netpath))
	if err != nil {
		return nil, err
	}
	sw, err := p2p.NewSwitch(&p2p.Config{Address: "/ip4/0.0.0.0/tcp/0", PrivateKey: priv}, nil)
	if err != nil {
		return nil, err
	}
	if err := sw.Start(ctx); err != nil {
		sw.Stop()
		return nil, err
	}
	return sw, nil
}
