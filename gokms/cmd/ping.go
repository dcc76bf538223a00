package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/p2p"
	"github.com/spf13/cobra"
)

type PingCmd struct {
	Cmd *cobra.Command
}

func GetPingCmd() *PingCmd {
	cmd := new(PingCmd)
	var addr string

	cmd.Cmd = &cobra.Command{
		Use:           "ping",
		Short:         "Hold a link to a running signer and ping it every ping_interval_ms until it fails or Ctrl-C.",
		Example:       "gokms ping --addr tcp://127.0.0.1:26659",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return WatchSigner(addr)
		},
	}

	cmd.Cmd.Flags().StringVarP(&addr, "addr", "a", "", "signer address, tcp://, unix:// or a libp2p multiaddr")

	return cmd
}

func WatchSigner(addr string) error {
	cfg, err := libs.GetConfig(confFile(filepath.Join(libs.GetCurRootDir(), "conf/conf.yaml")))
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return watchSigner(ctx, cfg, addr)
}

// watchSigner returns nil when ctx ends and the link error when the signer is lost.
func watchSigner(ctx context.Context, cfg *libs.Config, addr string) error {
	if addr == "" {
		addr = cfg.Listen
	}
	clientCfg := p2p.ClientConfig{MaxPacketMsgSize: cfg.MaxFrameSize, Timeout: cfg.Timeout()}
	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Timeout())
	defer dialCancel()

	var (
		client *p2p.SignerClient
		err    error
	)
	if strings.HasPrefix(addr, "/") {
		// the host lives as long as ctx
		var sw *p2p.Switch
		if sw, err = startSwitch(ctx, cfg); err != nil {
			return err
		}
		defer sw.Stop()
		client, err = sw.DialSigner(dialCtx, addr, clientCfg)
	} else {
		client, err = p2p.DialSignerClient(dialCtx, addr, clientCfg, nil)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	pk, err := client.GetPubKey(dialCtx)
	if err != nil {
		return err
	}
	raw, err := crypto.PubKeyBytes(pk)
	if err != nil {
		return err
	}
	fmt.Printf("connected to %s, pubkey: %s\n", addr, hex.EncodeToString(raw))

	pt := client.KeepAlive(cfg.PingInterval())
	defer pt.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-client.Done():
		return client.Err()
	}
}
