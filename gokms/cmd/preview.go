package cmd

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/p2p"
	"github.com/spf13/cobra"
)

type AddressCmd struct {
	Cmd *cobra.Command
}

func GetAddressCmd() *AddressCmd {
	cmd := new(AddressCmd)
	cmd.Cmd = &cobra.Command{
		Use:           "preview",
		Short:         "preview the signer public key and, when p2p is configured, its libp2p address.",
		Example:       "gokms preview, `pubkey: 9a1c...`, `/ip4/127.0.0.1/tcp/30001/p2p/Qmf2HeHe4sspGkfRCTq6257Vm3UHzvh2TeQJHHvHzzuFw6`",
		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return PreviewAddress()
		},
	}

	return cmd
}

func PreviewAddress() error {
	cfgPath, err := KeyDirReady(AddressName)
	if err != nil {
		return err
	}
	cfg, err := libs.GetConfig(confFile(filepath.Join(cfgPath, "conf.yaml")))
	if err != nil {
		return fmt.Errorf("load configuration failed, err: %v", err)
	}

	sk, err := crypto.LoadKeyPair(libs.ResolvePath(cfg.Keypath))
	if err != nil {
		return err
	}
	raw, err := crypto.PubKeyBytes(sk.GetPublic())
	if err != nil {
		return err
	}
	fmt.Printf("pubkey: %s\n", hex.EncodeToString(raw))
	fmt.Printf("listen: %s\n", cfg.Listen)

	if cfg.P2PAddress == "" {
		return nil
	}
	pretty, err := p2p.GetPeerIDFromPath(libs.ResolvePath(cfg.Netpath))
	if err != nil {
		return err
	}
	fmt.Printf("%s/p2p/%s\n", cfg.P2PAddress, pretty)
	return nil
}

// confFile drops a missing config file so defaults apply.
func confFile(path string) string {
	if libs.FileIsExist(path) {
		return path
	}
	return ""
}
