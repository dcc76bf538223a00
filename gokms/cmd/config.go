package cmd

import (
	"path/filepath"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/p2p"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	NetworkName = "network"
	CryptoName  = "crypto"
	AddressName = "address"
)

type KeyCmd struct {
	Cmd *cobra.Command
}

func GetKeyCmd() *KeyCmd {
	cmd := new(KeyCmd)
	var keyType string

	cmd.Cmd = &cobra.Command{
		Use:           "genkey",
		Short:         "--type network|crypto, generate the signing key or the libp2p host key.",
		Example:       "gokms genkey --type network | crypto",
		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return GenerateKeys(keyType)
		},
	}

	cmd.Cmd.Flags().StringVarP(&keyType, "type", "t", "",
		"key's type")

	return cmd
}

func GenerateKeys(key string) error {
	switch key {
	case NetworkName:
		return GenerateNetworkKey()
	case CryptoName:
		return GenerateCryptoKey()
	default:
		return errors.New("key's type invalid, must be `network` or `crypto`")
	}
}

func GenerateNetworkKey() error {
	cfgPath, err := KeyDirReady(NetworkName)
	if err != nil {
		return err
	}
	if libs.FileIsExist(filepath.Join(cfgPath, crypto.KeyFileName)) {
		return errors.Errorf("network key exists under %s, remove it first", cfgPath)
	}
	return errors.WithMessage(p2p.GenerateKeyPairWithPath(cfgPath), "gen network key fail")
}

// GenerateCryptoKey refuses to overwrite a signing key; losing it loses the validator identity.
func GenerateCryptoKey() error {
	cfgPath, err := KeyDirReady(CryptoName)
	if err != nil {
		return err
	}
	if libs.FileIsExist(filepath.Join(cfgPath, crypto.KeyFileName)) {
		return errors.Errorf("signing key exists under %s, remove it first", cfgPath)
	}
	return errors.WithMessage(crypto.GenKeyPair(cfgPath), "gen crypto key fail")
}

func KeyDirReady(key string) (string, error) {
	var cfgPath string
	switch key {
	case NetworkName:
		cfgPath = filepath.Join(libs.GetCurRootDir(), "output/conf/netkeys")
	case CryptoName:
		cfgPath = filepath.Join(libs.GetCurRootDir(), "output/conf/keys")
	case AddressName:
		cfgPath = filepath.Join(libs.GetCurRootDir(), "output/conf")
	default:
		return "", errors.Errorf("invalid key type %q, must be `network` or `crypto`", key)
	}

	if !libs.FileIsExist(cfgPath) {
		if err := libs.MakeDir(cfgPath); err != nil {
			return "", errors.Wrapf(err, "mkdir %s", cfgPath)
		}
	}
	return cfgPath, nil
}
