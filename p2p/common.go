package p2p

import (
	"crypto/rand"
	"path/filepath"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/pkg/errors"
)

// GenerateKeyPairWithPath writes the host identity used by the libp2p transport.
// It is a separate key from the signing key.
func GenerateKeyPairWithPath(path string) error {
	if len(path) == 0 {
		return errors.New("p2p key path empty")
	}
	priv, _, err := ic.GenerateKeyPairWithReader(ic.Ed25519, -1, rand.Reader)
	if err != nil {
		return err
	}
	data, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return err
	}
	return libs.WriteFileAtomic(filepath.Join(path, crypto.KeyFileName), data, 0600)
}

func GetKeyPairFromPath(path string) (ic.PrivKey, error) {
	if len(path) == 0 {
		return nil, errors.New("p2p key path empty")
	}
	if !libs.FileIsExist(filepath.Join(path, crypto.KeyFileName)) {
		return nil, errors.Errorf("no p2p key under %s", path)
	}
	return crypto.LoadKeyPair(path)
}

func GetPeerIDFromPath(path string) (string, error) {
	sk, err := GetKeyPairFromPath(path)
	if err != nil {
		return "", err
	}
	pid, err := peer.IDFromPrivateKey(sk)
	if err != nil {
		return "", err
	}
	return pid.Pretty(), nil
}
