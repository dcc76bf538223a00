package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/aucusaga/gokms/libs"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/pkg/errors"
)

const KeyFileName = "private.key"

// GenKeyPair writes a fresh Ed25519 key to path/private.key.
func GenKeyPair(path string) error {
	sk, _, err := ic.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return err
	}
	data, err := MarshalPrivateKey(sk)
	if err != nil {
		return err
	}
	return libs.WriteFileAtomic(filepath.Join(path, KeyFileName), data, 0600)
}

// LoadKeyPair reads path/private.key.
func LoadKeyPair(path string) (ic.PrivKey, error) {
	data, err := ioutil.ReadFile(filepath.Join(path, KeyFileName))
	if err != nil {
		return nil, err
	}
	return UnmarshalPrivateKey(data)
}

func MarshalPrivateKey(sk ic.PrivKey) ([]byte, error) {
	privData, err := ic.MarshalPrivateKey(sk)
	if err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(privData)), nil
}

func UnmarshalPrivateKey(data []byte) (ic.PrivKey, error) {
	privData, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrap(err, "decode key file")
	}
	return ic.UnmarshalPrivateKey(privData)
}
