package types

import (
	"fmt"

	"github.com/aucusaga/gokms/libs"
	"github.com/pkg/errors"
)

// SignatureSize is the size of an Ed25519 signature.
const SignatureSize = 64

type Signature []byte

func (s Signature) Validate() error {
	if len(s) != SignatureSize {
		return errors.Wrapf(libs.ErrInvalidSignature, "%d bytes, want %d", len(s), SignatureSize)
	}
	return nil
}

func (s Signature) Clone() Signature {
	return Signature(cloneBytes(s))
}

func (s Signature) String() string {
	return fmt.Sprintf("%X", []byte(s))
}

// PubKey verifies signatures. libp2p crypto.PubKey satisfies it.
type PubKey interface {
	Verify(data []byte, sig []byte) (bool, error)
}
