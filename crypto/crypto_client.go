package crypto

import (
	"sync"

	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/types"
	ic "github.com/libp2p/go-libp2p-core/crypto"
	pb "github.com/libp2p/go-libp2p-core/crypto/pb"
	"github.com/pkg/errors"
)

var (
	CryptoClientPicker func() CryptoClient

	pickerMtx sync.Mutex
)

// CryptoClient holds the private key of the signer.
type CryptoClient interface {
	// Sign signs msgBytes as is, callers pass canonical sign bytes.
	Sign(msgBytes []byte) ([]byte, error)
	PubKey() ic.PubKey
}

// RegisterCryptoClient registers a crypto client initialization function,
// e.g. one backed by an HSM.
func RegisterCryptoClient(fn func() CryptoClient) {
	pickerMtx.Lock()
	defer pickerMtx.Unlock()

	if CryptoClientPicker != nil {
		panic("RegisterCryptoClient called more than once")
	}
	CryptoClientPicker = fn
}

// DefaultCryptoClient signs with an Ed25519 key held in memory.
type DefaultCryptoClient struct {
	SK ic.PrivKey
	PK ic.PubKey
}

func NewDefaultCryptoClient(sk ic.PrivKey) (*DefaultCryptoClient, error) {
	if sk.Type() != pb.KeyType_Ed25519 {
		return nil, errors.Errorf("unsupported key type %s, want Ed25519", sk.Type())
	}
	return &DefaultCryptoClient{
		SK: sk,
		PK: sk.GetPublic(),
	}, nil
}

// InitCryptoClient builds the default client from a key file content.
func InitCryptoClient(privateBytes []byte) (*DefaultCryptoClient, error) {
	sk, err := UnmarshalPrivateKey(privateBytes)
	if err != nil {
		return nil, err
	}
	return NewDefaultCryptoClient(sk)
}

// RegisteredCryptoClient returns the client of the registered picker, nil
// when none has been registered.
func RegisteredCryptoClient() CryptoClient {
	pickerMtx.Lock()
	picker := CryptoClientPicker
	pickerMtx.Unlock()

	if picker == nil {
		return nil
	}
	return picker()
}

func (cc *DefaultCryptoClient) Sign(msgBytes []byte) ([]byte, error) {
	return cc.SK.Sign(msgBytes)
}

func (cc *DefaultCryptoClient) PubKey() ic.PubKey {
	return cc.PK
}

// SignProposal signs the sign bytes of msg and attaches the signature.
func SignProposal(cc CryptoClient, msg *types.UnsignedProposal) (*types.SignedProposal, error) {
	signBytes, err := msg.SignBytes()
	if err != nil {
		return nil, err
	}
	sig, err := cc.Sign(signBytes)
	if err != nil {
		return nil, errors.Wrap(err, "sign proposal")
	}
	return msg.AttachSignature(sig)
}

// PubKeyFromBytes parses a raw Ed25519 public key.
func PubKeyFromBytes(raw []byte) (ic.PubKey, error) {
	pk, err := ic.UnmarshalEd25519PublicKey(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse ed25519 public key")
	}
	return pk, nil
}

// PubKeyBytes returns the raw bytes of pk.
func PubKeyBytes(pk ic.PubKey) ([]byte, error) {
	return pk.Raw()
}

// VerifyProposal is the node-side check on a signed envelope; a mismatch is
// libs.ErrSignatureVerificationFailed.
func VerifyProposal(pk ic.PubKey, msg types.SignProposalMsg) error {
	ok, err := types.Verify(msg, pk)
	if err != nil {
		return err
	}
	if !ok {
		p := msg.Proposal()
		return errors.Wrapf(libs.ErrSignatureVerificationFailed, "proposal %d/%d", p.Height, p.Round)
	}
	return nil
}
