package types

import (
	"fmt"

	"github.com/aucusaga/gokms/codec"
	"github.com/aucusaga/gokms/libs"
	"github.com/pkg/errors"
)

const SignProposalName = "tendermint/socketpv/SignProposalMsg"

// SignProposalMsg is the sign-proposal envelope. It is either an
// *UnsignedProposal or a *SignedProposal; no other type implements it.
type SignProposalMsg interface {
	Msg
	Proposal() Proposal
	SignBytes() ([]byte, error)

	isSignProposalMsg()
}

var (
	_ SignProposalMsg = (*UnsignedProposal)(nil)
	_ SignProposalMsg = (*SignedProposal)(nil)
)

// UnsignedProposal is an envelope waiting for its signature.
type UnsignedProposal struct {
	proposal Proposal
}

func NewUnsignedProposal(p Proposal) *UnsignedProposal {
	return &UnsignedProposal{proposal: p.Clone()}
}

func (m *UnsignedProposal) Proposal() Proposal { return m.proposal.Clone() }

// SignBytes returns the bytes a signer must sign for this envelope.
func (m *UnsignedProposal) SignBytes() ([]byte, error) {
	return ProposalSignBytes(m.proposal)
}

// AttachSignature returns the signed envelope. sig must have been computed over
// SignBytes of this envelope; m itself is left untouched.
func (m *UnsignedProposal) AttachSignature(sig Signature) (*SignedProposal, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return &SignedProposal{proposal: m.proposal.Clone(), signature: sig.Clone()}, nil
}

func (m *UnsignedProposal) AminoName() string { return SignProposalName }

func (m *UnsignedProposal) EncodeFields(e *codec.Encoder) {
	e.Message(1, wireProposal{proposal: m.proposal})
}

func (m *UnsignedProposal) String() string {
	return fmt.Sprintf("SignProposalMsg{%v, unsigned}", m.proposal)
}

func (*UnsignedProposal) isSignProposalMsg() {}

// SignedProposal is a terminal envelope: a proposal and the signature over its sign bytes.
type SignedProposal struct {
	proposal  Proposal
	signature Signature
}

func (m *SignedProposal) Proposal() Proposal { return m.proposal.Clone() }

func (m *SignedProposal) Signature() Signature { return m.signature.Clone() }

// SignBytes is identical to the SignBytes of the unsigned envelope it came from.
func (m *SignedProposal) SignBytes() ([]byte, error) {
	return ProposalSignBytes(m.proposal)
}

// Verify reports whether the signature is valid for the sign bytes under pub.
func (m *SignedProposal) Verify(pub PubKey) bool {
	bz, err := m.SignBytes()
	if err != nil {
		return false
	}
	ok, err := pub.Verify(bz, m.signature)
	return err == nil && ok
}

func (m *SignedProposal) AminoName() string { return SignProposalName }

func (m *SignedProposal) EncodeFields(e *codec.Encoder) {
	e.Message(1, wireProposal{proposal: m.proposal, signature: m.signature})
}

func (m *SignedProposal) String() string {
	return fmt.Sprintf("SignProposalMsg{%v, sig %X}", m.proposal, []byte(m.signature))
}

func (*SignedProposal) isSignProposalMsg() {}

// AttachSignature signs msg once: an envelope that already carries a
// signature yields libs.ErrAlreadySigned.
func AttachSignature(msg SignProposalMsg, sig Signature) (*SignedProposal, error) {
	switch m := msg.(type) {
	case *UnsignedProposal:
		return m.AttachSignature(sig)
	case *SignedProposal:
		return nil, errors.Wrapf(libs.ErrAlreadySigned, "height %d round %d", m.proposal.Height, m.proposal.Round)
	}
	return nil, errors.Errorf("unexpected envelope %T", msg)
}

// Verify recomputes the sign bytes of msg and checks its signature under pub.
// A cryptographic mismatch is (false, nil); an envelope without signature is
// libs.ErrMissingSignature.
func Verify(msg SignProposalMsg, pub PubKey) (bool, error) {
	switch m := msg.(type) {
	case *SignedProposal:
		return m.Verify(pub), nil
	case *UnsignedProposal:
		return false, libs.ErrMissingSignature
	}
	return false, errors.Errorf("unexpected envelope %T", msg)
}

// wireProposal is the proposal as carried on the wire: fields 1-6 of the
// proposal followed by the signature as field 7 when there is one.
type wireProposal struct {
	proposal  Proposal
	signature Signature
}

func (w wireProposal) EncodeFields(e *codec.Encoder) {
	w.proposal.EncodeFields(e)
	if w.signature != nil {
		e.ByteSlice(7, w.signature)
	}
}

func (w *wireProposal) DecodeFields(d *codec.Decoder) error {
	if err := w.proposal.DecodeFields(d); err != nil {
		return err
	}
	sig, err := d.ReadByteSlice(7)
	if err != nil {
		return err
	}
	w.signature = sig
	return nil
}

type signProposalBody struct {
	wire    wireProposal
	present bool
}

func (b *signProposalBody) DecodeFields(d *codec.Decoder) error {
	var err error
	b.present, err = d.ReadMessage(1, &b.wire)
	return err
}

func decodeSignProposal(body []byte) (codec.Msg, error) {
	var b signProposalBody
	if err := codec.Unmarshal(body, &b); err != nil {
		return nil, err
	}
	if !b.present {
		return nil, errors.Wrap(libs.ErrDecoding, "sign proposal without proposal")
	}
	if err := b.wire.proposal.Validate(); err != nil {
		return nil, err
	}
	unsigned := &UnsignedProposal{proposal: b.wire.proposal}
	if b.wire.signature == nil {
		return unsigned, nil
	}
	return unsigned.AttachSignature(b.wire.signature)
}
