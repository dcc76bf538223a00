package state

import (
	"sync"

	"github.com/aucusaga/gokms/crypto"
	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/types"
	"github.com/pkg/errors"
)

// SafetyRules guards the signing key against equivocation.
type SafetyRules interface {
	// SignProposal signs msg unless that would conflict with something signed before.
	SignProposal(msg *types.UnsignedProposal) (*types.SignedProposal, error)
	LastSignState() LastSignState
}

type DefaultSafetyRules struct {
	cc    crypto.CryptoClient
	store SignStateStore
	lss   LastSignState

	mtx sync.Mutex
	log libs.Logger
}

func NewDefaultSafetyRules(cc crypto.CryptoClient, store SignStateStore, logger libs.Logger) (*DefaultSafetyRules, error) {
	lss, err := store.Load()
	if err != nil {
		return nil, err
	}
	s := &DefaultSafetyRules{
		cc:    cc,
		store: store,
		lss:   lss,
		log:   libs.NewLogger(logger),
	}
	s.log.Info("safety rules loaded @ NewDefaultSafetyRules, last: %s", lss)
	return s, nil
}

func (s *DefaultSafetyRules) LastSignState() LastSignState {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.lss
}

// SignProposal checks:
// a. the proposal is well formed,
// b. height/round/step never regress,
// c. the same height/round/step is only re-signed for identical sign bytes, returning the stored signature.
// The new state is persisted before the signature is released.
func (s *DefaultSafetyRules) SignProposal(msg *types.UnsignedProposal) (*types.SignedProposal, error) {
	p := msg.Proposal()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	signBytes, err := msg.SignBytes()
	if err != nil {
		return nil, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	same, err := s.lss.CheckHRS(p.Height, p.Round, StepPropose)
	if err != nil {
		s.log.Warn("refuse to sign @ SignProposal, proposal: %v, last: %s, err: %v", p, s.lss, err)
		return nil, err
	}
	if same {
		if s.lss.sameSignBytes(signBytes) {
			s.log.Info("re-sign identical proposal @ SignProposal, height: %d, round: %d", p.Height, p.Round)
			return msg.AttachSignature(s.lss.Signature)
		}
		s.log.Error("conflicting proposal @ SignProposal, height: %d, round: %d, msg: %s", p.Height, p.Round, libs.GetSum(signBytes))
		return nil, errors.Wrapf(ErrDoubleSign, "proposal %d/%d", p.Height, p.Round)
	}

	sig, err := s.cc.Sign(signBytes)
	if err != nil {
		return nil, errors.Wrap(err, "sign proposal")
	}
	signed, err := msg.AttachSignature(sig)
	if err != nil {
		return nil, err
	}
	next := LastSignState{
		Height:    p.Height,
		Round:     p.Round,
		Step:      StepPropose,
		SignBytes: signBytes,
		Signature: sig,
	}
	if err := s.store.Save(next); err != nil {
		return nil, errors.Wrap(err, "persist sign state")
	}
	s.lss = next
	s.log.Info("proposal signed @ SignProposal, height: %d, round: %d, msg: %s", p.Height, p.Round, libs.GetSum(signBytes))
	return signed, nil
}
