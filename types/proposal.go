package types

import (
	"fmt"

	"github.com/aucusaga/gokms/codec"
	"github.com/aucusaga/gokms/libs"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// NoPOLRound is the pol_round of a proposal without a prior lock.
const NoPOLRound = -1

// Proposal is a validator's claim that a block should be the next one at Height/Round.
// It is a value: pass it around by copy and use Clone before sharing its slices.
type Proposal struct {
	Height           int64
	Round            int64
	Timestamp        Time
	BlockPartsHeader PartsSetHeader
	POLRound         int64
	POLBlockID       OptionalBlockID
}

// Validate checks the proposal invariants and reports every violation.
func (p Proposal) Validate() error {
	var result *multierror.Error
	if p.Height <= 0 {
		result = multierror.Append(result, errors.Errorf("non-positive height %d", p.Height))
	}
	if p.Round < 0 {
		result = multierror.Append(result, errors.Errorf("negative round %d", p.Round))
	}
	if err := p.Timestamp.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "timestamp"))
	}
	if err := p.BlockPartsHeader.Validate(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "block parts header"))
	}
	if p.POLRound < NoPOLRound {
		result = multierror.Append(result, errors.Errorf("pol round %d below %d", p.POLRound, NoPOLRound))
	}
	if id, ok := p.POLBlockID.Get(); ok {
		if err := id.Validate(); err != nil {
			result = multierror.Append(result, errors.WithMessage(err, "pol block id"))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(libs.ErrInvalidMessage, err.Error())
	}
	return nil
}

func (p Proposal) Equal(other Proposal) bool {
	return p.Height == other.Height &&
		p.Round == other.Round &&
		p.Timestamp == other.Timestamp &&
		p.BlockPartsHeader.Equal(other.BlockPartsHeader) &&
		p.POLRound == other.POLRound &&
		p.POLBlockID.Equal(other.POLBlockID)
}

func (p Proposal) Clone() Proposal {
	c := p
	c.BlockPartsHeader = p.BlockPartsHeader.Clone()
	if id, ok := p.POLBlockID.Get(); ok {
		c.POLBlockID = SomeBlockID(id)
	}
	return c
}

func (p Proposal) String() string {
	return fmt.Sprintf("Proposal{%d/%d %v (%d, %v) @ %v}",
		p.Height, p.Round, p.BlockPartsHeader, p.POLRound, p.POLBlockID, p.Timestamp)
}

// EncodeFields writes fields 1-6. A missing pol block id is omitted.
func (p Proposal) EncodeFields(e *codec.Encoder) {
	e.Sint64(1, p.Height)
	e.Sint64(2, p.Round)
	e.Message(3, p.Timestamp)
	e.Message(4, p.BlockPartsHeader)
	e.Sint64(5, p.POLRound)
	if id, ok := p.POLBlockID.Get(); ok {
		e.Message(6, id)
	}
}

func (p *Proposal) DecodeFields(d *codec.Decoder) error {
	var err error
	if p.Height, err = d.ReadSint64(1); err != nil {
		return err
	}
	if p.Round, err = d.ReadSint64(2); err != nil {
		return err
	}
	if _, err = d.ReadMessage(3, &p.Timestamp); err != nil {
		return err
	}
	if _, err = d.ReadMessage(4, &p.BlockPartsHeader); err != nil {
		return err
	}
	if p.POLRound, err = d.ReadSint64(5); err != nil {
		return err
	}
	var id BlockID
	ok, err := d.ReadMessage(6, &id)
	if err != nil {
		return err
	}
	p.POLBlockID = NoBlockID()
	if ok {
		p.POLBlockID = SomeBlockID(id)
	}
	return nil
}

// ProposalSignBytes returns the canonical encoding of p: fields 1-6 with no
// tag, length, type prefix or signature around them.
func ProposalSignBytes(p Proposal) ([]byte, error) {
	return codec.Marshal(p)
}
