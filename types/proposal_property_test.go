package types

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type proposalArgs struct {
	Height    int64
	Round     int64
	Seconds   int64
	Nanos     int32
	Total     int64
	Hash      []byte
	POLRound  int64
	HasPOL    bool
	POLHash   []byte
	POLTotal  int64
	POLPartsH []byte
}

func (a proposalArgs) proposal() Proposal {
	p := Proposal{
		Height:           a.Height,
		Round:            a.Round,
		Timestamp:        Time{Seconds: a.Seconds, Nanos: a.Nanos},
		BlockPartsHeader: PartsSetHeader{Total: a.Total, Hash: a.Hash},
		POLRound:         a.POLRound,
	}
	if a.HasPOL {
		p.POLBlockID = SomeBlockID(BlockID{
			Hash:        a.POLHash,
			PartsHeader: PartsSetHeader{Total: a.POLTotal, Hash: a.POLPartsH},
		})
	}
	return p
}

func genProposal() gopter.Gen {
	return gen.Struct(reflectProposalArgs, map[string]gopter.Gen{
		"Height":    gen.Int64Range(1, 1<<62),
		"Round":     gen.Int64Range(0, 1<<40),
		"Seconds":   gen.Int64(),
		"Nanos":     gen.Int32Range(0, nanosPerSecond-1),
		"Total":     gen.Int64Range(0, 1<<32),
		"Hash":      gen.SliceOfN(32, gen.UInt8()),
		"POLRound":  gen.Int64Range(NoPOLRound, 1<<40),
		"HasPOL":    gen.Bool(),
		"POLHash":   gen.SliceOfN(32, gen.UInt8()),
		"POLTotal":  gen.Int64Range(0, 1<<32),
		"POLPartsH": gen.SliceOfN(32, gen.UInt8()),
	}).Map(func(a proposalArgs) Proposal { return a.proposal() })
}

var reflectProposalArgs = reflect.TypeOf(proposalArgs{})

func TestProposalProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sign bytes are deterministic", prop.ForAll(
		func(p Proposal) bool {
			a, err1 := NewUnsignedProposal(p).SignBytes()
			b, err2 := NewUnsignedProposal(p.Clone()).SignBytes()
			return err1 == nil && err2 == nil && bytes.Equal(a, b)
		},
		genProposal(),
	))

	properties.Property("decode(encode(e)) == e", prop.ForAll(
		func(p Proposal) bool {
			bz, err := MarshalBinary(NewUnsignedProposal(p))
			if err != nil {
				return false
			}
			msg, err := UnmarshalBinary(bz)
			if err != nil {
				return false
			}
			got, ok := msg.(*UnsignedProposal)
			return ok && got.Proposal().Equal(p)
		},
		genProposal(),
	))

	properties.Property("different heights sign differently", prop.ForAll(
		func(p Proposal, delta int64) bool {
			q := p.Clone()
			q.Height = p.Height + delta
			a, _ := ProposalSignBytes(p)
			b, _ := ProposalSignBytes(q)
			return !bytes.Equal(a, b)
		},
		genProposal(),
		gen.Int64Range(1, 1<<20),
	))

	properties.Property("pol block id presence changes the encoding", prop.ForAll(
		func(p Proposal) bool {
			q := p.Clone()
			q.POLBlockID = NoBlockID()
			a, _ := ProposalSignBytes(p)
			b, _ := ProposalSignBytes(q)
			return p.POLBlockID.IsPresent() == (len(a) > len(b))
		},
		genProposal(),
	))

	properties.TestingRun(t)
}
