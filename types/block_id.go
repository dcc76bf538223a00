package types

import (
	"bytes"
	"fmt"

	"github.com/aucusaga/gokms/codec"
	"github.com/pkg/errors"
)

// PartsSetHeader commits to the split-into-parts encoding of a block.
type PartsSetHeader struct {
	Total int64
	Hash  []byte
}

func (h PartsSetHeader) Validate() error {
	if h.Total < 0 {
		return errors.Errorf("negative parts total %d", h.Total)
	}
	return nil
}

func (h PartsSetHeader) Equal(other PartsSetHeader) bool {
	return h.Total == other.Total && bytes.Equal(h.Hash, other.Hash)
}

func (h PartsSetHeader) Clone() PartsSetHeader {
	return PartsSetHeader{Total: h.Total, Hash: cloneBytes(h.Hash)}
}

func (h PartsSetHeader) String() string {
	return fmt.Sprintf("%d:%X", h.Total, h.Hash)
}

func (h PartsSetHeader) EncodeFields(e *codec.Encoder) {
	e.Sint64(1, h.Total)
	e.ByteSlice(2, h.Hash)
}

func (h *PartsSetHeader) DecodeFields(d *codec.Decoder) error {
	var err error
	if h.Total, err = d.ReadSint64(1); err != nil {
		return err
	}
	h.Hash, err = d.ReadByteSlice(2)
	return err
}

// BlockID identifies a block by its hash and parts header.
type BlockID struct {
	Hash        []byte
	PartsHeader PartsSetHeader
}

func (b BlockID) Validate() error {
	return errors.WithMessage(b.PartsHeader.Validate(), "parts header")
}

func (b BlockID) Equal(other BlockID) bool {
	return bytes.Equal(b.Hash, other.Hash) && b.PartsHeader.Equal(other.PartsHeader)
}

func (b BlockID) Clone() BlockID {
	return BlockID{Hash: cloneBytes(b.Hash), PartsHeader: b.PartsHeader.Clone()}
}

func (b BlockID) String() string {
	return fmt.Sprintf("%X:%v", b.Hash, b.PartsHeader)
}

func (b BlockID) EncodeFields(e *codec.Encoder) {
	e.ByteSlice(1, b.Hash)
	e.Message(2, b.PartsHeader)
}

func (b *BlockID) DecodeFields(d *codec.Decoder) error {
	var err error
	if b.Hash, err = d.ReadByteSlice(1); err != nil {
		return err
	}
	_, err = d.ReadMessage(2, &b.PartsHeader)
	return err
}

// OptionalBlockID is either a BlockID or nothing. The zero value is nothing.
type OptionalBlockID struct {
	id      BlockID
	present bool
}

func SomeBlockID(id BlockID) OptionalBlockID {
	return OptionalBlockID{id: id.Clone(), present: true}
}

func NoBlockID() OptionalBlockID {
	return OptionalBlockID{}
}

// Get returns the block id and whether there is one.
func (o OptionalBlockID) Get() (BlockID, bool) {
	if !o.present {
		return BlockID{}, false
	}
	return o.id.Clone(), true
}

func (o OptionalBlockID) IsPresent() bool {
	return o.present
}

func (o OptionalBlockID) Equal(other OptionalBlockID) bool {
	if o.present != other.present {
		return false
	}
	return !o.present || o.id.Equal(other.id)
}

func (o OptionalBlockID) String() string {
	if !o.present {
		return "<none>"
	}
	return o.id.String()
}

func cloneBytes(bz []byte) []byte {
	if bz == nil {
		return nil
	}
	return append([]byte{}, bz...)
}
