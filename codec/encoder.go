package codec

import (
	"github.com/aucusaga/gokms/libs"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Canonical is implemented by every value with a canonical field encoding.
// EncodeFields must write its fields in ascending field number.
type Canonical interface {
	EncodeFields(e *Encoder)
}

// Encoder renders tagged fields into a byte slice. Fields are emitted in the
// order they are written; writing a field number that is not greater than the
// previous one fails the encoder.
//
// The first failure sticks: later writes are no-ops and Bytes reports it.
type Encoder struct {
	buf  []byte
	last protowire.Number
	err  error
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Marshal returns the canonical encoding of m.
func Marshal(m Canonical) ([]byte, error) {
	e := NewEncoder()
	m.EncodeFields(e)
	return e.Bytes()
}

func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.buf == nil {
		return []byte{}, nil
	}
	return e.buf, nil
}

// Fail records err as the encoder's failure; it is wrapped with libs.ErrEncoding.
func (e *Encoder) Fail(err error) {
	if e.err == nil {
		e.err = errors.Wrap(libs.ErrEncoding, err.Error())
	}
}

func (e *Encoder) tag(num protowire.Number, typ protowire.Type) bool {
	if e.err != nil {
		return false
	}
	if num <= e.last {
		e.Fail(errors.Errorf("field %d written after field %d", num, e.last))
		return false
	}
	e.last = num
	e.buf = protowire.AppendTag(e.buf, num, typ)
	return true
}

// Sint64 writes a zig-zag varint.
func (e *Encoder) Sint64(num protowire.Number, v int64) {
	if e.tag(num, protowire.VarintType) {
		e.buf = protowire.AppendVarint(e.buf, protowire.EncodeZigZag(v))
	}
}

// Uvarint writes a plain base-128 varint.
func (e *Encoder) Uvarint(num protowire.Number, v uint64) {
	if e.tag(num, protowire.VarintType) {
		e.buf = protowire.AppendVarint(e.buf, v)
	}
}

// Sfixed64 writes v as 8 little-endian bytes.
func (e *Encoder) Sfixed64(num protowire.Number, v int64) {
	if e.tag(num, protowire.Fixed64Type) {
		e.buf = protowire.AppendFixed64(e.buf, uint64(v))
	}
}

// Sfixed32 writes v as 4 little-endian bytes.
func (e *Encoder) Sfixed32(num protowire.Number, v int32) {
	if e.tag(num, protowire.Fixed32Type) {
		e.buf = protowire.AppendFixed32(e.buf, uint32(v))
	}
}

// ByteSlice writes v length-delimited, raw.
func (e *Encoder) ByteSlice(num protowire.Number, v []byte) {
	if e.tag(num, protowire.BytesType) {
		e.buf = protowire.AppendBytes(e.buf, v)
	}
}

func (e *Encoder) String(num protowire.Number, s string) {
	if e.tag(num, protowire.BytesType) {
		e.buf = protowire.AppendString(e.buf, s)
	}
}

// Message encodes m recursively and writes it as a length-delimited field.
func (e *Encoder) Message(num protowire.Number, m Canonical) {
	if e.err != nil {
		return
	}
	inner := NewEncoder()
	m.EncodeFields(inner)
	bz, err := inner.Bytes()
	if err != nil {
		e.err = err
		return
	}
	e.ByteSlice(num, bz)
}
