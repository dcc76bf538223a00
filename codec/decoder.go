package codec

import (
	"github.com/aucusaga/gokms/libs"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Decodable is implemented by values that can be rebuilt from their canonical encoding.
// DecodeFields must read its fields in ascending field number.
type Decodable interface {
	DecodeFields(d *Decoder) error
}

// Decoder reads tagged fields written by an Encoder. It is strict: fields must
// appear in ascending order, at most once, with the expected wire type, and no
// unknown field may remain once the caller is done. Varints, tags and lengths
// must use their shortest form. An absent field is not an error; the Read*
// helpers return the zero value for it.
type Decoder struct {
	buf  []byte
	last protowire.Number
}

func NewDecoder(bz []byte) *Decoder {
	return &Decoder{buf: bz}
}

// Unmarshal decodes bz into m and rejects trailing fields.
func Unmarshal(bz []byte, m Decodable) error {
	d := NewDecoder(bz)
	if err := m.DecodeFields(d); err != nil {
		return err
	}
	return d.Finish()
}

func decodeErr(format string, args ...interface{}) error {
	return errors.Wrapf(libs.ErrDecoding, format, args...)
}

func (d *Decoder) Done() bool {
	return len(d.buf) == 0
}

// Finish fails if any field is left unread.
func (d *Decoder) Finish() error {
	if d.Done() {
		return nil
	}
	num, _, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return decodeErr("bad tag: %v", protowire.ParseError(n))
	}
	if num <= d.last {
		return decodeErr("field %d repeated or out of order", num)
	}
	return decodeErr("unknown field %d", num)
}

// Field reports whether the next field is num and, if so, consumes its tag.
func (d *Decoder) Field(num protowire.Number, typ protowire.Type) (bool, error) {
	if d.Done() {
		return false, nil
	}
	got, gotTyp, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return false, decodeErr("bad tag: %v", protowire.ParseError(n))
	}
	if n != protowire.SizeTag(got) {
		return false, decodeErr("field %d: overlong tag", got)
	}
	switch {
	case got <= d.last:
		return false, decodeErr("field %d repeated or out of order", got)
	case got < num:
		return false, decodeErr("unknown field %d", got)
	case got > num:
		return false, nil
	}
	if gotTyp != typ {
		return false, decodeErr("field %d: wire type %d, want %d", num, gotTyp, typ)
	}
	d.buf = d.buf[n:]
	d.last = got
	return true, nil
}

func (d *Decoder) varint() (uint64, error) {
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		return 0, decodeErr("field %d: %v", d.last, protowire.ParseError(n))
	}
	if n != protowire.SizeVarint(v) {
		return 0, decodeErr("field %d: overlong varint", d.last)
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *Decoder) ReadSint64(num protowire.Number) (int64, error) {
	ok, err := d.Field(num, protowire.VarintType)
	if err != nil || !ok {
		return 0, err
	}
	v, err := d.varint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (d *Decoder) ReadUvarint(num protowire.Number) (uint64, error) {
	ok, err := d.Field(num, protowire.VarintType)
	if err != nil || !ok {
		return 0, err
	}
	return d.varint()
}

func (d *Decoder) ReadSfixed64(num protowire.Number) (int64, error) {
	ok, err := d.Field(num, protowire.Fixed64Type)
	if err != nil || !ok {
		return 0, err
	}
	v, n := protowire.ConsumeFixed64(d.buf)
	if n < 0 {
		return 0, decodeErr("field %d: %v", num, protowire.ParseError(n))
	}
	d.buf = d.buf[n:]
	return int64(v), nil
}

func (d *Decoder) ReadSfixed32(num protowire.Number) (int32, error) {
	ok, err := d.Field(num, protowire.Fixed32Type)
	if err != nil || !ok {
		return 0, err
	}
	v, n := protowire.ConsumeFixed32(d.buf)
	if n < 0 {
		return 0, decodeErr("field %d: %v", num, protowire.ParseError(n))
	}
	d.buf = d.buf[n:]
	return int32(v), nil
}

// ReadByteSlice returns a copy of the field's bytes, nil when absent.
func (d *Decoder) ReadByteSlice(num protowire.Number) ([]byte, error) {
	ok, err := d.Field(num, protowire.BytesType)
	if err != nil || !ok {
		return nil, err
	}
	return d.bytes(num)
}

func (d *Decoder) bytes(num protowire.Number) ([]byte, error) {
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		return nil, decodeErr("field %d: %v", num, protowire.ParseError(n))
	}
	if n != protowire.SizeBytes(len(v)) {
		return nil, decodeErr("field %d: overlong length", num)
	}
	d.buf = d.buf[n:]
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (d *Decoder) ReadString(num protowire.Number) (string, error) {
	bz, err := d.ReadByteSlice(num)
	return string(bz), err
}

// ReadMessage decodes a nested message into m and reports whether it was present.
func (d *Decoder) ReadMessage(num protowire.Number, m Decodable) (bool, error) {
	ok, err := d.Field(num, protowire.BytesType)
	if err != nil || !ok {
		return false, err
	}
	bz, err := d.bytes(num)
	if err != nil {
		return false, err
	}
	if err := Unmarshal(bz, m); err != nil {
		return false, errors.WithMessagef(err, "field %d", num)
	}
	return true, nil
}
