package types

import (
	"fmt"
	"time"

	"github.com/aucusaga/gokms/codec"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const nanosPerSecond = 1000000000

// Time is a UTC instant, seconds and nanoseconds since the unix epoch.
type Time struct {
	Seconds int64
	Nanos   int32
}

func NewTime(t time.Time) Time {
	ts := timestamppb.New(t)
	return Time{Seconds: ts.Seconds, Nanos: ts.Nanos}
}

// ParseTime parses an RFC 3339 timestamp.
func ParseTime(s string) (Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Time{}, err
	}
	return NewTime(t), nil
}

// Std converts t to a time.Time in UTC.
func (t Time) Std() time.Time {
	return (&timestamppb.Timestamp{Seconds: t.Seconds, Nanos: t.Nanos}).AsTime()
}

func (t Time) Validate() error {
	if t.Nanos < 0 || t.Nanos >= nanosPerSecond {
		return errors.Errorf("nanos %d out of range [0, 1e9)", t.Nanos)
	}
	return nil
}

func (t Time) String() string {
	if t.Validate() != nil {
		return fmt.Sprintf("Time{%d, %d}", t.Seconds, t.Nanos)
	}
	return t.Std().Format(time.RFC3339Nano)
}

func (t Time) EncodeFields(e *codec.Encoder) {
	if err := t.Validate(); err != nil {
		e.Fail(err)
		return
	}
	e.Sfixed64(1, t.Seconds)
	e.Sfixed32(2, t.Nanos)
}

func (t *Time) DecodeFields(d *codec.Decoder) error {
	var err error
	if t.Seconds, err = d.ReadSfixed64(1); err != nil {
		return err
	}
	t.Nanos, err = d.ReadSfixed32(2)
	return err
}
