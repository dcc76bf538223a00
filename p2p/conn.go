package p2p

import (
	"fmt"
	"io"
	"time"

	"github.com/aucusaga/gokms/libs"
	"github.com/aucusaga/gokms/types"
	ggio "github.com/gogo/protobuf/io"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	defaultMaxPacketMsgSize = 1024
	defaultTimeout          = 3 * time.Second
)

// frame carries one registered message, prefix || body, through the
// delimited reader/writer, which adds the uvarint length in front.
type frame struct {
	msg types.Msg
}

func (f *frame) Reset()         { f.msg = nil }
func (f *frame) String() string { return fmt.Sprintf("%v", f.msg) }
func (f *frame) ProtoMessage()  {}

func (f *frame) Marshal() ([]byte, error) {
	return types.MarshalBinaryBare(f.msg)
}

func (f *frame) Unmarshal(bz []byte) error {
	msg, err := types.UnmarshalBinaryBare(bz)
	if err != nil {
		return err
	}
	f.msg = msg
	return nil
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// DefaultConn exchanges framed messages over any stream: a TCP or unix
// socket, or a libp2p stream.
type DefaultConn struct {
	id     string
	stream io.ReadWriteCloser

	reader        ggio.ReadCloser
	bufConnWriter ggio.WriteCloser

	log libs.Logger
}

func NewDefaultConn(stream io.ReadWriteCloser, maxPacketMsgSize int, logger libs.Logger) *DefaultConn {
	if maxPacketMsgSize <= 0 {
		maxPacketMsgSize = defaultMaxPacketMsgSize
	}
	return &DefaultConn{
		id:            uuid.New().String(),
		stream:        stream,
		reader:        ggio.NewDelimitedReader(stream, maxPacketMsgSize),
		bufConnWriter: ggio.NewDelimitedWriter(stream),
		log:           libs.NewLogger(logger),
	}
}

func (dc *DefaultConn) ID() string {
	return dc.id
}

// WriteMsg sends one frame.
func (dc *DefaultConn) WriteMsg(msg types.Msg) error {
	bare, err := types.MarshalBinaryBare(msg)
	if err != nil {
		return err
	}
	if err := dc.bufConnWriter.WriteMsg(&frame{msg: msg}); err != nil {
		dc.log.Error("send fail @ conn.WriteMsg, conn: %s, msg: %s, err: %v", dc.id, msg.AminoName(), err)
		return errors.Wrap(libs.ErrTransport, err.Error())
	}
	dc.log.Debug("send succ @ conn.WriteMsg, conn: %s, msg: %s, sum: %s", dc.id, msg.AminoName(), libs.GetSum(bare))
	return nil
}

// ReadMsg blocks for the next frame. Decoding failures are returned as is,
// everything else is a libs.ErrTransport.
func (dc *DefaultConn) ReadMsg() (types.Msg, error) {
	var f frame
	err := dc.reader.ReadMsg(&f)
	if err == nil {
		return f.msg, nil
	}
	if isCodecErr(err) {
		return nil, err
	}
	if err == io.EOF {
		return nil, errors.Wrap(libs.ErrTransport, "connection closed by remote")
	}
	if err == io.ErrShortBuffer {
		return nil, errors.Wrap(libs.ErrTransport, "frame exceeds max packet size")
	}
	return nil, errors.Wrap(libs.ErrTransport, err.Error())
}

func isCodecErr(err error) bool {
	for _, target := range []error{
		libs.ErrDecoding,
		libs.ErrUnknownMessageType,
		libs.ErrInvalidMessage,
		libs.ErrInvalidSignature,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SetDeadline applies to both directions when the stream supports deadlines.
func (dc *DefaultConn) SetDeadline(t time.Time) error {
	if d, ok := dc.stream.(deadliner); ok {
		return d.SetDeadline(t)
	}
	return nil
}

func (dc *DefaultConn) Close() error {
	return dc.stream.Close()
}
