package types

import (
	"fmt"

	"github.com/aucusaga/gokms/codec"
)

const (
	PubKeyRequestName     = "tendermint/socketpv/PubKeyRequest"
	PubKeyMsgName         = "tendermint/socketpv/PubKeyMsg"
	PingRequestName       = "tendermint/socketpv/PingRequest"
	PingResponseName      = "tendermint/socketpv/PingResponse"
	RemoteSignerErrorName = "tendermint/socketpv/RemoteSignerError"
)

// Codes carried by RemoteSignerError.
const (
	CodeUnexpectedMessage int64 = iota + 1
	CodeInvalidProposal
	CodeDoubleSign
	CodeSigningFailed
)

// PubKeyRequest asks the signer for its public key.
type PubKeyRequest struct{}

func (PubKeyRequest) AminoName() string                  { return PubKeyRequestName }
func (PubKeyRequest) EncodeFields(*codec.Encoder)        {}
func (*PubKeyRequest) DecodeFields(*codec.Decoder) error { return nil }

// PubKeyMsg carries the signer's public key, raw Ed25519 bytes.
type PubKeyMsg struct {
	PubKey []byte
}

func (m *PubKeyMsg) AminoName() string { return PubKeyMsgName }

func (m *PubKeyMsg) EncodeFields(e *codec.Encoder) {
	e.ByteSlice(1, m.PubKey)
}

func (m *PubKeyMsg) DecodeFields(d *codec.Decoder) error {
	var err error
	m.PubKey, err = d.ReadByteSlice(1)
	return err
}

type PingRequest struct{}

func (PingRequest) AminoName() string                  { return PingRequestName }
func (PingRequest) EncodeFields(*codec.Encoder)        {}
func (*PingRequest) DecodeFields(*codec.Decoder) error { return nil }

type PingResponse struct{}

func (PingResponse) AminoName() string                  { return PingResponseName }
func (PingResponse) EncodeFields(*codec.Encoder)        {}
func (*PingResponse) DecodeFields(*codec.Decoder) error { return nil }

// RemoteSignerError is the signer's answer when it refuses or fails a request.
type RemoteSignerError struct {
	Code        int64
	Description string
}

func (m *RemoteSignerError) AminoName() string { return RemoteSignerErrorName }

func (m *RemoteSignerError) EncodeFields(e *codec.Encoder) {
	e.Sint64(1, m.Code)
	e.String(2, m.Description)
}

func (m *RemoteSignerError) DecodeFields(d *codec.Decoder) error {
	var err error
	if m.Code, err = d.ReadSint64(1); err != nil {
		return err
	}
	m.Description, err = d.ReadString(2)
	return err
}

func (m *RemoteSignerError) Error() string {
	return fmt.Sprintf("remote signer error, code: %d, description: %s", m.Code, m.Description)
}
