package types

import (
	"github.com/aucusaga/gokms/codec"
)

// Msg is any message of the remote signer protocol.
type Msg = codec.Msg

var registry = codec.NewRegistry()

func init() {
	registry.Register(SignProposalName, decodeSignProposal)
	registry.Register(PubKeyRequestName, decodeInto(func() decodableMsg { return &PubKeyRequest{} }))
	registry.Register(PubKeyMsgName, decodeInto(func() decodableMsg { return &PubKeyMsg{} }))
	registry.Register(PingRequestName, decodeInto(func() decodableMsg { return &PingRequest{} }))
	registry.Register(PingResponseName, decodeInto(func() decodableMsg { return &PingResponse{} }))
	registry.Register(RemoteSignerErrorName, decodeInto(func() decodableMsg { return &RemoteSignerError{} }))
}

type decodableMsg interface {
	Msg
	codec.Decodable
}

func decodeInto(newMsg func() decodableMsg) codec.DecodeFunc {
	return func(body []byte) (codec.Msg, error) {
		m := newMsg()
		if err := codec.Unmarshal(body, m); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// MsgNames lists every registered message name.
func MsgNames() []string {
	return registry.Names()
}

// MsgPrefix returns the 4-byte type prefix of a registered name.
func MsgPrefix(name string) (codec.Prefix, bool) {
	return registry.PrefixOf(name)
}

// MarshalBinaryBare returns prefix || body, the payload of one transport frame.
func MarshalBinaryBare(m Msg) ([]byte, error) {
	return registry.MarshalBinaryBare(m)
}

// UnmarshalBinaryBare decodes prefix || body; unknown prefixes yield libs.ErrUnknownMessageType.
func UnmarshalBinaryBare(bz []byte) (Msg, error) {
	return registry.UnmarshalBinaryBare(bz)
}

// MarshalBinary returns the full wire form, uvarint length || prefix || body.
func MarshalBinary(m Msg) ([]byte, error) {
	return registry.MarshalBinaryLengthPrefixed(m)
}

func UnmarshalBinary(bz []byte) (Msg, error) {
	return registry.UnmarshalBinaryLengthPrefixed(bz)
}
