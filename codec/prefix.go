package codec

import (
	"crypto/sha256"
	"fmt"
)

const (
	PrefixLen     = 4
	disambBytes   = 3
	maxFrameSlack = 10 // uvarint of any frame length
)

// Prefix is the 4-byte type tag placed before a registered message body.
type Prefix [PrefixLen]byte

// NamePrefix derives the prefix of a type name: sha256(name), drop leading zero
// bytes, skip the 3 disambiguation bytes, drop leading zero bytes again, and
// keep the next 4 bytes.
func NamePrefix(name string) Prefix {
	sum := sha256.Sum256([]byte(name))
	bz := sum[:]
	for bz[0] == 0x00 {
		bz = bz[1:]
	}
	bz = bz[disambBytes:]
	for bz[0] == 0x00 {
		bz = bz[1:]
	}
	var p Prefix
	copy(p[:], bz[:PrefixLen])
	return p
}

func (p Prefix) Bytes() []byte {
	return append([]byte(nil), p[:]...)
}

func (p Prefix) String() string {
	return fmt.Sprintf("%X", p[:])
}
