package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aucusaga/gokms/libs"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Msg is a top-level wire message.
type Msg interface {
	Canonical
	AminoName() string
}

// DecodeFunc rebuilds a message from its body (the bytes after the prefix).
type DecodeFunc func(body []byte) (Msg, error)

type registration struct {
	name   string
	decode DecodeFunc
}

// Registry maps type names to prefixes and prefixes to decoders.
// Registration happens at init time; lookups are safe for concurrent use.
type Registry struct {
	byPrefix map[Prefix]registration
	byName   map[string]Prefix

	mtx sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		byPrefix: make(map[Prefix]registration),
		byName:   make(map[string]Prefix),
	}
}

// Register adds a message type. It panics on a duplicate name or a prefix collision.
func (r *Registry) Register(name string, decode DecodeFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.byName[name]; ok {
		panic(fmt.Sprintf("codec: %s registered more than once", name))
	}
	p := NamePrefix(name)
	if other, ok := r.byPrefix[p]; ok {
		panic(fmt.Sprintf("codec: prefix %s of %s collides with %s", p, name, other.name))
	}
	r.byPrefix[p] = registration{name: name, decode: decode}
	r.byName[name] = p
}

func (r *Registry) PrefixOf(name string) (Prefix, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	p, ok := r.byName[name]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalBinaryBare returns prefix || body.
func (r *Registry) MarshalBinaryBare(m Msg) ([]byte, error) {
	p, ok := r.PrefixOf(m.AminoName())
	if !ok {
		return nil, errors.Wrapf(libs.ErrUnknownMessageType, "%s is not registered", m.AminoName())
	}
	body, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	bz := make([]byte, 0, PrefixLen+len(body))
	bz = append(bz, p[:]...)
	return append(bz, body...), nil
}

// UnmarshalBinaryBare dispatches on the 4-byte prefix of bz.
func (r *Registry) UnmarshalBinaryBare(bz []byte) (Msg, error) {
	if len(bz) < PrefixLen {
		return nil, decodeErr("message of %d bytes has no prefix", len(bz))
	}
	var p Prefix
	copy(p[:], bz[:PrefixLen])

	r.mtx.RLock()
	reg, ok := r.byPrefix[p]
	r.mtx.RUnlock()
	if !ok {
		return nil, errors.Wrapf(libs.ErrUnknownMessageType, "prefix %s", p)
	}
	m, err := reg.decode(bz[PrefixLen:])
	if err != nil {
		return nil, errors.WithMessagef(err, "decode %s", reg.name)
	}
	return m, nil
}

// MarshalBinaryLengthPrefixed returns uvarint(len(bare)) || bare.
func (r *Registry) MarshalBinaryLengthPrefixed(m Msg) ([]byte, error) {
	bare, err := r.MarshalBinaryBare(m)
	if err != nil {
		return nil, err
	}
	bz := make([]byte, 0, maxFrameSlack+len(bare))
	bz = protowire.AppendVarint(bz, uint64(len(bare)))
	return append(bz, bare...), nil
}

func (r *Registry) UnmarshalBinaryLengthPrefixed(bz []byte) (Msg, error) {
	size, n := protowire.ConsumeVarint(bz)
	if n < 0 {
		return nil, decodeErr("frame length: %v", protowire.ParseError(n))
	}
	if uint64(len(bz)-n) != size {
		return nil, decodeErr("frame length %d, have %d bytes", size, len(bz)-n)
	}
	return r.UnmarshalBinaryBare(bz[n:])
}
