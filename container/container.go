// Package container implements the canonical encoding shared by every signed
// artifact of the currency: keys, certificates, coins and protocol messages.
//
// Each artifact declares its fields explicitly, in a fixed order, through
// EncodeFields. A field carries a Tag telling whether it is covered by the
// signature and whether it may leave the owner. The encoding of a container
// in ModeSigning depends only on its signing fields, so two implementations
// that agree on the schema produce byte-identical input for the signature.
package container

import (
	"math/big"
	"sort"
	"time"

	"github.com/tchajed/marshal"
)

// Mode selects which fields an Encoder writes.
type Mode uint8

const (
	// ModeSigning writes signing fields only. This is what gets hashed and signed.
	ModeSigning Mode = iota

	// ModeShared writes every field that is not private. This is what peers see.
	ModeShared

	// ModeAll writes every field, private ones included. Local persistence only.
	ModeAll
)

// Tag describes how a field participates in the encoding.
type Tag uint8

const (
	// Signing marks a field as covered by the container signature.
	Signing Tag = 1 << iota

	// Private marks a field that must never appear in a shared encoding.
	Private
)

// Field kinds written before every field name.
const (
	kindString     byte = 's'
	kindUint       byte = 'u'
	kindInt        byte = 'i'
	kindRaw        byte = 'r'
	kindList       byte = 'l'
	kindMap        byte = 'm'
	kindTime       byte = 't'
	kindNested     byte = 'c'
	kindNestedList byte = 'L'
)

// Big integer flags.
const (
	intNil      byte = 0
	intPositive byte = 1
	intNegative byte = 2
)

// Container is implemented by every artifact with a canonical encoding.
// EncodeFields must write the same fields in the same order on every call.
type Container interface {
	EncodeFields(e *Encoder)
}

// Signed is a container carrying a signature over its signing fields.
// The signature field itself is never a signing field.
type Signed interface {
	Container
	Signature() *big.Int
	SetSignature(sig *big.Int)
}

// Encoder accumulates the canonical encoding of a container.
type Encoder struct {
	mode Mode
	buf  []byte
}

// NewEncoder returns an empty encoder for the given mode.
func NewEncoder(mode Mode) *Encoder {
	return &Encoder{mode: mode}
}

// Mode returns the encoder's mode.
func (e *Encoder) Mode() Mode { return e.mode }

// Bytes returns the encoding accumulated so far.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) include(tag Tag) bool {
	switch e.mode {
	case ModeSigning:
		return tag&Signing != 0
	case ModeShared:
		return tag&Private == 0
	default:
		return true
	}
}

func (e *Encoder) header(kind byte, name string) {
	e.buf = marshal.WriteBytes(e.buf, []byte{kind})
	e.buf = writeSlice(e.buf, []byte(name))
}

// String writes a string field.
func (e *Encoder) String(name string, tag Tag, v string) {
	if !e.include(tag) {
		return
	}
	e.header(kindString, name)
	e.buf = writeSlice(e.buf, []byte(v))
}

// Uint writes an unsigned integer field.
func (e *Encoder) Uint(name string, tag Tag, v uint64) {
	if !e.include(tag) {
		return
	}
	e.header(kindUint, name)
	e.buf = marshal.WriteInt(e.buf, v)
}

// Int writes an arbitrary precision integer field. A nil value is encoded
// distinctly from zero.
func (e *Encoder) Int(name string, tag Tag, v *big.Int) {
	if !e.include(tag) {
		return
	}
	e.header(kindInt, name)
	e.buf = writeInt(e.buf, v)
}

// Raw writes an opaque byte string field.
func (e *Encoder) Raw(name string, tag Tag, v []byte) {
	if !e.include(tag) {
		return
	}
	e.header(kindRaw, name)
	e.buf = writeSlice(e.buf, v)
}

// Strings writes an ordered list of strings. Order is part of the encoding.
func (e *Encoder) Strings(name string, tag Tag, v []string) {
	if !e.include(tag) {
		return
	}
	e.header(kindList, name)
	e.buf = marshal.WriteInt(e.buf, uint64(len(v)))
	for _, s := range v {
		e.buf = writeSlice(e.buf, []byte(s))
	}
}

// Map writes a string to integer mapping as key/value pairs sorted by key.
func (e *Encoder) Map(name string, tag Tag, v map[string]*big.Int) {
	if !e.include(tag) {
		return
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.header(kindMap, name)
	e.buf = marshal.WriteInt(e.buf, uint64(len(keys)))
	for _, k := range keys {
		e.buf = writeSlice(e.buf, []byte(k))
		e.buf = writeInt(e.buf, v[k])
	}
}

// Time writes a timestamp with one second resolution.
func (e *Encoder) Time(name string, tag Tag, v time.Time) {
	if !e.include(tag) {
		return
	}
	e.header(kindTime, name)
	e.buf = marshal.WriteInt(e.buf, uint64(v.Unix()))
}

// Nested writes an embedded container using the encoder's mode. The nested
// encoding is length-prefixed so that field boundaries stay unambiguous.
func (e *Encoder) Nested(name string, tag Tag, c Container) {
	if !e.include(tag) {
		return
	}
	e.header(kindNested, name)
	if c == nil {
		e.buf = writeSlice(e.buf, nil)
		return
	}
	sub := NewEncoder(e.mode)
	c.EncodeFields(sub)
	e.buf = writeSlice(e.buf, sub.buf)
}

// List writes an ordered list of embedded containers. Each element is
// encoded like Nested.
func (e *Encoder) List(name string, tag Tag, items []Container) {
	if !e.include(tag) {
		return
	}
	e.header(kindNestedList, name)
	e.buf = marshal.WriteInt(e.buf, uint64(len(items)))
	for _, c := range items {
		if c == nil {
			e.buf = writeSlice(e.buf, nil)
			continue
		}
		sub := NewEncoder(e.mode)
		c.EncodeFields(sub)
		e.buf = writeSlice(e.buf, sub.buf)
	}
}

// Items converts a typed slice for List.
func Items[T Container](items []T) []Container {
	out := make([]Container, len(items))
	for i, c := range items {
		out[i] = c
	}
	return out
}

// Encode returns the canonical encoding of c in the given mode.
func Encode(c Container, mode Mode) []byte {
	if c == nil {
		return nil
	}
	e := NewEncoder(mode)
	c.EncodeFields(e)
	return e.buf
}

func writeSlice(b []byte, data []byte) []byte {
	b = marshal.WriteInt(b, uint64(len(data)))
	return marshal.WriteBytes(b, data)
}

func writeInt(b []byte, v *big.Int) []byte {
	switch {
	case v == nil:
		b = marshal.WriteBytes(b, []byte{intNil})
		return writeSlice(b, nil)
	case v.Sign() < 0:
		b = marshal.WriteBytes(b, []byte{intNegative})
	default:
		b = marshal.WriteBytes(b, []byte{intPositive})
	}
	return writeSlice(b, v.Bytes())
}
