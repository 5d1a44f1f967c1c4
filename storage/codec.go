package storage

import (
	"encoding/json"
	"fmt"
)

// Record header: version(1B) || compression(1B) || flags(1B).
const (
	recordVersion    = 1
	recordHeaderSize = 3

	flagSealed = 1 << 0
)

// Codec turns a State into the bytes a persistent store writes. Records are
// JSON, optionally compressed, and sealed when Password is set.
type Codec struct {
	Compression Compression
	Password    string
}

// Encode serializes s.
func (c Codec) Encode(s *State) ([]byte, error) {
	if s == nil {
		return nil, ErrNilState
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal state: %w", err)
	}
	payload, err = Compress(payload, c.Compression)
	if err != nil {
		return nil, err
	}

	var flags byte
	if c.Password != "" {
		payload, err = Seal(payload, c.Password)
		if err != nil {
			return nil, err
		}
		flags |= flagSealed
	}

	out := make([]byte, 0, recordHeaderSize+len(payload))
	out = append(out, recordVersion, byte(c.Compression), flags)
	return append(out, payload...), nil
}

// Decode parses a record written by Encode. The compression scheme is taken
// from the record header, so records written with another scheme still
// decode.
func (c Codec) Decode(data []byte) (*State, error) {
	if len(data) < recordHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	if data[0] != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, data[0])
	}
	scheme := Compression(data[1])
	flags := data[2]
	payload := data[recordHeaderSize:]

	var err error
	if flags&flagSealed != 0 {
		if c.Password == "" {
			return nil, ErrPasswordRequired
		}
		if payload, err = Unseal(payload, c.Password); err != nil {
			return nil, err
		}
	}
	if payload, err = Decompress(payload, scheme); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	s.init()
	return &s, nil
}
