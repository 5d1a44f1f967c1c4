package container

import (
	"fmt"

	"github.com/tchajed/marshal"
)

// FieldInfo describes one top-level field of an encoding.
type FieldInfo struct {
	Name string
	Kind byte
}

// Inspect walks an encoding produced by Encode and lists its top-level
// fields in order. It is meant for diagnostics and interoperability checks.
func Inspect(data []byte) ([]FieldInfo, error) {
	var fields []FieldInfo
	b := data
	for len(b) > 0 {
		kind := b[0]
		b = b[1:]

		name, rest, err := readSlice(b)
		if err != nil {
			return nil, err
		}
		b = rest

		switch kind {
		case kindString, kindRaw, kindNested:
			_, b, err = readSlice(b)
		case kindUint, kindTime:
			_, b, err = readUint(b)
		case kindInt:
			b, err = skipInt(b)
		case kindList, kindNestedList:
			var n uint64
			n, b, err = readUint(b)
			for i := uint64(0); err == nil && i < n; i++ {
				_, b, err = readSlice(b)
			}
		case kindMap:
			var n uint64
			n, b, err = readUint(b)
			for i := uint64(0); err == nil && i < n; i++ {
				_, b, err = readSlice(b)
				if err == nil {
					b, err = skipInt(b)
				}
			}
		default:
			return nil, fmt.Errorf("%w: unknown field kind %q", ErrFieldMismatch, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields = append(fields, FieldInfo{Name: string(name), Kind: kind})
	}
	return fields, nil
}

func readUint(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, ErrTruncated
	}
	v, rest := marshal.ReadInt(b)
	return v, rest, nil
}

func readSlice(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, ErrTruncated
	}
	data, rest := marshal.ReadBytes(rest, n)
	return data, rest, nil
}

func skipInt(b []byte) ([]byte, error) {
	if len(b) < 1 {
		return nil, ErrTruncated
	}
	_, rest, err := readSlice(b[1:])
	return rest, err
}
