// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import "fmt"

// AppendCompactU16 appends the compact-u16 ("shortvec") encoding of v to
// dst. Lengths of on-wire arrays use this encoding.
func AppendCompactU16(dst []byte, v uint16) []byte {
	for {
		if v < 0x80 {
			return append(dst, byte(v))
		}
		dst = append(dst, byte(v&0x7f)|0x80)
		v >>= 7
	}
}

// ConsumeCompactU16 reads a compact-u16 from the front of b and returns
// the value and the number of bytes consumed.
func ConsumeCompactU16(b []byte) (uint16, int, error) {
	var (
		v     uint32
		shift uint
	)
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("%w: truncated compact-u16", ErrInvalidBytes)
		}
		elem := uint32(b[i])
		v |= (elem & 0x7f) << shift
		if elem&0x80 == 0 {
			if v > 0xffff {
				return 0, 0, fmt.Errorf("%w: compact-u16 overflow", ErrInvalidBytes)
			}
			return uint16(v), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("%w: compact-u16 too long", ErrInvalidBytes)
}
