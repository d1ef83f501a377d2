// Package mvcc implements snapshot-isolated multi-version transactions over
// an ordered kv.Store, per spec.md §4.4.
package mvcc

import "github.com/ugorji/go/codec"

var msgpackHandle = &codec.MsgpackHandle{}

func encode(v interface{}) []byte {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		panic("mvcc: encode: " + err.Error())
	}
	return buf
}

func decode(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}

func encodeUint64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// encodeBytes applies an order-preserving, prefix-free escape encoding: 0x00
// bytes are escaped as 0x00 0xFF, and the whole value is terminated with
// 0x00 0x00, so concatenations of encoded byte strings still sort correctly
// and can be unambiguously split back apart.
func encodeBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xff)
		} else {
			out = append(out, c)
		}
	}
	return append(out, 0x00, 0x00)
}

// decodeBytes reverses encodeBytes, returning the decoded value and the
// remaining unconsumed bytes.
func decodeBytes(b []byte) (value, rest []byte) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == 0x00 {
			if i+1 < len(b) && b[i+1] == 0xff {
				out = append(out, 0x00)
				i++
				continue
			}
			return out, b[i+2:]
		}
		out = append(out, b[i])
	}
	return out, nil
}
