package binary

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"

	"github.com/dyuri/twmap/internal/model"
)

// byteOrder is the order of every multi-byte integer in the container.
// Maps in circulation are written on little-endian hosts and the reference
// loader swaps on big-endian ones, so the order is fixed here rather than
// taken from the host.
var byteOrder binary.ByteOrder = binary.LittleEndian

// absent is the reference value meaning "no value"
const absent = -1

// Words decodes buf as consecutive little-endian signed 32-bit integers.
func Words(buf []byte) ([]int32, error) {
	if len(buf)%4 != 0 {
		return nil, &model.FormatError{What: "item data", Len: len(buf), Stride: 4}
	}
	words := make([]int32, len(buf)/4)
	for i := range words {
		words[i] = int32(byteOrder.Uint32(buf[i*4:]))
	}
	return words, nil
}

// PutWords is the inverse of Words.
func PutWords(words []int32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		byteOrder.PutUint32(buf[i*4:], uint32(w))
	}
	return buf
}

// inRange reports whether 0 <= i < n.
func inRange[T constraints.Integer](i, n T) bool {
	return i >= 0 && i < n
}

// fields is an item's word array. Reads past the end return a default so
// that older item versions, which carry a prefix of the newest layout, decode
// with the trailing fields unset.
type fields []int32

func (f fields) has(i int) bool {
	return i < len(f)
}

func (f fields) at(i int, def int32) int32 {
	if f.has(i) {
		return f[i]
	}
	return def
}

func (f fields) span(from, to int) []int32 {
	if !f.has(to - 1) {
		return nil
	}
	return f[from:to]
}

// trailing returns a copy of the words at and after n.
func (f fields) trailing(n int) []int32 {
	if len(f) <= n {
		return nil
	}
	return append([]int32(nil), f[n:]...)
}
