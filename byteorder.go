// SPDX-License-Identifier: MIT

package xisf

// validItemSizes enumerates the item sizes ConvertByteOrder accepts.
var validItemSizes = map[int]bool{2: true, 4: true, 8: true, 16: true}

// ConvertByteOrder swaps each item's bytes in place-equivalent fashion when
// from != to. If from == to or itemSize == 1 the input is
// returned unchanged (a copy, to keep the function's output independent of
// caller mutation). itemSize must be one of {2,4,8,16} and evenly divide
// len(b); otherwise ErrInvalidItemSize is returned.
func ConvertByteOrder(b []byte, from, to ByteOrder, itemSize int) ([]byte, error) {
	if from == to || itemSize == 1 {
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}

	if !validItemSizes[itemSize] {
		return nil, errorf(ErrInvalidItemSize, "%d", itemSize)
	}
	if len(b)%itemSize != 0 {
		return nil, errorf(ErrInvalidItemSize, "length %d not a multiple of item size %d", len(b), itemSize)
	}

	out := make([]byte, len(b))
	for start := 0; start < len(b); start += itemSize {
		item := b[start : start+itemSize]
		outItem := out[start : start+itemSize]
		for i := 0; i < itemSize; i++ {
			outItem[i] = item[itemSize-1-i]
		}
	}

	return out, nil
}
