package xisf

import (
	"bytes"
	"errors"
	"testing"
)

func TestConvertByteOrderInvolution(t *testing.T) {
	t.Parallel()

	itemSizes := []int{2, 4, 8, 16}
	for _, itemSize := range itemSizes {
		itemSize := itemSize
		t.Run(itemSizeLabel(itemSize), func(t *testing.T) {
			t.Parallel()

			data := make([]byte, itemSize*3)
			for i := range data {
				data[i] = byte(i + 1)
			}

			swapped, err := ConvertByteOrder(data, LittleEndian, BigEndian, itemSize)
			if err != nil {
				t.Fatalf("ConvertByteOrder: %v", err)
			}
			back, err := ConvertByteOrder(swapped, BigEndian, LittleEndian, itemSize)
			if err != nil {
				t.Fatalf("ConvertByteOrder: %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Fatalf("involution failed: got %v, want %v", back, data)
			}
		})
	}
}

func TestConvertByteOrderSameOrderIsCopy(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4}
	out, err := ConvertByteOrder(data, LittleEndian, LittleEndian, 4)
	if err != nil {
		t.Fatalf("ConvertByteOrder: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("got %v, want %v", out, data)
	}

	out[0] = 99
	if data[0] == 99 {
		t.Fatal("ConvertByteOrder must return an independent copy")
	}
}

func TestConvertByteOrderRejectsBadItemSize(t *testing.T) {
	t.Parallel()

	if _, err := ConvertByteOrder([]byte{1, 2, 3}, LittleEndian, BigEndian, 3); !errors.Is(err, ErrInvalidItemSize) {
		t.Fatalf("itemSize=3: got %v, want ErrInvalidItemSize", err)
	}
	if _, err := ConvertByteOrder([]byte{1, 2, 3}, LittleEndian, BigEndian, 2); !errors.Is(err, ErrInvalidItemSize) {
		t.Fatalf("length not multiple of itemSize: got %v, want ErrInvalidItemSize", err)
	}
}

func itemSizeLabel(n int) string {
	switch n {
	case 2:
		return "2"
	case 4:
		return "4"
	case 8:
		return "8"
	case 16:
		return "16"
	default:
		return "?"
	}
}
