package xisf

import (
	"bytes"
	"errors"
	"testing"
)

func TestShuffleScenarioS3(t *testing.T) {
	t.Parallel()

	got, err := Shuffle([]byte{1, 2, 3, 4, 5, 6}, 2)
	if err != nil {
		t.Fatalf("Shuffle: %v", err)
	}
	want := []byte{1, 3, 5, 2, 4, 6}
	if !bytes.Equal(got, want) {
		t.Fatalf("Shuffle = %v, want %v", got, want)
	}
}

func TestShuffleUnshuffleRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		data     []byte
		itemSize int
	}{
		{name: "whole items", data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, itemSize: 4},
		{name: "trailing bytes", data: []byte{1, 2, 3, 4, 5, 6, 7}, itemSize: 3},
		{name: "single item", data: []byte{9, 9, 9, 9}, itemSize: 4},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			shuffled, err := Shuffle(tc.data, tc.itemSize)
			if err != nil {
				t.Fatalf("Shuffle: %v", err)
			}
			back, err := Unshuffle(shuffled, tc.itemSize)
			if err != nil {
				t.Fatalf("Unshuffle: %v", err)
			}
			if !bytes.Equal(back, tc.data) {
				t.Fatalf("round trip = %v, want %v", back, tc.data)
			}
		})
	}
}

func TestShuffleRejectsItemSizeBelowTwo(t *testing.T) {
	t.Parallel()

	if _, err := Shuffle([]byte{1, 2, 3}, 1); !errors.Is(err, ErrInvalidItemSize) {
		t.Fatalf("Shuffle with itemSize=1: got %v, want ErrInvalidItemSize", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("pixel data pixel data pixel data "), 200)

	codecs := []Codec{CodecZlib, CodecZlibSh, CodecLZ4, CodecLZ4Sh, CodecLZ4HC, CodecLZ4HCSh}
	for _, codec := range codecs {
		codec := codec
		t.Run(codec.String(), func(t *testing.T) {
			t.Parallel()

			encoded, info, err := compress(payload, codec, 4)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			decoded, err := decompress(encoded, *info)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(decoded, payload) {
				t.Fatalf("decompress mismatch for codec %s", codec)
			}
		})
	}
}

func TestCompressShuffleRequiresItemSize(t *testing.T) {
	t.Parallel()

	if _, _, err := compress([]byte("data"), CodecZlibSh, 0); !errors.Is(err, ErrInvalidItemSize) {
		t.Fatalf("compress with itemSize=0: got %v, want ErrInvalidItemSize", err)
	}
}

func TestCompressionAttrRoundTrip(t *testing.T) {
	t.Parallel()

	itemSize := 4
	info := CompressionInfo{
		Codec:            CodecLZ4Sh,
		UncompressedSize: 1024,
		ItemSize:         &itemSize,
		Subblocks:        []uint64{512, 512},
	}

	attr := FormatCompressionAttr(info)
	parsed, err := ParseCompressionAttr(attr)
	if err != nil {
		t.Fatalf("ParseCompressionAttr(%q): %v", attr, err)
	}
	if parsed.Codec != info.Codec || parsed.UncompressedSize != info.UncompressedSize {
		t.Fatalf("parsed = %+v, want %+v", parsed, info)
	}
	if parsed.ItemSize == nil || *parsed.ItemSize != itemSize {
		t.Fatalf("parsed item size = %v, want %d", parsed.ItemSize, itemSize)
	}
	if len(parsed.Subblocks) != 2 || parsed.Subblocks[0] != 512 || parsed.Subblocks[1] != 512 {
		t.Fatalf("parsed subblocks = %v, want [512 512]", parsed.Subblocks)
	}
}

func TestDecodeCodecMultiBlockTolerance(t *testing.T) {
	t.Parallel()

	a := bytes.Repeat([]byte("A"), 300)
	b := bytes.Repeat([]byte("B"), 400)

	encA, err := encodeCodec(a, CodecZlib)
	if err != nil {
		t.Fatalf("encodeCodec a: %v", err)
	}
	encB, err := encodeCodec(b, CodecZlib)
	if err != nil {
		t.Fatalf("encodeCodec b: %v", err)
	}

	combined := append(append([]byte{}, encA...), encB...)
	info := CompressionInfo{
		Codec:            CodecZlib,
		UncompressedSize: uint64(len(a) + len(b)),
		Subblocks:        []uint64{uint64(len(encA)), uint64(len(encB))},
	}

	decoded, err := decompress(combined, info)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	want := append(append([]byte{}, a...), b...)
	if !bytes.Equal(decoded, want) {
		t.Fatal("multi-block decode mismatch")
	}
}

func TestDecompressLengthMismatchIsCorrupt(t *testing.T) {
	t.Parallel()

	encoded, info, err := compress([]byte("short payload"), CodecZlib, 0)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	info.UncompressedSize += 1

	if _, err := decompress(encoded, *info); !errors.Is(err, ErrCorruptBlock) {
		t.Fatalf("decompress with wrong length: got %v, want ErrCorruptBlock", err)
	}
}
