// SPDX-License-Identifier: MIT

package xisf

import (
	"bytes"
	"compress/zlib"
	"io"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression codec by its wire identifier.
// LZ4/LZ4-HC pull in github.com/pierrec/lz4/v4; zlib uses the standard
// library's compress/zlib.
type Codec uint8

const (
	CodecZlib Codec = iota
	CodecZlibSh
	CodecLZ4
	CodecLZ4Sh
	CodecLZ4HC
	CodecLZ4HCSh
)

var codecWireNames = map[Codec]string{
	CodecZlib:    "zlib",
	CodecZlibSh:  "zlib+sh",
	CodecLZ4:     "lz4",
	CodecLZ4Sh:   "lz4+sh",
	CodecLZ4HC:   "lz4hc",
	CodecLZ4HCSh: "lz4hc+sh",
}

func (c Codec) String() string {
	if s, ok := codecWireNames[c]; ok {
		return s
	}
	return "unknown"
}

// HasShuffle reports whether c applies byte-shuffle as pre/post-conditioner.
func (c Codec) HasShuffle() bool {
	switch c {
	case CodecZlibSh, CodecLZ4Sh, CodecLZ4HCSh:
		return true
	default:
		return false
	}
}

// ParseCodec resolves a wire codec identifier to its enumerator.
func ParseCodec(s string) (Codec, error) {
	for c, name := range codecWireNames {
		if name == s {
			return c, nil
		}
	}
	return 0, errorf(ErrUnsupportedCodec, "%q", s)
}

// maxSingleBlockSize is the conservative single-block size ceiling for
// zlib and LZ4.
const maxSingleBlockSize = (1 << 32) - 1

// compress runs the write-side pipeline: shuffle first (if +sh),
// then encode. It returns the encoded bytes and a CompressionInfo carrying
// the *original* (pre-shuffle) length as UncompressedSize. itemSize is the
// enclosing image/property's sample item size; it is required (and must be
// >= 2) whenever codec.HasShuffle().
func compress(payload []byte, codec Codec, itemSize int) ([]byte, *CompressionInfo, error) {
	toEncode := payload
	info := &CompressionInfo{Codec: codec, UncompressedSize: uint64(len(payload))}

	if codec.HasShuffle() {
		if itemSize < 2 {
			return nil, nil, errorf(ErrInvalidItemSize, "codec %s requires shuffle item size >= 2, got %d", codec, itemSize)
		}
		shuffled, err := Shuffle(payload, itemSize)
		if err != nil {
			return nil, nil, err
		}
		toEncode = shuffled
		is := itemSize
		info.ItemSize = &is
	}

	encoded, err := encodeCodec(toEncode, codec)
	if err != nil {
		return nil, nil, err
	}

	return encoded, info, nil
}

// decompress runs the read-side pipeline: decode to exactly
// UncompressedSize bytes, then unshuffle (if +sh). A length mismatch fails
// with ErrCorruptBlock.
func decompress(encoded []byte, info CompressionInfo) ([]byte, error) {
	decoded, err := decodeCodec(encoded, info)
	if err != nil {
		return nil, err
	}

	if info.ItemSize != nil {
		unshuffled, err := Unshuffle(decoded, *info.ItemSize)
		if err != nil {
			return nil, err
		}
		decoded = unshuffled
	}

	if uint64(len(decoded)) != info.UncompressedSize {
		return nil, errorf(ErrCorruptBlock, "decompressed length %d != declared %d", len(decoded), info.UncompressedSize)
	}

	return decoded, nil
}

// encodeCodec dispatches the base codec (ignoring the +sh bit, already applied).
func encodeCodec(b []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecZlib, CodecZlibSh:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			return nil, errorf(ErrStreamIO, "zlib compress: %v", err)
		}
		if err := w.Close(); err != nil {
			return nil, errorf(ErrStreamIO, "zlib compress close: %v", err)
		}
		return buf.Bytes(), nil

	case CodecLZ4, CodecLZ4Sh:
		return lz4Encode(b, 0)

	case CodecLZ4HC, CodecLZ4HCSh:
		return lz4Encode(b, lz4.Level9)

	default:
		return nil, errorf(ErrUnsupportedCodec, "codec %d", codec)
	}
}

// lz4Encode compresses b as a single LZ4 frame, optionally at a fixed
// compression level (used for the HC variants).
func lz4Encode(b []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if level != 0 {
		if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
			return nil, errorf(ErrStreamIO, "lz4 configure: %v", err)
		}
	}
	if _, err := w.Write(b); err != nil {
		return nil, errorf(ErrStreamIO, "lz4 compress: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, errorf(ErrStreamIO, "lz4 compress close: %v", err)
	}
	return buf.Bytes(), nil
}

// decodeCodec dispatches the base decoder, honoring multi-block subblocks
// when present: it tolerates both single-block and multi-block forms.
func decodeCodec(encoded []byte, info CompressionInfo) ([]byte, error) {
	blocks := info.Subblocks
	if len(blocks) == 0 {
		blocks = []uint64{uint64(len(encoded))}
	}

	out := make([]byte, 0, info.UncompressedSize)
	offset := 0
	for _, blockLen := range blocks {
		if offset+int(blockLen) > len(encoded) {
			return nil, errorf(ErrCorruptBlock, "subblock extends past encoded payload")
		}
		chunk := encoded[offset : offset+int(blockLen)]
		offset += int(blockLen)

		decoded, err := decodeOneBlock(chunk, info.Codec)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}

	return out, nil
}

func decodeOneBlock(b []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecZlib, CodecZlibSh:
		r, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, errorf(ErrCorruptBlock, "zlib: %v", err)
		}
		defer func() { _ = r.Close() }()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errorf(ErrCorruptBlock, "zlib decode: %v", err)
		}
		return out, nil

	case CodecLZ4, CodecLZ4Sh, CodecLZ4HC, CodecLZ4HCSh:
		r := lz4.NewReader(bytes.NewReader(b))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errorf(ErrCorruptBlock, "lz4 decode: %v", err)
		}
		return out, nil

	default:
		return nil, errorf(ErrUnsupportedCodec, "codec %d", codec)
	}
}

// FormatCompressionAttr renders a CompressionInfo as the
// "<codec>:<uncompressed_size>[:<item_size>][:<subblock_sizes...>]" wire
// form.
func FormatCompressionAttr(c CompressionInfo) string {
	var sb strings.Builder
	sb.WriteString(c.Codec.String())
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(c.UncompressedSize, 10))
	if c.ItemSize != nil {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(*c.ItemSize))
	}
	for _, sz := range c.Subblocks {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(sz, 10))
	}
	return sb.String()
}

// ParseCompressionAttr parses the compression attribute wire form.
func ParseCompressionAttr(s string) (CompressionInfo, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 {
		return CompressionInfo{}, errorf(ErrMalformedXML, "compression attribute %q: need at least codec:size", s)
	}

	codec, err := ParseCodec(fields[0])
	if err != nil {
		return CompressionInfo{}, err
	}

	size, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return CompressionInfo{}, errorf(ErrMalformedXML, "compression attribute %q: bad size: %v", s, err)
	}

	info := CompressionInfo{Codec: codec, UncompressedSize: size}

	rest := fields[2:]
	if codec.HasShuffle() {
		if len(rest) == 0 {
			return CompressionInfo{}, errorf(ErrCorruptBlock, "compression attribute %q: +sh codec requires item_size", s)
		}
		itemSize, err := strconv.Atoi(rest[0])
		if err != nil || itemSize < 2 {
			return CompressionInfo{}, errorf(ErrCorruptBlock, "compression attribute %q: bad item_size", s)
		}
		info.ItemSize = &itemSize
		rest = rest[1:]
	}

	if len(rest) > 0 {
		info.Subblocks = make([]uint64, 0, len(rest))
		for _, f := range rest {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return CompressionInfo{}, errorf(ErrMalformedXML, "compression attribute %q: bad subblock size: %v", s, err)
			}
			info.Subblocks = append(info.Subblocks, v)
		}
	}

	return info, nil
}
