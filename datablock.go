// SPDX-License-Identifier: MIT

package xisf

import (
	"context"
	"fmt"
	"io"
)

// BlockLocationKind discriminates the four data-block location shapes.
type BlockLocationKind uint8

const (
	// BlockInline carries bytes hex- or base64-encoded in the location/element text.
	BlockInline BlockLocationKind = iota
	// BlockEmbedded carries bytes in a <Data> child element.
	BlockEmbedded
	// BlockAttached carries bytes at an absolute offset inside a monolithic file.
	BlockAttached
	// BlockExternal carries bytes in an external resource or a .xisb block.
	BlockExternal
)

// InlineEncoding identifies the text encoding of an inline or embedded block.
type InlineEncoding uint8

const (
	EncodingBase64 InlineEncoding = iota
	EncodingHex
)

func (e InlineEncoding) String() string {
	if e == EncodingHex {
		return "hex"
	}
	return "base64"
}

// CompressionInfo describes a data block's compression.
type CompressionInfo struct {
	Codec Codec
	// UncompressedSize is the exact byte count the decompressor must produce.
	UncompressedSize uint64
	// ItemSize is present (and >= 2) when Codec includes byte-shuffle.
	ItemSize *int
	// Subblocks optionally splits very large payloads into independently
	// compressed chunks; nil/empty means single-block form.
	Subblocks []uint64
}

// ChecksumInfo describes a data block's checksum.
type ChecksumInfo struct {
	Algorithm ChecksumAlgorithm
	Digest    []byte
}

// DataBlock is a data block's parsed, storage-shape-tagged form.
type DataBlock struct {
	Location BlockLocationKind

	// Inline / Embedded.
	EncodedBytes []byte // inline: raw encoded text bytes; embedded: decoded payload is read via Encoding too
	Encoding     InlineEncoding

	// Attached.
	Position uint64
	Size     uint64

	// External.
	URI          string
	ExternalPos  *uint64
	ExternalSize *uint64
	IndexID      *uint64
	// ExternalIsPath is true when URI was read from (and must be written
	// back as) a header-relative "path(@header_dir/...)" location rather
	// than a "url(...)" one.
	ExternalIsPath bool

	ByteOrder   ByteOrder
	Compression *CompressionInfo
	Checksum    *ChecksumInfo

	// RawBytes is the uncompressed sample/profile bytes a caller assembling a
	// Unit for Write wants stored in this block. Reads fill it in two cases
	// only: ReadMonolithic with LoadThumbnails set stores the decoded pixels
	// of Thumbnail elements in Header.CoreElements, and ReadDistributed with
	// LoadExternalReferences set stores External blocks' bytes as fetched
	// (not decompressed or checksum-verified). Other blocks' bytes are read
	// via ReadBlock.
	RawBytes []byte
}

// carrier is the minimal surface the data-block processor needs from the
// monolithic file's underlying stream: random-access reads plus an
// io.ReaderAt-compatible contiguous region for Attached blocks.
type carrier interface {
	io.ReaderAt
}

// readOptionsBlock is the subset of ReaderOptions the data-block processor consults.
type readOptionsBlock struct {
	ValidateChecksums bool
}

// readBlock materializes a DataBlock's raw (possibly still compressed) bytes,
// following the location's dispatch rules, then applies checksum verification
// and decompression. Byte-order conversion is deliberately NOT performed
// here; callers convert explicitly via ConvertByteOrder once they know the
// enclosing image or property's item size.
func readBlock(ctx context.Context, b DataBlock, mono carrier, provider StreamProvider, opts readOptionsBlock) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	raw, err := acquireRawBlockBytes(ctx, b, mono, provider)
	if err != nil {
		return nil, err
	}

	if opts.ValidateChecksums && b.Checksum != nil {
		if err := verifyBlockChecksum(raw, *b.Checksum); err != nil {
			return nil, err
		}
	}

	if b.Compression != nil {
		decoded, err := decompress(raw, *b.Compression)
		if err != nil {
			return nil, err
		}
		return decoded, nil
	}

	return raw, nil
}

// acquireRawBlockBytes dispatches on DataBlock.Location to obtain the raw
// (still-encoded/compressed) bytes for a block.
func acquireRawBlockBytes(ctx context.Context, b DataBlock, mono carrier, provider StreamProvider) ([]byte, error) {
	switch b.Location {
	case BlockInline:
		return decodeText(b.EncodedBytes, b.Encoding)

	case BlockEmbedded:
		return decodeText(b.EncodedBytes, b.Encoding)

	case BlockAttached:
		if mono == nil {
			return nil, ErrNilReader
		}
		buf := make([]byte, b.Size)
		n, err := mono.ReadAt(buf, int64(b.Position))
		if err != nil && !(err == io.EOF && uint64(n) == b.Size) {
			return nil, fmt.Errorf("%w: attached block short read: %v", ErrStreamIO, err)
		}
		if uint64(n) != b.Size {
			return nil, errorf(ErrEndOfStream, "attached block: wanted %d bytes, got %d", b.Size, n)
		}
		return buf, nil

	case BlockExternal:
		if provider == nil {
			return nil, errorf(ErrStreamIO, "external block: no stream provider configured")
		}
		rc, err := provider.Open(ctx, b.URI)
		if err != nil {
			return nil, fmt.Errorf("%w: open external block %q: %v", ErrStreamIO, b.URI, err)
		}
		defer func() { _ = rc.Close() }()

		if b.ExternalPos != nil && b.ExternalSize != nil {
			if seeker, ok := rc.(io.Seeker); ok {
				if _, err := seeker.Seek(int64(*b.ExternalPos), io.SeekStart); err != nil {
					return nil, fmt.Errorf("%w: seek external block: %v", ErrStreamIO, err)
				}
				buf := make([]byte, *b.ExternalSize)
				if _, err := io.ReadFull(rc, buf); err != nil {
					return nil, fmt.Errorf("%w: read external block: %v", ErrStreamIO, err)
				}
				return buf, nil
			}
		}

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read external block: %v", ErrStreamIO, err)
		}
		return data, nil

	default:
		return nil, errorf(ErrCorruptBlock, "unknown block location kind %d", b.Location)
	}
}

// verifyBlockChecksum recomputes the digest over raw (post-compression) bytes
// and compares it against the declared checksum.
func verifyBlockChecksum(raw []byte, c ChecksumInfo) error {
	actual, err := Digest(raw, c.Algorithm)
	if err != nil {
		return err
	}
	if !digestsEqual(actual, c.Digest) {
		return &ChecksumMismatchError{Algorithm: c.Algorithm, Expected: c.Digest, Actual: actual}
	}
	return nil
}

func digestsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// writeOptionsBlock is the subset of WriterOptions the data-block processor consults.
type writeOptionsBlock struct {
	Compress           *Codec
	ItemSize           int
	CalculateChecksums bool
	ChecksumAlgorithm  ChecksumAlgorithm
}

// prepareBlockPayload runs the write-side inverse pipeline: optional
// compression, then optional checksum over the post-compression bytes. It
// returns the bytes that should be placed according to the block's location
// variant, plus the CompressionInfo/ChecksumInfo to attach to the block.
func prepareBlockPayload(payload []byte, opts writeOptionsBlock) ([]byte, *CompressionInfo, *ChecksumInfo, error) {
	out := payload
	var ci *CompressionInfo

	if opts.Compress != nil {
		compressed, info, err := compress(payload, *opts.Compress, opts.ItemSize)
		if err != nil {
			return nil, nil, nil, err
		}
		out = compressed
		ci = info
	}

	var checksum *ChecksumInfo
	if opts.CalculateChecksums {
		digest, err := Digest(out, opts.ChecksumAlgorithm)
		if err != nil {
			return nil, nil, nil, err
		}
		checksum = &ChecksumInfo{Algorithm: opts.ChecksumAlgorithm, Digest: digest}
	}

	return out, ci, checksum, nil
}
