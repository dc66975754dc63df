// SPDX-License-Identifier: MIT

package xisf

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// ReadMonolithic parses a ".xisf" monolithic unit from r. r must
// support random access: the 16-byte file header and XML header are read
// sequentially from the front. Image data blocks are not materialized; their
// bytes are read on demand with ReadBlock against the same r. When
// opts.LoadThumbnails is set, the pixel blocks of the Thumbnail elements in
// Header.CoreElements are read and stored in their RawBytes; anonymous and
// image-associated thumbnails are left unread.
func ReadMonolithic(ctx context.Context, r io.ReaderAt, opts ReaderOptions) (*Unit, error) {
	opts.applyDefaults()

	if r == nil {
		return nil, ErrNilReader
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	hdr := make([]byte, fileHeaderSize)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: reading file header: %v", ErrStreamIO, err)
	}
	if string(hdr[:8]) != monolithicSignature {
		return nil, errorf(ErrInvalidSignature, "got %q", hdr[:8])
	}
	xmlLen := binary.LittleEndian.Uint32(hdr[8:12])
	if xmlLen < minXMLHeaderLength {
		return nil, errorf(ErrMalformedXML, "header length %d is below the minimum of %d", xmlLen, minXMLHeaderLength)
	}

	xmlBytes := make([]byte, xmlLen)
	if _, err := r.ReadAt(xmlBytes, fileHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: reading xml header: %v", ErrStreamIO, err)
	}

	ph, err := DecodeXMLHeader(xmlBytes)
	if err != nil {
		return nil, err
	}

	u := &Unit{
		StorageModel:     StorageModel{Kind: Monolithic},
		Header:           ph.Header,
		Images:           ph.Images,
		GlobalProperties: ph.GlobalProperties,
	}

	logDebug(opts.Logger, "xisf: decoded monolithic header", "images", len(u.Images), "xml_len", xmlLen)

	if !opts.LoadThumbnails {
		return u, nil
	}

	for uid, ce := range u.Header.CoreElements {
		if ce.Kind != ElementThumbnail {
			continue
		}
		data, err := readBlock(ctx, ce.ThumbnailPixelData, r, externalStreamProvider(opts, ce.ThumbnailPixelData), readOptionsBlock{ValidateChecksums: opts.ValidateChecksums})
		if err != nil {
			return nil, fmt.Errorf("thumbnail %s: %w", uid, err)
		}
		ce.ThumbnailPixelData.RawBytes = data
		u.Header.CoreElements[uid] = ce
	}

	return u, nil
}

// ReadBlock materializes and returns the decompressed bytes of a single data
// block b, verifying its checksum when opts.ValidateChecksums is set. For an
// Attached block, r must be the carrier the block's unit was read from. This
// is the public entry point callers use to pull pixel data on demand.
func ReadBlock(ctx context.Context, r io.ReaderAt, b DataBlock, opts ReaderOptions) ([]byte, error) {
	opts.applyDefaults()
	return readBlock(ctx, b, r, externalStreamProvider(opts, b), readOptionsBlock{ValidateChecksums: opts.ValidateChecksums})
}

// WriteMonolithic serializes u to w as a ".xisf" monolithic file.
// Every DataBlock in u whose Location is BlockAttached is compressed and
// checksummed according to opts and WriterOptions-level defaults, then
// positioned by the two-pass fixed-point layout algorithm before any bytes
// are written.
func WriteMonolithic(ctx context.Context, w io.Writer, u *Unit, opts WriterOptions) (WriteResult, error) {
	opts.applyDefaults()

	if w == nil {
		return WriteResult{}, ErrNilWriter
	}
	if err := ctx.Err(); err != nil {
		return WriteResult{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if err := ValidateForWrite(u); err != nil {
		return WriteResult{}, err
	}

	ph := &parsedHeader{Header: u.Header, Images: u.Images, GlobalProperties: u.GlobalProperties}
	if ph.Header.CoreElements == nil {
		ph.Header.CoreElements = make(map[string]CoreElement)
	}

	prepare := func(b *DataBlock, itemSizeHint int) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		codec := opts.DefaultCompression
		if b.Compression != nil {
			c := b.Compression.Codec
			codec = &c
		}
		var itemSize int
		if codec != nil && codec.HasShuffle() {
			switch {
			case b.Compression != nil && b.Compression.ItemSize != nil:
				itemSize = *b.Compression.ItemSize
			default:
				itemSize = itemSizeHint
			}
		}
		payload, ci, checksum, err := prepareBlockPayload(b.RawBytes, writeOptionsBlock{
			Compress:           codec,
			ItemSize:           itemSize,
			CalculateChecksums: opts.CalculateChecksums,
			ChecksumAlgorithm:  opts.ChecksumAlgorithm,
		})
		if err != nil {
			return nil, err
		}
		b.Compression = ci
		b.Checksum = checksum
		return payload, nil
	}

	attachments, err := collectAttachments(ph, prepare)
	if err != nil {
		return WriteResult{}, err
	}

	xmlBytes, err := computeLayout(ph, attachments, EncodeOptions{PrettyPrint: opts.PrettyPrintXML})
	if err != nil {
		return WriteResult{}, err
	}

	var written int64

	hdr := make([]byte, fileHeaderSize)
	copy(hdr[:8], monolithicSignature)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(xmlBytes)))
	n, err := w.Write(hdr)
	written += int64(n)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%w: writing file header: %v", ErrStreamIO, err)
	}

	n, err = w.Write(xmlBytes)
	written += int64(n)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%w: writing xml header: %v", ErrStreamIO, err)
	}

	for _, a := range attachments {
		n, err = w.Write(a.payload)
		written += int64(n)
		if err != nil {
			return WriteResult{}, fmt.Errorf("%w: writing attached block: %v", ErrStreamIO, err)
		}
	}

	logDebug(opts.Logger, "xisf: wrote monolithic unit", "images", len(u.Images), "bytes", written)

	return WriteResult{XMLHeaderLength: uint32(len(xmlBytes)), BytesWritten: written}, nil
}
