// SPDX-License-Identifier: MIT

package xisf

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// ReadDistributed parses a ".xish" distributed-storage header.
// Unlike ReadMonolithic, xmlBytes is the entire file content: distributed
// headers carry no binary file header and no attached blocks. When
// opts.LoadExternalReferences is set, every External block's bytes are
// eagerly resolved via opts.FileStreamProvider/opts.URIStreamProvider and
// stashed in that block's RawBytes.
func ReadDistributed(ctx context.Context, xmlBytes []byte, opts ReaderOptions) (*Unit, error) {
	opts.applyDefaults()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	ph, err := DecodeXMLHeader(xmlBytes)
	if err != nil {
		return nil, err
	}

	u := &Unit{
		StorageModel:     StorageModel{Kind: Distributed},
		Header:           ph.Header,
		Images:           ph.Images,
		GlobalProperties: ph.GlobalProperties,
	}

	logDebug(opts.Logger, "xisf: decoded distributed header", "images", len(u.Images))

	if !opts.LoadExternalReferences {
		return u, nil
	}

	for i := range u.Images {
		if err := resolveImageExternalBlocks(ctx, &u.Images[i], opts); err != nil {
			return nil, err
		}
	}
	for uid, ce := range u.Header.CoreElements {
		if err := resolveCoreElementExternalBlocks(ctx, &ce, opts); err != nil {
			return nil, err
		}
		u.Header.CoreElements[uid] = ce
	}
	for i := range u.Header.Anonymous {
		if err := resolveCoreElementExternalBlocks(ctx, &u.Header.Anonymous[i], opts); err != nil {
			return nil, err
		}
	}

	return u, nil
}

func resolveImageExternalBlocks(ctx context.Context, img *Image, opts ReaderOptions) error {
	if err := resolveExternalBlock(ctx, &img.PixelData, opts); err != nil {
		return err
	}
	for i := range img.AssociatedElements {
		if err := resolveCoreElementExternalBlocks(ctx, &img.AssociatedElements[i], opts); err != nil {
			return err
		}
	}
	return nil
}

func resolveCoreElementExternalBlocks(ctx context.Context, ce *CoreElement, opts ReaderOptions) error {
	if err := resolveExternalBlock(ctx, &ce.IccProfileBlock, opts); err != nil {
		return err
	}
	if err := resolveExternalBlock(ctx, &ce.ThumbnailPixelData, opts); err != nil {
		return err
	}
	return nil
}

// resolveExternalBlock materializes an External block's raw bytes into
// RawBytes. A block carrying an IndexID addresses a ".xisb" file
// named by the block's URI, resolved via opts.FileStreamProvider; one
// carrying only a URI is read directly through externalStreamProvider
// (FileStreamProvider for a header-relative path, URIStreamProvider for a
// url()), honoring ExternalPos/ExternalSize when present.
func resolveExternalBlock(ctx context.Context, b *DataBlock, opts ReaderOptions) error {
	if b.Location != BlockExternal {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	if b.IndexID != nil {
		data, err := readXisbExternalBlock(ctx, b, opts)
		if err != nil {
			return err
		}
		b.RawBytes = data
		return nil
	}

	data, err := acquireRawBlockBytes(ctx, *b, nil, externalStreamProvider(opts, *b))
	if err != nil {
		return err
	}
	b.RawBytes = data
	return nil
}

// readXisbExternalBlock opens the ".xisb" file named by b.URI through a
// StreamProvider, buffers it (XisbReader requires io.ReaderAt), and looks
// up *b.IndexID.
func readXisbExternalBlock(ctx context.Context, b *DataBlock, opts ReaderOptions) ([]byte, error) {
	rc, err := opts.FileStreamProvider.Open(ctx, b.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrStreamIO, b.URI, err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrStreamIO, b.URI, err)
	}

	xr, err := OpenXisb(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return xr.ReadBlock(ctx, *b.IndexID)
}

// WriteDistributed serializes u's header as ".xish" XML. Any
// image or core-element data block whose Location is BlockAttached is
// rejected: attached storage has no meaning without a monolithic file.
func WriteDistributed(ctx context.Context, w io.Writer, u *Unit, opts WriterOptions) (WriteResult, error) {
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
	for i, img := range u.Images {
		if img.PixelData.Location == BlockAttached {
			return WriteResult{}, errorf(ErrInvalidRange, "Images[%d]: attached blocks are not valid in distributed storage", i)
		}
	}
	elems := append([]CoreElement{}, u.Header.Anonymous...)
	for _, ce := range u.Header.CoreElements {
		elems = append(elems, ce)
	}
	for _, img := range u.Images {
		elems = append(elems, img.AssociatedElements...)
	}
	for _, ce := range elems {
		if ce.IccProfileBlock.Location == BlockAttached || ce.ThumbnailPixelData.Location == BlockAttached {
			return WriteResult{}, errorf(ErrInvalidRange, "core element %q: attached blocks are not valid in distributed storage", ce.UID)
		}
	}

	ph := &parsedHeader{Header: u.Header, Images: u.Images, GlobalProperties: u.GlobalProperties}
	xmlBytes, err := EncodeXMLHeader(ph, EncodeOptions{PrettyPrint: opts.PrettyPrintXML})
	if err != nil {
		return WriteResult{}, err
	}

	n, err := w.Write(xmlBytes)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%w: writing .xish: %v", ErrStreamIO, err)
	}

	logDebug(opts.Logger, "xisf: wrote distributed header", "images", len(u.Images), "bytes", n)

	return WriteResult{BytesWritten: int64(n)}, nil
}
