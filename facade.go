// SPDX-License-Identifier: MIT

package xisf

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Carrier is the random-access stream a Read call consumes: it must
// support both sequential and absolute-offset access, since monolithic
// units address attached blocks by file offset.
type Carrier interface {
	io.ReaderAt
	io.Seeker
}

// sniff reads the first 8 bytes of carrier without disturbing any caller
// expectation about its position afterward, and classifies the storage
// shape: "XISF0100" selects monolithic, "XISB0100" is rejected
// outright, anything else is treated as a distributed XML header.
func sniff(carrier Carrier) (FormatHint, error) {
	buf := make([]byte, 8)
	n, err := carrier.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return HintAuto, fmt.Errorf("%w: sniffing signature: %v", ErrStreamIO, err)
	}
	if n < 8 {
		return HintDistributed, nil
	}
	switch string(buf) {
	case monolithicSignature:
		return HintMonolithic, nil
	case blocksFileSignature:
		return HintAuto, ErrDirectXisbRead
	default:
		return HintDistributed, nil
	}
}

// Read parses an XISF unit from carrier, auto-detecting monolithic versus
// distributed storage by signature. A carrier whose first 8
// bytes are the ".xisb" signature is rejected with ErrDirectXisbRead: a
// block-file has no unit of its own to read.
func Read(ctx context.Context, carrier Carrier, opts ReaderOptions) (*Unit, error) {
	if carrier == nil {
		return nil, ErrNilReader
	}
	hint, err := sniff(carrier)
	if err != nil {
		return nil, err
	}

	switch hint {
	case HintMonolithic:
		return ReadMonolithic(ctx, carrier, opts)
	default:
		if _, err := carrier.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStreamIO, err)
		}
		xmlBytes, err := io.ReadAll(io.NewSectionReader(carrier, 0, 1<<62))
		if err != nil {
			return nil, fmt.Errorf("%w: reading distributed header: %v", ErrStreamIO, err)
		}
		return ReadDistributed(ctx, xmlBytes, opts)
	}
}

// ReadFromNonSeekable parses a unit from a plain io.Reader, using the
// fallback rule: a non-seekable carrier with no explicit hint is assumed
// monolithic only if its first 8 bytes say so; a reader that cannot seek
// is buffered fully into memory first since both storage shapes require
// random access (monolithic for attached offsets, distributed trivially
// since it is read whole regardless).
func ReadFromNonSeekable(ctx context.Context, r io.Reader, opts ReaderOptions) (*Unit, error) {
	if r == nil {
		return nil, ErrNilReader
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: buffering input: %v", ErrStreamIO, err)
	}
	return Read(ctx, bytes.NewReader(data), opts)
}

// ReadHeader parses only the unit's structural header (Metadata, Images'
// attribute-level fields, core elements, global properties) without
// materializing any data block's bytes, regardless of opts.LoadThumbnails
// or opts.LoadExternalReferences.
func ReadHeader(ctx context.Context, carrier Carrier, opts ReaderOptions) (*Unit, error) {
	opts.LoadThumbnails = false
	opts.LoadExternalReferences = false
	return Read(ctx, carrier, opts)
}

// Write serializes u per its own StorageModel.Kind, dispatching to
// WriteMonolithic or WriteDistributed.
func Write(ctx context.Context, w io.Writer, u *Unit, opts WriterOptions) (WriteResult, error) {
	if u == nil {
		return WriteResult{}, errorf(ErrNilWriter, "unit is nil")
	}
	switch u.StorageModel.Kind {
	case Monolithic:
		return WriteMonolithic(ctx, w, u, opts)
	case Distributed:
		return WriteDistributed(ctx, w, u, opts)
	default:
		return WriteResult{}, errorf(ErrUnknownEnumValue, "storage model kind %d", u.StorageModel.Kind)
	}
}
