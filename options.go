// SPDX-License-Identifier: MIT

package xisf

import "log/slog"

// ReaderOptions configures Read/ReadHeader behavior.
type ReaderOptions struct {
	// ValidateChecksums verifies each data block's declared checksum, if present.
	ValidateChecksums bool
	// LoadThumbnails gates materialization of Thumbnail core elements' pixel blocks.
	LoadThumbnails bool
	// LoadExternalReferences gates resolution of External data blocks during
	// distributed-unit reads.
	LoadExternalReferences bool
	// FileStreamProvider resolves local file paths; defaults to the local filesystem.
	FileStreamProvider StreamProvider
	// URIStreamProvider resolves http(s):// URIs; defaults to net/http.
	URIStreamProvider StreamProvider
	// Logger receives Debug-level suspension-point events; defaults to slog.Default().
	Logger *slog.Logger
}

// applyDefaults fills zero-valued reader options with defaults.
func (o *ReaderOptions) applyDefaults() {
	if o.FileStreamProvider == nil {
		o.FileStreamProvider = FileSystemProvider{}
	}
	if o.URIStreamProvider == nil {
		o.URIStreamProvider = HTTPProvider{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// externalStreamProvider picks the ReaderOptions provider that owns b's
// External location: FileStreamProvider for a header-relative
// "path(@header_dir/...)" location, URIStreamProvider for a "url(...)" one.
func externalStreamProvider(opts ReaderOptions, b DataBlock) StreamProvider {
	if b.ExternalIsPath {
		return opts.FileStreamProvider
	}
	return opts.URIStreamProvider
}

// WriterOptions configures Write behavior.
type WriterOptions struct {
	// DefaultCompression, if non-nil, is applied by WriteMonolithic to every
	// Attached block (image pixels, thumbnails, ICC profiles) that does not
	// already declare its own compression. Inline, embedded and external
	// blocks, and everything WriteDistributed writes, are emitted as given.
	DefaultCompression *Codec
	// CalculateChecksums gates computing and attaching a checksum to written blocks.
	CalculateChecksums bool
	// ChecksumAlgorithm selects the algorithm used when CalculateChecksums is set.
	ChecksumAlgorithm ChecksumAlgorithm
	// PrettyPrintXML enables two-space-indented XML emission.
	PrettyPrintXML bool
	// FileStreamProvider defaults to the local filesystem; neither
	// WriteMonolithic nor WriteDistributed consults it.
	FileStreamProvider StreamProvider
	// Logger receives Debug-level suspension-point events; defaults to slog.Default().
	Logger *slog.Logger
}

// applyDefaults fills zero-valued writer options with defaults.
func (o *WriterOptions) applyDefaults() {
	if o.FileStreamProvider == nil {
		o.FileStreamProvider = FileSystemProvider{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// FormatHint is the storage shape that the façade's signature sniff reports
// for a carrier. No read function takes a hint: Read always sniffs, and
// ReadFromNonSeekable buffers its whole input and then sniffs it.
type FormatHint uint8

const (
	// HintAuto accompanies a sniff error: the carrier was rejected and no
	// storage shape applies.
	HintAuto FormatHint = iota
	HintMonolithic
	HintDistributed
)

// WriteResult reports the outcome of a Write call.
type WriteResult struct {
	// XMLHeaderLength is the final, fixed-point XML header length (monolithic writes only).
	XMLHeaderLength uint32
	// BytesWritten is the total byte count written to the carrier.
	BytesWritten int64
}
