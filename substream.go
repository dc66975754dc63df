// SPDX-License-Identifier: MIT

package xisf

import (
	"io"
)

// Substream is a bounded, read-only view onto a seekable carrier.
// It does not own the carrier: closing a Substream never closes the
// underlying carrier.
type Substream struct {
	carrier io.ReadSeeker
	offset  int64
	length  int64
	pos     int64
}

// NewSubstream returns a view bounded to [offset, offset+length) of carrier.
// The carrier's current position is unspecified on return; Substream always
// seeks the carrier itself before each read.
func NewSubstream(carrier io.ReadSeeker, offset, length int64) (*Substream, error) {
	if offset < 0 || length < 0 {
		return nil, errorf(ErrInvalidRange, "offset=%d length=%d", offset, length)
	}
	return &Substream{carrier: carrier, offset: offset, length: length}, nil
}

// Read reads into p, honoring the window; it returns 0, io.EOF once the
// window is exhausted.
func (s *Substream) Read(p []byte) (int, error) {
	if s.pos >= s.length {
		return 0, io.EOF
	}

	remaining := s.length - s.pos
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	if _, err := s.carrier.Seek(s.offset+s.pos, io.SeekStart); err != nil {
		return 0, errorf(ErrStreamIO, "substream seek: %v", err)
	}

	n, err := s.carrier.Read(p)
	s.pos += int64(n)
	if err != nil && err != io.EOF {
		return n, errorf(ErrStreamIO, "substream read: %v", err)
	}

	return n, nil
}

// Seek repositions within the window, clamped to [0, length].
func (s *Substream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.length + offset
	default:
		return 0, errorf(ErrInvalidRange, "unknown whence %d", whence)
	}

	if target < 0 {
		target = 0
	}
	if target > s.length {
		target = s.length
	}

	s.pos = target
	return s.pos, nil
}

// Write always fails: a Substream is read-only.
func (s *Substream) Write([]byte) (int, error) {
	return 0, errorf(ErrStreamIO, "substream is read-only")
}

// Len returns the window length.
func (s *Substream) Len() int64 { return s.length }
