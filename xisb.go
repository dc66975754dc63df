// SPDX-License-Identifier: MIT

package xisf

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// xisbIndexElement is one fixed-size entry of a ".xisb" data-blocks file's
// index: unique_id, block_position, block_length, uncompressed_length, and
// an unused reserved field, each a little-endian uint64, for a total of
// indexElementSize (40) bytes. A block_position of zero marks a free
// (reclaimed) slot that carries no data.
type xisbIndexElement struct {
	UniqueID           uint64
	BlockPosition      uint64
	BlockLength        uint64
	UncompressedLength uint64
	reserved           uint64
}

func (e xisbIndexElement) free() bool { return e.BlockPosition == 0 }

func decodeIndexElement(b []byte) xisbIndexElement {
	return xisbIndexElement{
		UniqueID:           binary.LittleEndian.Uint64(b[0:8]),
		BlockPosition:      binary.LittleEndian.Uint64(b[8:16]),
		BlockLength:        binary.LittleEndian.Uint64(b[16:24]),
		UncompressedLength: binary.LittleEndian.Uint64(b[24:32]),
		reserved:           binary.LittleEndian.Uint64(b[32:40]),
	}
}

func encodeIndexElement(e xisbIndexElement, b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], e.UniqueID)
	binary.LittleEndian.PutUint64(b[8:16], e.BlockPosition)
	binary.LittleEndian.PutUint64(b[16:24], e.BlockLength)
	binary.LittleEndian.PutUint64(b[24:32], e.UncompressedLength)
	binary.LittleEndian.PutUint64(b[32:40], e.reserved)
}

// nodeHeaderSize is the fixed size of one .xisb index-node header:
// length:u32, reserved:u32, next_node:u64.
const nodeHeaderSize = 16

// XisbReader provides random-access lookup into a ".xisb" data-blocks file
// by unique ID. It walks the index-node linked list starting at offset 16
// eagerly on Open, flattening every node's elements into one in-memory
// slice; block payloads are read on demand.
type XisbReader struct {
	r     io.ReaderAt
	index []xisbIndexElement
}

// OpenXisb validates the 16-byte ".xisb" file header and walks its index,
// stopping at the node whose next_node is zero. r must remain valid for the
// lifetime of the returned reader.
func OpenXisb(r io.ReaderAt) (*XisbReader, error) {
	if r == nil {
		return nil, ErrNilReader
	}

	hdr := make([]byte, blocksFileHeaderSize)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: reading .xisb header: %v", ErrStreamIO, err)
	}
	if string(hdr[:8]) != blocksFileSignature {
		return nil, errorf(ErrInvalidSignature, "got %q", hdr[:8])
	}

	xr := &XisbReader{r: r}

	pos := int64(blocksFileHeaderSize)
	for {
		nodeHdr := make([]byte, nodeHeaderSize)
		if _, err := r.ReadAt(nodeHdr, pos); err != nil {
			return nil, fmt.Errorf("%w: reading .xisb index node at %d: %v", ErrStreamIO, pos, err)
		}
		length := binary.LittleEndian.Uint32(nodeHdr[0:4])
		next := binary.LittleEndian.Uint64(nodeHdr[8:16])

		if length > 0 {
			elems := make([]byte, int(length)*indexElementSize)
			if _, err := r.ReadAt(elems, pos+nodeHeaderSize); err != nil {
				return nil, fmt.Errorf("%w: reading .xisb index elements at %d: %v", ErrStreamIO, pos+nodeHeaderSize, err)
			}
			for i := 0; i < int(length); i++ {
				xr.index = append(xr.index, decodeIndexElement(elems[i*indexElementSize:(i+1)*indexElementSize]))
			}
		}

		if next == 0 {
			break
		}
		pos = int64(next)
	}

	return xr, nil
}

// Lookup finds the index element for uniqueID. Free slots (block_position
// == 0) are skipped: looking one up returns ErrBlockNotFound, the same as
// an ID absent from the index entirely.
func (xr *XisbReader) Lookup(uniqueID uint64) (xisbIndexElement, error) {
	for _, e := range xr.index {
		if e.UniqueID == uniqueID && !e.free() {
			return e, nil
		}
	}
	return xisbIndexElement{}, errorf(ErrBlockNotFound, "unique_id %d", uniqueID)
}

// ReadBlock reads the raw bytes of the block identified by uniqueID.
func (xr *XisbReader) ReadBlock(ctx context.Context, uniqueID uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	e, err := xr.Lookup(uniqueID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.BlockLength)
	n, err := xr.r.ReadAt(buf, int64(e.BlockPosition))
	if err != nil && !(err == io.EOF && uint64(n) == e.BlockLength) {
		return nil, fmt.Errorf("%w: reading .xisb block %d: %v", ErrStreamIO, uniqueID, err)
	}
	return buf, nil
}

// XisbWriter appends blocks to a ".xisb" data-blocks file. Writing an index
// is out of scope for the format's own read path, which only requires the
// on-disk node layout to be bit-exact; XisbWriter commits its whole index
// as a single terminal node (next_node == 0) on Flush, linked from the empty
// head node that CreateXisb reserves at offset 16.
type XisbWriter struct {
	w     io.WriteSeeker
	index []xisbIndexElement
	next  uint64
}

// CreateXisb writes a fresh ".xisb" header to w, followed by an empty head
// index node (no elements, next_node zero), and returns a writer with an
// empty index.
func CreateXisb(w io.WriteSeeker) (*XisbWriter, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	hdr := make([]byte, blocksFileHeaderSize+nodeHeaderSize)
	copy(hdr[:8], blocksFileSignature)
	if _, err := w.Write(hdr); err != nil {
		return nil, fmt.Errorf("%w: writing .xisb header: %v", ErrStreamIO, err)
	}
	return &XisbWriter{w: w, next: 1}, nil
}

// AppendBlock writes payload to the end of the file and records a new index
// element for it, returning the assigned unique ID.
func (xw *XisbWriter) AppendBlock(payload []byte, uncompressedLength uint64) (uint64, error) {
	end, err := xw.w.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: seeking .xisb end: %v", ErrStreamIO, err)
	}
	if _, err := xw.w.Write(payload); err != nil {
		return 0, fmt.Errorf("%w: writing .xisb block: %v", ErrStreamIO, err)
	}

	id := xw.next
	xw.next++
	xw.index = append(xw.index, xisbIndexElement{
		UniqueID:           id,
		BlockPosition:      uint64(end),
		BlockLength:        uint64(len(payload)),
		UncompressedLength: uncompressedLength,
	})
	return id, nil
}

// FreeBlock marks uniqueID's index slot free without reclaiming its file
// space; a later Flush still writes the slot with block_position zero.
func (xw *XisbWriter) FreeBlock(uniqueID uint64) error {
	for i := range xw.index {
		if xw.index[i].UniqueID == uniqueID {
			xw.index[i].BlockPosition = 0
			return nil
		}
	}
	return errorf(ErrBlockNotFound, "unique_id %d", uniqueID)
}

// Flush appends the current index to the end of the file as a single
// terminal node and points the head node's next_node at it. Callers that
// AppendBlock after Flush must Flush again to persist the updated index;
// the head node is then re-pointed at the new node and the previously
// written node becomes an orphaned gap.
func (xw *XisbWriter) Flush() error {
	end, err := xw.w.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("%w: seeking .xisb end: %v", ErrStreamIO, err)
	}

	nodeHdr := make([]byte, nodeHeaderSize)
	binary.LittleEndian.PutUint32(nodeHdr[0:4], uint32(len(xw.index)))
	if _, err := xw.w.Write(nodeHdr); err != nil {
		return fmt.Errorf("%w: writing .xisb index node header: %v", ErrStreamIO, err)
	}

	buf := make([]byte, indexElementSize)
	for _, e := range xw.index {
		encodeIndexElement(e, buf)
		if _, err := xw.w.Write(buf); err != nil {
			return fmt.Errorf("%w: writing .xisb index element: %v", ErrStreamIO, err)
		}
	}

	link := make([]byte, 8)
	binary.LittleEndian.PutUint64(link, uint64(end))
	if _, err := xw.w.Seek(blocksFileHeaderSize+8, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seeking .xisb head node: %v", ErrStreamIO, err)
	}
	if _, err := xw.w.Write(link); err != nil {
		return fmt.Errorf("%w: linking .xisb index node: %v", ErrStreamIO, err)
	}
	return nil
}
