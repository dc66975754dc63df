package xisf

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

func distributedUnit() *Unit {
	return &Unit{
		StorageModel: StorageModel{Kind: Distributed, HeaderFilename: "unit.xish"},
		Header: Header{
			Metadata: Metadata{
				CreationTime:       time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
				CreatorApplication: "xisf test suite",
			},
			CoreElements: map[string]CoreElement{},
		},
		Images: []Image{
			{
				Geometry:     Geometry{Dims: []uint64{4, 4}, Channels: 1},
				SampleFormat: UInt8,
				ColorSpace:   Gray,
				PixelData:    DataBlock{Location: BlockExternal, URI: "image.dat", ExternalIsPath: true},
			},
		},
	}
}

func TestWriteReadDistributedRoundTrip(t *testing.T) {
	t.Parallel()

	u := distributedUnit()
	var buf bytes.Buffer
	if _, err := WriteDistributed(context.Background(), &buf, u, WriterOptions{}); err != nil {
		t.Fatalf("WriteDistributed: %v", err)
	}

	got, err := ReadDistributed(context.Background(), buf.Bytes(), ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadDistributed: %v", err)
	}
	if len(got.Images) != 1 || got.Images[0].PixelData.Location != BlockExternal {
		t.Fatalf("Images = %+v", got.Images)
	}
	if got.Images[0].PixelData.URI != "image.dat" {
		t.Fatalf("URI = %q, want %q", got.Images[0].PixelData.URI, "image.dat")
	}
}

func TestWriteDistributedRejectsAttachedBlock(t *testing.T) {
	t.Parallel()

	u := distributedUnit()
	u.Images[0].PixelData = DataBlock{Location: BlockAttached, RawBytes: []byte("xxxx")}

	var buf bytes.Buffer
	if _, err := WriteDistributed(context.Background(), &buf, u, WriterOptions{}); err == nil {
		t.Fatal("expected error for attached block in distributed storage")
	}
}

func TestReadDistributedResolvesExternalReference(t *testing.T) {
	t.Parallel()

	u := distributedUnit()
	var buf bytes.Buffer
	if _, err := WriteDistributed(context.Background(), &buf, u, WriterOptions{}); err != nil {
		t.Fatalf("WriteDistributed: %v", err)
	}

	provider := fakeProvider{data: map[string][]byte{"image.dat": []byte{0, 1, 2, 3}}}
	got, err := ReadDistributed(context.Background(), buf.Bytes(), ReaderOptions{
		LoadExternalReferences: true,
		FileStreamProvider:     provider,
	})
	if err != nil {
		t.Fatalf("ReadDistributed: %v", err)
	}
	if !bytes.Equal(got.Images[0].PixelData.RawBytes, []byte{0, 1, 2, 3}) {
		t.Fatalf("RawBytes = %v, want [0 1 2 3]", got.Images[0].PixelData.RawBytes)
	}
}

// TestXisbScenarioS4 feeds a ".xisb" signature to the façade read and
// expects ErrDirectXisbRead.
func TestXisbScenarioS4(t *testing.T) {
	t.Parallel()

	data := make([]byte, 16)
	copy(data, blocksFileSignature)

	_, err := Read(context.Background(), bytes.NewReader(data), ReaderOptions{})
	if !errors.Is(err, ErrDirectXisbRead) {
		t.Fatalf("got %v, want ErrDirectXisbRead", err)
	}
}

// TestXisbScenarioS5 matches the free-slot/not-found semantics: a second
// index element with block_position=0 is a free slot and must report
// ErrBlockNotFound, while the first element's block reads back correctly.
func TestXisbScenarioS5(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write([]byte(blocksFileSignature))
	buf.Write(make([]byte, blocksFileHeaderSize-8))

	// One index node: length=2, reserved=0, next_node=0 (terminal).
	nodeHdr := make([]byte, nodeHeaderSize)
	binary.LittleEndian.PutUint32(nodeHdr[0:4], 2)
	buf.Write(nodeHdr)

	payloadPos := blocksFileHeaderSize + nodeHeaderSize + 2*indexElementSize

	elementA := make([]byte, indexElementSize)
	encodeIndexElement(xisbIndexElement{UniqueID: 1, BlockPosition: uint64(payloadPos), BlockLength: 4}, elementA)
	buf.Write(elementA)

	elementB := make([]byte, indexElementSize)
	encodeIndexElement(xisbIndexElement{UniqueID: 2, BlockPosition: 0, BlockLength: 0}, elementB)
	buf.Write(elementB)

	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})

	xr, err := OpenXisb(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenXisb: %v", err)
	}

	if _, err := xr.Lookup(2); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("Lookup(2): got %v, want ErrBlockNotFound", err)
	}

	got, err := xr.ReadBlock(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadBlock(1): %v", err)
	}
	if !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("ReadBlock(1) = %x, want deadbeef", got)
	}
}

// memWriteSeeker is an in-memory io.WriteSeeker for exercising code that
// needs to seek while writing, such as XisbWriter.
type memWriteSeeker struct {
	buf []byte
	off int64
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.off + int64(len(p))
	if end > int64(len(m.buf)) {
		next := make([]byte, end)
		copy(next, m.buf)
		m.buf = next
	}
	copy(m.buf[m.off:end], p)
	m.off = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.off + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	m.off = next
	return m.off, nil
}

func TestXisbAppendAndFlushRoundTrip(t *testing.T) {
	t.Parallel()

	backing := &memWriteSeeker{}

	xw, err := CreateXisb(backing)
	if err != nil {
		t.Fatalf("CreateXisb: %v", err)
	}

	id, err := xw.AppendBlock([]byte("hello"), 5)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if err := xw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	xr, err := OpenXisb(bytes.NewReader(backing.buf))
	if err != nil {
		t.Fatalf("OpenXisb: %v", err)
	}
	got, err := xr.ReadBlock(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}
