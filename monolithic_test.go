package xisf

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"
)

func minimalUnitWithPayload(payload []byte) *Unit {
	return &Unit{
		StorageModel: StorageModel{Kind: Monolithic},
		Header: Header{
			Metadata: Metadata{
				CreationTime:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				CreatorApplication: "xisf test suite",
			},
			CoreElements: map[string]CoreElement{},
		},
		Images: []Image{
			{
				Geometry:     Geometry{Dims: []uint64{4, 4}, Channels: 1},
				SampleFormat: UInt16,
				ColorSpace:   Gray,
				PixelData: DataBlock{
					Location: BlockAttached,
					RawBytes: payload,
				},
			},
		},
	}
}

// TestWriteMonolithicScenarioS1 matches the uncompressed 4x4 UInt16 minimal
// unit scenario: the attached block's position equals 16 + xml_length and
// the bytes at that position equal the payload verbatim.
func TestWriteMonolithicScenarioS1(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}
	u := minimalUnitWithPayload(payload)

	var buf bytes.Buffer
	result, err := WriteMonolithic(context.Background(), &buf, u, WriterOptions{})
	if err != nil {
		t.Fatalf("WriteMonolithic: %v", err)
	}

	wantPos := fileHeaderSize + int(result.XMLHeaderLength)
	data := buf.Bytes()
	if len(data) < wantPos+len(payload) {
		t.Fatalf("written file too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[wantPos:wantPos+len(payload)], payload) {
		t.Fatalf("payload at position %d does not match", wantPos)
	}

	wantAttr := fmt.Sprintf("attachment:%d:%d", wantPos, len(payload))
	if !bytes.Contains(data, []byte(wantAttr)) {
		t.Fatalf("xml header does not contain expected location %q", wantAttr)
	}
}

// TestWriteReadMonolithicScenarioS2 round-trips a compressed payload and
// checks the compression attribute records the original uncompressed size.
func TestWriteReadMonolithicScenarioS2(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}
	u := minimalUnitWithPayload(payload)

	codec := CodecZlib
	var buf bytes.Buffer
	_, err := WriteMonolithic(context.Background(), &buf, u, WriterOptions{DefaultCompression: &codec})
	if err != nil {
		t.Fatalf("WriteMonolithic: %v", err)
	}

	data := buf.Bytes()
	if !bytes.Contains(data, []byte("zlib:32")) {
		t.Fatalf("expected compression attribute %q in header:\n%s", "zlib:32", data)
	}

	readBack, err := ReadMonolithic(context.Background(), bytes.NewReader(data), ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadMonolithic: %v", err)
	}
	if len(readBack.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(readBack.Images))
	}

	got, err := ReadBlock(context.Background(), bytes.NewReader(data), readBack.Images[0].PixelData, ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-tripped payload mismatch")
	}
}

// TestWriteMonolithicDefaultCompressionShuffleUsesImageItemSize exercises
// DefaultCompression set to a shuffle codec against a fresh image with no
// per-block Compression: the shuffle item size must come from the image's
// own SampleFormat rather than failing with ErrInvalidItemSize.
func TestWriteMonolithicDefaultCompressionShuffleUsesImageItemSize(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}
	u := minimalUnitWithPayload(payload)

	codec := CodecZlibSh
	var buf bytes.Buffer
	if _, err := WriteMonolithic(context.Background(), &buf, u, WriterOptions{DefaultCompression: &codec}); err != nil {
		t.Fatalf("WriteMonolithic: %v", err)
	}

	data := buf.Bytes()
	wantAttr := fmt.Sprintf("zlib+sh:%d:%d", len(payload), UInt16.ItemSize())
	if !bytes.Contains(data, []byte(wantAttr)) {
		t.Fatalf("expected compression attribute %q in header:\n%s", wantAttr, data)
	}

	readBack, err := ReadMonolithic(context.Background(), bytes.NewReader(data), ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadMonolithic: %v", err)
	}

	got, err := ReadBlock(context.Background(), bytes.NewReader(data), readBack.Images[0].PixelData, ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-tripped payload mismatch")
	}
}

func TestWriteMonolithicRejectsInvalidUnit(t *testing.T) {
	t.Parallel()

	u := &Unit{Header: Header{CoreElements: map[string]CoreElement{}}}
	var buf bytes.Buffer
	if _, err := WriteMonolithic(context.Background(), &buf, u, WriterOptions{}); err == nil {
		t.Fatal("expected validation failure for missing metadata")
	}
}

func TestReadMonolithicRejectsBadSignature(t *testing.T) {
	t.Parallel()

	data := make([]byte, 16)
	copy(data, "NOTXISF0")
	if _, err := ReadMonolithic(context.Background(), bytes.NewReader(data), ReaderOptions{}); err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestComputeLayoutConverges(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 32)
	u := minimalUnitWithPayload(payload)
	ph := &parsedHeader{Header: u.Header, Images: u.Images, GlobalProperties: u.GlobalProperties}

	prepare := func(b *DataBlock, itemSizeHint int) ([]byte, error) {
		return b.RawBytes, nil
	}
	attachments, err := collectAttachments(ph, prepare)
	if err != nil {
		t.Fatalf("collectAttachments: %v", err)
	}
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}

	xmlBytes, err := computeLayout(ph, attachments, EncodeOptions{})
	if err != nil {
		t.Fatalf("computeLayout: %v", err)
	}

	wantPos := fmt.Sprintf("attachment:%d:%d", fileHeaderSize+len(xmlBytes), len(payload))
	if !bytes.Contains(xmlBytes, []byte(wantPos)) {
		t.Fatalf("xml does not contain %q:\n%s", wantPos, xmlBytes)
	}
}
