package xisf

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"
)

type fakeProvider struct {
	data map[string][]byte
}

func (p fakeProvider) Open(ctx context.Context, location string) (ReadAtCloser, error) {
	data, ok := p.data[location]
	if !ok {
		return nil, errorf(ErrStreamIO, "no such resource %q", location)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestReadBlockInline(t *testing.T) {
	t.Parallel()

	payload := []byte("pixel bytes")
	block := DataBlock{
		Location:     BlockInline,
		Encoding:     EncodingBase64,
		EncodedBytes: []byte(base64.StdEncoding.EncodeToString(payload)),
	}

	got, err := readBlock(context.Background(), block, nil, nil, readOptionsBlock{})
	if err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReadBlockAttached(t *testing.T) {
	t.Parallel()

	carrier := bytes.NewReader([]byte("XXXXpixel-bytes-hereYYYY"))
	block := DataBlock{Location: BlockAttached, Position: 4, Size: 16}

	got, err := readBlock(context.Background(), block, carrier, nil, readOptionsBlock{})
	if err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	if string(got) != "pixel-bytes-here" {
		t.Fatalf("got %q, want %q", got, "pixel-bytes-here")
	}
}

func TestReadBlockAttachedNilCarrier(t *testing.T) {
	t.Parallel()

	block := DataBlock{Location: BlockAttached, Position: 0, Size: 4}
	if _, err := readBlock(context.Background(), block, nil, nil, readOptionsBlock{}); !errors.Is(err, ErrNilReader) {
		t.Fatalf("got %v, want ErrNilReader", err)
	}
}

func TestReadBlockExternal(t *testing.T) {
	t.Parallel()

	provider := fakeProvider{data: map[string][]byte{"blob.dat": []byte("external bytes")}}
	block := DataBlock{Location: BlockExternal, URI: "blob.dat"}

	got, err := readBlock(context.Background(), block, nil, provider, readOptionsBlock{})
	if err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	if string(got) != "external bytes" {
		t.Fatalf("got %q, want %q", got, "external bytes")
	}
}

func TestReadBlockChecksumMismatch(t *testing.T) {
	t.Parallel()

	badDigest, err := Digest([]byte("not the payload"), AlgorithmSHA256)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	block := DataBlock{
		Location:     BlockInline,
		Encoding:     EncodingHex,
		EncodedBytes: []byte("64617461"),
		Checksum:     &ChecksumInfo{Algorithm: AlgorithmSHA256, Digest: badDigest},
	}

	_, err = readBlock(context.Background(), block, nil, nil, readOptionsBlock{ValidateChecksums: true})
	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want *ChecksumMismatchError", err)
	}
}

func TestPrepareBlockPayloadCompressAndChecksum(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("sample"), 100)
	codec := CodecZlib

	out, ci, checksum, err := prepareBlockPayload(payload, writeOptionsBlock{
		Compress:           &codec,
		CalculateChecksums: true,
		ChecksumAlgorithm:  AlgorithmSHA256,
	})
	if err != nil {
		t.Fatalf("prepareBlockPayload: %v", err)
	}
	if ci == nil || ci.UncompressedSize != uint64(len(payload)) {
		t.Fatalf("compression info = %+v", ci)
	}
	if checksum == nil {
		t.Fatal("expected checksum to be populated")
	}

	back, err := decompress(out, *ci)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(back, payload) {
		t.Fatal("round trip mismatch")
	}

	ok, err := Verify(out, checksum.Algorithm, checksum.Digest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("checksum does not verify over the compressed payload")
	}
}
