package xisf

import (
	"errors"
	"testing"
	"time"
)

func baseUnit() *Unit {
	return &Unit{
		Header: Header{
			Metadata: Metadata{
				CreationTime:       time.Now(),
				CreatorApplication: "test",
			},
			CoreElements: map[string]CoreElement{},
		},
	}
}

func TestValidateScenarioS6FloatImageMissingBounds(t *testing.T) {
	t.Parallel()

	u := baseUnit()
	u.Images = []Image{
		{
			Geometry:     Geometry{Dims: []uint64{8, 8}, Channels: 1},
			SampleFormat: Float32,
			ColorSpace:   Gray,
			PixelData:    DataBlock{Location: BlockEmbedded},
		},
	}

	res := Validate(u)
	if res.OK {
		t.Fatal("expected validation failure for float image without bounds")
	}

	found := false
	for _, e := range res.Errors {
		if e.Path == "Images[0].Bounds" {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %+v, want an Images[0].Bounds entry", res.Errors)
	}
}

func TestValidateRequiresMetadata(t *testing.T) {
	t.Parallel()

	u := &Unit{Header: Header{CoreElements: map[string]CoreElement{}}}
	res := Validate(u)
	if res.OK {
		t.Fatal("expected failure for missing metadata")
	}
}

func TestValidateUIDUniqueness(t *testing.T) {
	t.Parallel()

	u := baseUnit()
	u.Header.CoreElements["dup"] = CoreElement{Kind: ElementFITSKeyword, UID: "dup", FITSName: "A"}
	u.Images = []Image{
		{
			Geometry:     Geometry{Dims: []uint64{4}, Channels: 1},
			SampleFormat: UInt8,
			AssociatedElements: []CoreElement{
				{Kind: ElementFITSKeyword, UID: "dup", FITSName: "B"},
			},
		},
	}

	res := Validate(u)
	if res.OK {
		t.Fatal("expected failure for duplicate UID across scopes")
	}
}

func TestValidateReferenceTargetMustExist(t *testing.T) {
	t.Parallel()

	u := baseUnit()
	u.Header.CoreElements["ref1"] = CoreElement{Kind: ElementReference, UID: "ref1", RefID: "does-not-exist"}

	res := Validate(u)
	if res.OK {
		t.Fatal("expected failure for dangling Reference")
	}
}

func TestValidateShuffleCodecRequiresItemSize(t *testing.T) {
	t.Parallel()

	u := baseUnit()
	u.Images = []Image{
		{
			Geometry:     Geometry{Dims: []uint64{4}, Channels: 1},
			SampleFormat: UInt8,
			PixelData: DataBlock{
				Location:    BlockEmbedded,
				Compression: &CompressionInfo{Codec: CodecZlibSh},
			},
		},
	}

	res := Validate(u)
	if res.OK {
		t.Fatal("expected failure for shuffle codec without item_size")
	}
}

func TestValidateForWriteWrapsErrValidationFailed(t *testing.T) {
	t.Parallel()

	u := &Unit{Header: Header{CoreElements: map[string]CoreElement{}}}
	err := ValidateForWrite(u)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("got %v, want ErrValidationFailed", err)
	}
}

func TestValidateAcceptsWellFormedUnit(t *testing.T) {
	t.Parallel()

	u := baseUnit()
	u.Images = []Image{
		{
			Geometry:     Geometry{Dims: []uint64{8, 8}, Channels: 1},
			SampleFormat: UInt8,
			ColorSpace:   Gray,
			PixelData:    DataBlock{Location: BlockEmbedded},
		},
	}

	res := Validate(u)
	if !res.OK {
		t.Fatalf("unexpected validation errors: %+v", res.Errors)
	}
}
