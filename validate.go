// SPDX-License-Identifier: MIT

package xisf

import "fmt"

// ValidationResult is the outcome of structural validation.
type ValidationResult struct {
	OK       bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// Validate runs the structural checks over unit: required metadata
// fields, property/UID identifier grammar, UID uniqueness, image dimension
// and bounds invariants, and offset non-negativity. It performs no I/O.
func Validate(u *Unit) ValidationResult {
	var res ValidationResult

	addErr := func(path, msg string) {
		res.Errors = append(res.Errors, ValidationError{Path: path, Message: msg})
	}
	addWarn := func(path, msg string) {
		res.Warnings = append(res.Warnings, ValidationError{Path: path, Message: msg})
	}

	if u.Header.Metadata.CreatorApplication == "" {
		addErr("Metadata.CreatorApplication", "required field is empty")
	}
	if u.Header.Metadata.CreationTime.IsZero() {
		addErr("Metadata.CreationTime", "required field is unset")
	}

	seenUIDs := make(map[string]bool)
	checkUID := func(path, uid string) {
		if uid == "" {
			return
		}
		if !ValidUID(uid) {
			addErr(path, fmt.Sprintf("uid %q does not match the UID grammar", uid))
			return
		}
		if seenUIDs[uid] {
			addErr(path, fmt.Sprintf("duplicate uid %q", uid))
			return
		}
		seenUIDs[uid] = true
	}

	for uid, ce := range u.Header.CoreElements {
		checkUID(fmt.Sprintf("CoreElements[%s]", uid), ce.UID)
		if ce.UID != uid {
			addErr(fmt.Sprintf("CoreElements[%s]", uid), "map key does not match element UID")
		}
		if ce.Kind == ElementReference {
			if _, ok := u.Header.CoreElements[ce.RefID]; !ok {
				addErr(fmt.Sprintf("CoreElements[%s]", uid), fmt.Sprintf("Reference target %q does not exist", ce.RefID))
			}
		}
	}
	for i, ce := range u.Header.Anonymous {
		if ce.Kind == ElementReference {
			if _, ok := u.Header.CoreElements[ce.RefID]; !ok {
				addErr(fmt.Sprintf("Anonymous[%d]", i), fmt.Sprintf("Reference target %q does not exist", ce.RefID))
			}
		}
	}

	checkProperty := func(path string, p Property) {
		if !ValidPropertyID(p.ID) {
			addErr(path, fmt.Sprintf("property id %q does not match the identifier grammar", p.ID))
		}
	}
	for i, p := range u.Header.Metadata.Properties {
		checkProperty(fmt.Sprintf("Metadata.Properties[%d]", i), p)
	}
	for i, p := range u.GlobalProperties {
		checkProperty(fmt.Sprintf("GlobalProperties[%d]", i), p)
	}

	for i, img := range u.Images {
		path := fmt.Sprintf("Images[%d]", i)

		if len(img.Geometry.Dims) < 1 {
			addErr(path+".Geometry", "image must have at least one dimension")
		}
		for _, d := range img.Geometry.Dims {
			if d == 0 {
				addErr(path+".Geometry", "dimensions must be positive")
			}
		}
		if img.Geometry.Channels < 1 {
			addErr(path+".Geometry", "image must have at least one channel")
		}

		if img.SampleFormat.IsFloatOrComplex() {
			if img.Bounds == nil {
				addErr(path+".Bounds", "bounds is required for floating-point/complex sample formats")
			} else if !(img.Bounds.Lower < img.Bounds.Upper) {
				addErr(path+".Bounds", "lower bound must be less than upper bound")
			}
		}

		if img.Offset != nil && *img.Offset < 0 {
			addErr(path+".Offset", "offset must be non-negative")
		}

		if img.PixelData.Compression != nil {
			c := img.PixelData.Compression
			if c.Codec.HasShuffle() && (c.ItemSize == nil || *c.ItemSize < 2) {
				addErr(path+".PixelData.Compression", "shuffle codecs require item_size >= 2")
			}
		}

		for j, p := range img.Properties {
			checkProperty(fmt.Sprintf("%s.Properties[%d]", path, j), p)
		}
		for j, ce := range img.AssociatedElements {
			checkUID(fmt.Sprintf("%s.AssociatedElements[%d]", path, j), ce.UID)
		}

		if img.ImageID != "" {
			checkUID(path+".ImageID", img.ImageID)
		}
	}

	if u.StorageModel.Kind == Distributed && u.StorageModel.HeaderFilename == "" {
		addWarn("StorageModel.HeaderFilename", "distributed storage model has no header filename set")
	}

	res.OK = len(res.Errors) == 0
	return res
}

// ValidateForWrite is a convenience wrapper used by the write path: it
// returns ErrValidationFailed (wrapped with the concrete errors) when the
// unit is invalid, matching the fail-fast write policy.
func ValidateForWrite(u *Unit) error {
	res := Validate(u)
	if !res.OK {
		return &ValidationFailedError{Errors: res.Errors}
	}
	return nil
}
