// SPDX-License-Identifier: MIT

package xisf

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// coreElementTagNames lists the XML local names recognized as core
// elements.
var coreElementTagNames = map[string]bool{
	"Reference":        true,
	"ColorFilterArray": true,
	"Resolution":       true,
	"FITSKeyword":      true,
	"ICCProfile":       true,
	"RGBWorkingSpace":  true,
	"DisplayFunction":  true,
	"Thumbnail":        true,
}

// parseCoreElement decodes one core element by its tag name.
func parseCoreElement(d *xml.Decoder, start xml.StartElement) (CoreElement, error) {
	var ce CoreElement
	if uid, ok := attrValue(start.Attr, "id"); ok {
		if !ValidUID(uid) {
			return ce, errorf(ErrMalformedXML, "%s id %q does not match UID grammar", start.Name.Local, uid)
		}
		ce.UID = uid
	}

	switch start.Name.Local {
	case "Reference":
		ce.Kind = ElementReference
		refID, ok := attrValue(start.Attr, "ref")
		if !ok {
			return ce, errorf(ErrMissingRequiredAttribute, "Reference: ref")
		}
		ce.RefID = refID
		return ce, skipElement(d, start)

	case "ColorFilterArray":
		ce.Kind = ElementColorFilterArray
		pattern, ok := attrValue(start.Attr, "pattern")
		if !ok {
			return ce, errorf(ErrMissingRequiredAttribute, "ColorFilterArray: pattern")
		}
		ce.CFAPattern = pattern
		w, err := requiredIntAttr(start.Attr, "width")
		if err != nil {
			return ce, err
		}
		h, err := requiredIntAttr(start.Attr, "height")
		if err != nil {
			return ce, err
		}
		ce.CFAWidth, ce.CFAHeight = w, h
		if name, ok := attrValue(start.Attr, "name"); ok {
			ce.CFAName = name
		}
		return ce, skipElement(d, start)

	case "Resolution":
		ce.Kind = ElementResolution
		h, err := requiredFloatAttr(start.Attr, "horizontal")
		if err != nil {
			return ce, err
		}
		v, err := requiredFloatAttr(start.Attr, "vertical")
		if err != nil {
			return ce, err
		}
		ce.ResolutionH, ce.ResolutionV = h, v
		if unit, ok := attrValue(start.Attr, "unit"); ok && unit == "cm" {
			ce.ResolutionUnit = ResolutionCM
		}
		return ce, skipElement(d, start)

	case "FITSKeyword":
		ce.Kind = ElementFITSKeyword
		name, ok := attrValue(start.Attr, "name")
		if !ok {
			return ce, errorf(ErrMissingRequiredAttribute, "FITSKeyword: name")
		}
		ce.FITSName = name
		ce.FITSValue, _ = attrValue(start.Attr, "value")
		ce.FITSComment, _ = attrValue(start.Attr, "comment")
		return ce, skipElement(d, start)

	case "ICCProfile":
		ce.Kind = ElementIccProfile
		block, err := parseDataBlockFromElement(d, start)
		if err != nil {
			return ce, err
		}
		ce.IccProfileBlock = block
		return ce, nil

	case "RGBWorkingSpace":
		ce.Kind = ElementRgbWorkingSpace
		gamma, err := requiredFloatAttr(start.Attr, "gamma")
		if err != nil {
			return ce, err
		}
		ce.RGBGamma = gamma
		x, err := requiredFloatListAttr(start.Attr, "x", 3)
		if err != nil {
			return ce, err
		}
		y, err := requiredFloatListAttr(start.Attr, "y", 3)
		if err != nil {
			return ce, err
		}
		for i := 0; i < 3; i++ {
			ce.RGBChromaticity[i] = [2]float64{x[i], y[i]}
		}
		lum, err := requiredFloatListAttr(start.Attr, "Y", 3)
		if err != nil {
			return ce, err
		}
		ce.RGBLuminance = [3]float64{lum[0], lum[1], lum[2]}
		if name, ok := attrValue(start.Attr, "name"); ok {
			ce.RGBName = name
		}
		return ce, skipElement(d, start)

	case "DisplayFunction":
		ce.Kind = ElementDisplayFunction
		params, err := requiredFloatListAttr(start.Attr, "parameters", 4)
		if err != nil {
			return ce, err
		}
		copy(ce.DisplayFunctionParams[:], params)
		if name, ok := attrValue(start.Attr, "name"); ok {
			ce.DisplayFunctionName = name
		}
		return ce, skipElement(d, start)

	case "Thumbnail":
		ce.Kind = ElementThumbnail
		geomStr, ok := attrValue(start.Attr, "geometry")
		if !ok {
			return ce, errorf(ErrMissingRequiredAttribute, "Thumbnail: geometry")
		}
		geom, err := parseGeometry(geomStr)
		if err != nil {
			return ce, err
		}
		ce.ThumbnailGeometry = geom

		sfStr, ok := attrValue(start.Attr, "sampleFormat")
		if !ok {
			return ce, errorf(ErrMissingRequiredAttribute, "Thumbnail: sampleFormat")
		}
		sf, err := ParseSampleFormat(sfStr)
		if err != nil {
			return ce, err
		}
		ce.ThumbnailSampleFormat = sf

		csStr, ok := attrValue(start.Attr, "colorSpace")
		if !ok {
			return ce, errorf(ErrMissingRequiredAttribute, "Thumbnail: colorSpace")
		}
		cs, err := ParseColorSpace(csStr)
		if err != nil {
			return ce, err
		}
		ce.ThumbnailColorSpace = cs

		if ps, ok := attrValue(start.Attr, "pixelStorage"); ok {
			parsed, err := ParsePixelStorage(ps)
			if err != nil {
				return ce, err
			}
			ce.ThumbnailPixelStorage = parsed
		}

		block, err := parseDataBlockFromElement(d, start)
		if err != nil {
			return ce, err
		}
		ce.ThumbnailPixelData = block
		return ce, nil

	default:
		return ce, errorf(ErrUnknownEnumValue, "core element %q", start.Name.Local)
	}
}

// skipElement drains to the element's matching end token. Used for leaf
// core elements that carry only attributes.
func skipElement(d *xml.Decoder, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return errorf(ErrMalformedXML, "skipping %s: %v", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == start.Name.Local {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				if depth == 0 {
					return nil
				}
				depth--
			}
		}
	}
}

// parseDataBlockFromElement parses a DataBlock from the "location" attribute
// or a <Data> child, for core elements that carry one (ICCProfile,
// Thumbnail), consuming through the matching EndElement.
func parseDataBlockFromElement(d *xml.Decoder, start xml.StartElement) (DataBlock, error) {
	locStr, hasLoc := attrValue(start.Attr, "location")

	block := DataBlock{}
	if bo, ok := attrValue(start.Attr, "byteOrder"); ok && bo == "big" {
		block.ByteOrder = BigEndian
	}
	if c, ok := attrValue(start.Attr, "compression"); ok {
		info, err := ParseCompressionAttr(c)
		if err != nil {
			return block, err
		}
		block.Compression = &info
	}
	if c, ok := attrValue(start.Attr, "checksum"); ok {
		info, err := ParseChecksumAttr(c)
		if err != nil {
			return block, err
		}
		block.Checksum = &info
	}

	var loc parsedLocation
	var err error
	if hasLoc {
		loc, err = parseLocation(locStr)
		if err != nil {
			return block, err
		}
	} else {
		loc = parsedLocation{kind: locEmbedded}
	}

	if err := applyParsedLocation(&block, loc); err != nil {
		return block, err
	}
	if err := applyExternalAttrs(&block, start.Attr); err != nil {
		return block, err
	}

	inlineText, embeddedText, err := readDataBlockText(d, start)
	if err != nil {
		return block, err
	}

	if block.Location == BlockInline {
		block.EncodedBytes = []byte(inlineText)
	} else if block.Location == BlockEmbedded {
		decoded, err := parseEmbeddedData(embeddedText)
		if err != nil {
			return block, err
		}
		block.EncodedBytes = decoded.bytes
		block.Encoding = decoded.encoding
	}

	return block, nil
}

// readDataBlockText drains a data-block-carrying element's children,
// consuming through the matching EndElement. inlineText is the element's
// own direct character data (the Inline wire form); embeddedText is
// the text of a nested <Data> child, if present (the Embedded wire form).
func readDataBlockText(d *xml.Decoder, start xml.StartElement) (inlineText, embeddedText string, err error) {
	var inline strings.Builder

	for {
		tok, tokErr := d.Token()
		if tokErr != nil {
			return "", "", errorf(ErrMalformedXML, "reading %s: %v", start.Name.Local, tokErr)
		}

		switch t := tok.(type) {
		case xml.CharData:
			inline.Write(t)

		case xml.StartElement:
			if t.Name.Local == "Data" {
				text, _, derr := readElementTextAndChildren(d, t)
				if derr != nil {
					return "", "", derr
				}
				embeddedText = text
				continue
			}
			if serr := d.Skip(); serr != nil {
				return "", "", errorf(ErrMalformedXML, "skipping %s: %v", t.Name.Local, serr)
			}

		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return strings.TrimSpace(inline.String()), embeddedText, nil
			}
		}
	}
}

// applyParsedLocation fills block's location-specific fields from loc.
func applyParsedLocation(block *DataBlock, loc parsedLocation) error {
	switch loc.kind {
	case locInline:
		block.Location = BlockInline
		block.Encoding = loc.encoding
	case locEmbedded:
		block.Location = BlockEmbedded
	case locAttachment:
		block.Location = BlockAttached
		block.Position = loc.position
		block.Size = loc.size
	case locURL:
		block.Location = BlockExternal
		block.URI = loc.uri
	case locPath:
		block.Location = BlockExternal
		block.URI = loc.path
		block.ExternalIsPath = true
	default:
		return errorf(ErrMalformedXML, "unknown parsed location kind %d", loc.kind)
	}
	return nil
}

// applyExternalAttrs reads the optional indexId/externalPosition/
// externalSize attributes of an External data-block element.
func applyExternalAttrs(block *DataBlock, attrs []xml.Attr) error {
	if block.Location != BlockExternal {
		return nil
	}
	if s, ok := attrValue(attrs, "indexId"); ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return errorf(ErrMalformedXML, "indexId=%q: %v", s, err)
		}
		block.IndexID = &v
	}
	if s, ok := attrValue(attrs, "externalPosition"); ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return errorf(ErrMalformedXML, "externalPosition=%q: %v", s, err)
		}
		block.ExternalPos = &v
	}
	if s, ok := attrValue(attrs, "externalSize"); ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return errorf(ErrMalformedXML, "externalSize=%q: %v", s, err)
		}
		block.ExternalSize = &v
	}
	return nil
}

type embeddedData struct {
	bytes    []byte
	encoding InlineEncoding
}

// parseEmbeddedData returns the trimmed text of a <Data> child element as
// the block's still-encoded bytes. The text is always taken as base64: no
// encoding attribute on <Data> is read, and the emitters write none.
func parseEmbeddedData(text string) (embeddedData, error) {
	trimmed := strings.TrimSpace(text)
	return embeddedData{bytes: []byte(trimmed), encoding: EncodingBase64}, nil
}

func requiredIntAttr(attrs []xml.Attr, name string) (int, error) {
	s, ok := attrValue(attrs, name)
	if !ok {
		return 0, errorf(ErrMissingRequiredAttribute, "%s", name)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errorf(ErrMalformedXML, "%s=%q: %v", name, s, err)
	}
	return v, nil
}

func requiredFloatAttr(attrs []xml.Attr, name string) (float64, error) {
	s, ok := attrValue(attrs, name)
	if !ok {
		return 0, errorf(ErrMissingRequiredAttribute, "%s", name)
	}
	return parseFloat(s)
}

func requiredFloatListAttr(attrs []xml.Attr, name string, n int) ([]float64, error) {
	s, ok := attrValue(attrs, name)
	if !ok {
		return nil, errorf(ErrMissingRequiredAttribute, "%s", name)
	}
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, errorf(ErrMalformedXML, "%s=%q: expected %d comma-separated values", name, s, n)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := parseFloat(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// emitCoreElement writes one core element.
func emitCoreElement(e *xml.Encoder, ce CoreElement) error {
	tag := coreElementTagFor(ce.Kind)
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if ce.UID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: ce.UID})
	}

	switch ce.Kind {
	case ElementReference:
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "ref"}, Value: ce.RefID})
		return emitEmpty(e, start)

	case ElementColorFilterArray:
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "pattern"}, Value: ce.CFAPattern},
			xml.Attr{Name: xml.Name{Local: "width"}, Value: strconv.Itoa(ce.CFAWidth)},
			xml.Attr{Name: xml.Name{Local: "height"}, Value: strconv.Itoa(ce.CFAHeight)},
		)
		if ce.CFAName != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: ce.CFAName})
		}
		return emitEmpty(e, start)

	case ElementResolution:
		unit := "inch"
		if ce.ResolutionUnit == ResolutionCM {
			unit = "cm"
		}
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "horizontal"}, Value: formatFloat64(ce.ResolutionH)},
			xml.Attr{Name: xml.Name{Local: "vertical"}, Value: formatFloat64(ce.ResolutionV)},
			xml.Attr{Name: xml.Name{Local: "unit"}, Value: unit},
		)
		return emitEmpty(e, start)

	case ElementFITSKeyword:
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: ce.FITSName})
		if ce.FITSValue != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "value"}, Value: ce.FITSValue})
		}
		if ce.FITSComment != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "comment"}, Value: ce.FITSComment})
		}
		return emitEmpty(e, start)

	case ElementIccProfile:
		return emitDataBlockElement(e, start, ce.IccProfileBlock)

	case ElementRgbWorkingSpace:
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "gamma"}, Value: formatFloat64(ce.RGBGamma)},
			xml.Attr{Name: xml.Name{Local: "x"}, Value: join3(ce.RGBChromaticity[0][0], ce.RGBChromaticity[1][0], ce.RGBChromaticity[2][0])},
			xml.Attr{Name: xml.Name{Local: "y"}, Value: join3(ce.RGBChromaticity[0][1], ce.RGBChromaticity[1][1], ce.RGBChromaticity[2][1])},
			xml.Attr{Name: xml.Name{Local: "Y"}, Value: join3(ce.RGBLuminance[0], ce.RGBLuminance[1], ce.RGBLuminance[2])},
		)
		if ce.RGBName != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: ce.RGBName})
		}
		return emitEmpty(e, start)

	case ElementDisplayFunction:
		p := ce.DisplayFunctionParams
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "parameters"}, Value: join4(p[0], p[1], p[2], p[3])})
		if ce.DisplayFunctionName != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: ce.DisplayFunctionName})
		}
		return emitEmpty(e, start)

	case ElementThumbnail:
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "geometry"}, Value: formatGeometry(ce.ThumbnailGeometry)},
			xml.Attr{Name: xml.Name{Local: "sampleFormat"}, Value: ce.ThumbnailSampleFormat.String()},
			xml.Attr{Name: xml.Name{Local: "colorSpace"}, Value: ce.ThumbnailColorSpace.String()},
		)
		if ce.ThumbnailPixelStorage == Normal {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "pixelStorage"}, Value: "Normal"})
		}
		return emitDataBlockElement(e, start, ce.ThumbnailPixelData)

	default:
		return errorf(ErrUnknownEnumValue, "core element kind %d", ce.Kind)
	}
}

func coreElementTagFor(k CoreElementKind) string {
	switch k {
	case ElementReference:
		return "Reference"
	case ElementColorFilterArray:
		return "ColorFilterArray"
	case ElementResolution:
		return "Resolution"
	case ElementFITSKeyword:
		return "FITSKeyword"
	case ElementIccProfile:
		return "ICCProfile"
	case ElementRgbWorkingSpace:
		return "RGBWorkingSpace"
	case ElementDisplayFunction:
		return "DisplayFunction"
	case ElementThumbnail:
		return "Thumbnail"
	default:
		return "Unknown"
	}
}

func emitEmpty(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// emitDataBlockElement writes start with location/byteOrder/compression/
// checksum attributes and, for inline/embedded blocks, the payload text,
// then closes the element.
func emitDataBlockElement(e *xml.Encoder, start xml.StartElement, block DataBlock) error {
	loc := locationFor(block)
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "location"}, Value: formatLocation(loc)})
	if block.ByteOrder == BigEndian {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "byteOrder"}, Value: "big"})
	}
	if block.Compression != nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "compression"}, Value: FormatCompressionAttr(*block.Compression)})
	}
	if block.Checksum != nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "checksum"}, Value: FormatChecksumAttr(*block.Checksum)})
	}
	if block.Location == BlockExternal {
		if block.IndexID != nil {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "indexId"}, Value: strconv.FormatUint(*block.IndexID, 10)})
		}
		if block.ExternalPos != nil {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "externalPosition"}, Value: strconv.FormatUint(*block.ExternalPos, 10)})
		}
		if block.ExternalSize != nil {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "externalSize"}, Value: strconv.FormatUint(*block.ExternalSize, 10)})
		}
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}

	switch block.Location {
	case BlockInline:
		if err := e.EncodeToken(xml.CharData(block.EncodedBytes)); err != nil {
			return err
		}

	case BlockEmbedded:
		dataStart := xml.StartElement{Name: xml.Name{Local: "Data"}}
		if err := e.EncodeToken(dataStart); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.CharData(block.EncodedBytes)); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.EndElement{Name: dataStart.Name}); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// locationFor computes the parsedLocation for a DataBlock's current state.
func locationFor(block DataBlock) parsedLocation {
	switch block.Location {
	case BlockInline:
		return parsedLocation{kind: locInline, encoding: block.Encoding}
	case BlockEmbedded:
		return parsedLocation{kind: locEmbedded}
	case BlockAttached:
		return parsedLocation{kind: locAttachment, position: block.Position, size: block.Size}
	case BlockExternal:
		if block.ExternalIsPath {
			return parsedLocation{kind: locPath, path: block.URI}
		}
		return parsedLocation{kind: locURL, uri: block.URI}
	default:
		return parsedLocation{kind: locEmbedded}
	}
}

func join3(a, b, c float64) string {
	return formatFloat64(a) + "," + formatFloat64(b) + "," + formatFloat64(c)
}

func join4(a, b, c, d float64) string {
	return formatFloat64(a) + "," + formatFloat64(b) + "," + formatFloat64(c) + "," + formatFloat64(d)
}
