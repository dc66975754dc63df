// SPDX-License-Identifier: MIT

package xisf

import (
	"encoding/xml"
	"strings"
)

// parseImageElement decodes one <Image> element.
func parseImageElement(d *xml.Decoder, start xml.StartElement) (Image, error) {
	var img Image

	geomStr, ok := attrValue(start.Attr, "geometry")
	if !ok {
		return img, errorf(ErrMissingRequiredAttribute, "Image: geometry")
	}
	geom, err := parseGeometry(geomStr)
	if err != nil {
		return img, err
	}
	img.Geometry = geom

	sfStr, ok := attrValue(start.Attr, "sampleFormat")
	if !ok {
		return img, errorf(ErrMissingRequiredAttribute, "Image: sampleFormat")
	}
	sf, err := ParseSampleFormat(sfStr)
	if err != nil {
		return img, err
	}
	img.SampleFormat = sf

	csStr, ok := attrValue(start.Attr, "colorSpace")
	if !ok {
		return img, errorf(ErrMissingRequiredAttribute, "Image: colorSpace")
	}
	cs, err := ParseColorSpace(csStr)
	if err != nil {
		return img, err
	}
	img.ColorSpace = cs

	if boundsStr, ok := attrValue(start.Attr, "bounds"); ok {
		b, err := parseBounds(boundsStr)
		if err != nil {
			return img, err
		}
		img.Bounds = &b
	}
	if sf.IsFloatOrComplex() && img.Bounds == nil {
		return img, errorf(ErrMissingRequiredAttribute, "Image: bounds (required for floating/complex sampleFormat)")
	}

	if psStr, ok := attrValue(start.Attr, "pixelStorage"); ok {
		ps, err := ParsePixelStorage(psStr)
		if err != nil {
			return img, err
		}
		img.PixelStorage = ps
	}

	img.ImageType, _ = attrValue(start.Attr, "imageType")
	if offStr, ok := attrValue(start.Attr, "offset"); ok {
		off, err := parseFloat(offStr)
		if err != nil {
			return img, err
		}
		if off < 0 {
			return img, errorf(ErrInvalidRange, "Image offset must be non-negative, got %v", off)
		}
		img.Offset = &off
	}
	img.ImageID, _ = attrValue(start.Attr, "id")
	img.UUID, _ = attrValue(start.Attr, "uuid")
	img.Orientation, _ = attrValue(start.Attr, "orientation")

	block := DataBlock{}
	locStr, hasLoc := attrValue(start.Attr, "location")
	if bo, ok := attrValue(start.Attr, "byteOrder"); ok && bo == "big" {
		block.ByteOrder = BigEndian
	}
	if c, ok := attrValue(start.Attr, "compression"); ok {
		info, err := ParseCompressionAttr(c)
		if err != nil {
			return img, err
		}
		block.Compression = &info
	}
	if c, ok := attrValue(start.Attr, "checksum"); ok {
		info, err := ParseChecksumAttr(c)
		if err != nil {
			return img, err
		}
		block.Checksum = &info
	}

	var loc parsedLocation
	if hasLoc {
		loc, err = parseLocation(locStr)
		if err != nil {
			return img, err
		}
	} else {
		loc = parsedLocation{kind: locEmbedded}
	}
	if err := applyParsedLocation(&block, loc); err != nil {
		return img, err
	}

	properties, associated, dataText, err := parseImageChildren(d, start)
	if err != nil {
		return img, err
	}
	img.Properties = properties
	img.AssociatedElements = associated

	if block.Location == BlockInline {
		block.EncodedBytes = []byte(dataText)
	} else if block.Location == BlockEmbedded {
		decoded, err := parseEmbeddedData(dataText)
		if err != nil {
			return img, err
		}
		block.EncodedBytes = decoded.bytes
		block.Encoding = decoded.encoding
	}
	img.PixelData = block

	return img, nil
}

// parseImageChildren walks an <Image>'s children: <Property>, core
// elements, and an optional <Data> payload element, consuming through the
// matching EndElement.
func parseImageChildren(d *xml.Decoder, start xml.StartElement) (props []Property, associated []CoreElement, dataText string, err error) {
	var inline strings.Builder

	for {
		tok, tokErr := d.Token()
		if tokErr != nil {
			return nil, nil, "", errorf(ErrMalformedXML, "reading Image children: %v", tokErr)
		}

		switch t := tok.(type) {
		case xml.CharData:
			inline.Write(t)

		case xml.StartElement:
			switch {
			case t.Name.Local == "Property":
				p, perr := parsePropertyElement(d, t)
				if perr != nil {
					return nil, nil, "", perr
				}
				props = append(props, p)

			case t.Name.Local == "Data":
				text, _, derr := readElementTextAndChildren(d, t)
				if derr != nil {
					return nil, nil, "", derr
				}
				dataText = text

			case coreElementTagNames[t.Name.Local]:
				ce, cerr := parseCoreElement(d, t)
				if cerr != nil {
					return nil, nil, "", cerr
				}
				associated = append(associated, ce)

			default:
				if serr := d.Skip(); serr != nil {
					return nil, nil, "", errorf(ErrMalformedXML, "skipping %s: %v", t.Name.Local, serr)
				}
			}

		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				if dataText == "" {
					dataText = strings.TrimSpace(inline.String())
				}
				return props, associated, dataText, nil
			}
		}
	}
}

// emitImage writes one <Image> element.
func emitImage(e *xml.Encoder, img Image) error {
	start := xml.StartElement{Name: xml.Name{Local: "Image"}}
	start.Attr = append(start.Attr,
		xml.Attr{Name: xml.Name{Local: "geometry"}, Value: formatGeometry(img.Geometry)},
		xml.Attr{Name: xml.Name{Local: "sampleFormat"}, Value: img.SampleFormat.String()},
		xml.Attr{Name: xml.Name{Local: "colorSpace"}, Value: img.ColorSpace.String()},
	)
	if img.Bounds != nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "bounds"}, Value: formatBounds(*img.Bounds)})
	}
	if img.PixelStorage == Normal {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "pixelStorage"}, Value: "Normal"})
	}
	if img.ImageType != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "imageType"}, Value: img.ImageType})
	}
	if img.Offset != nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "offset"}, Value: formatFloat64(*img.Offset)})
	}
	if img.Orientation != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "orientation"}, Value: img.Orientation})
	}
	if img.ImageID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: img.ImageID})
	}
	if img.UUID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "uuid"}, Value: img.UUID})
	}

	loc := locationFor(img.PixelData)
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "location"}, Value: formatLocation(loc)})
	if img.PixelData.ByteOrder == BigEndian {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "byteOrder"}, Value: "big"})
	}
	if img.PixelData.Compression != nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "compression"}, Value: FormatCompressionAttr(*img.PixelData.Compression)})
	}
	if img.PixelData.Checksum != nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "checksum"}, Value: FormatChecksumAttr(*img.PixelData.Checksum)})
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}

	for _, p := range img.Properties {
		if err := emitProperty(e, p); err != nil {
			return err
		}
	}
	for _, ce := range img.AssociatedElements {
		if err := emitCoreElement(e, ce); err != nil {
			return err
		}
	}

	switch img.PixelData.Location {
	case BlockInline:
		if err := e.EncodeToken(xml.CharData(img.PixelData.EncodedBytes)); err != nil {
			return err
		}

	case BlockEmbedded:
		dataStart := xml.StartElement{Name: xml.Name{Local: "Data"}}
		if err := e.EncodeToken(dataStart); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.CharData(img.PixelData.EncodedBytes)); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.EndElement{Name: dataStart.Name}); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
