// SPDX-License-Identifier: MIT

package xisf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
)

// parsedHeader is the raw decode result of an XML header, before the
// storage engines attach the Unit's StorageModel.
type parsedHeader struct {
	Header           Header
	Images           []Image
	GlobalProperties []Property
}

// DecodeXMLHeader parses an XISF XML header. It validates the
// root namespace and version but does not perform the structural checks
// of the validator; those run separately, on demand.
func DecodeXMLHeader(xmlBytes []byte) (*parsedHeader, error) {
	d := xml.NewDecoder(bytes.NewReader(xmlBytes))

	var ph parsedHeader
	ph.Header.CoreElements = make(map[string]CoreElement)

	sawMetadata := false

	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errorf(ErrMalformedXML, "%v", err)
		}

		switch t := tok.(type) {
		case xml.Comment:
			if !sawMetadata && ph.Header.InitialComment == "" {
				ph.Header.InitialComment = string(t)
			}

		case xml.StartElement:
			if t.Name.Local != "xisf" {
				// Skip any stray top-level element until the root is found.
				continue
			}

			if ns, ok := attrValue(t.Attr, "xmlns"); ok && ns != xisfNamespace {
				return nil, errorf(ErrMalformedXML, "unexpected xmlns %q", ns)
			}
			version, ok := attrValue(t.Attr, "version")
			if !ok {
				return nil, errorf(ErrMissingRequiredAttribute, "xisf: version")
			}
			if version != xisfVersion {
				return nil, errorf(ErrUnsupportedVersion, "%q", version)
			}

			if err := parseRootChildren(d, t, &ph, &sawMetadata); err != nil {
				return nil, err
			}

			return &ph, nil
		}
	}

	return nil, errorf(ErrMalformedXML, "no <xisf> root element found")
}

// parseRootChildren walks the children of the <xisf> root: exactly one
// <Metadata>, zero or more <Image>, zero or more global <Property>, and any
// number of core elements.
func parseRootChildren(d *xml.Decoder, root xml.StartElement, ph *parsedHeader, sawMetadata *bool) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return errorf(ErrMalformedXML, "%v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "Metadata":
				if *sawMetadata {
					return errorf(ErrMalformedXML, "duplicate <Metadata> element")
				}
				*sawMetadata = true
				md, err := parseMetadataElement(d, t)
				if err != nil {
					return err
				}
				ph.Header.Metadata = md

			case t.Name.Local == "Image":
				img, err := parseImageElement(d, t)
				if err != nil {
					return err
				}
				ph.Images = append(ph.Images, img)

			case t.Name.Local == "Property":
				p, err := parsePropertyElement(d, t)
				if err != nil {
					return err
				}
				ph.GlobalProperties = append(ph.GlobalProperties, p)

			case coreElementTagNames[t.Name.Local]:
				ce, err := parseCoreElement(d, t)
				if err != nil {
					return err
				}
				if ce.UID != "" {
					ph.Header.CoreElements[ce.UID] = ce
				} else {
					ph.Header.Anonymous = append(ph.Header.Anonymous, ce)
				}

			default:
				if err := d.Skip(); err != nil {
					return errorf(ErrMalformedXML, "skipping %s: %v", t.Name.Local, err)
				}
			}

		case xml.EndElement:
			if t.Name.Local == root.Name.Local {
				if !*sawMetadata {
					return errorf(ErrMissingRequiredAttribute, "<Metadata>")
				}
				return nil
			}
		}
	}
}

// parseMetadataElement decodes <Metadata>'s required fields plus any
// free-text <Property> children.
func parseMetadataElement(d *xml.Decoder, start xml.StartElement) (Metadata, error) {
	var md Metadata
	sawCreationTime := false
	sawCreatorApp := false

	for {
		tok, err := d.Token()
		if err != nil {
			return md, errorf(ErrMalformedXML, "reading Metadata: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Property" {
				if err := d.Skip(); err != nil {
					return md, errorf(ErrMalformedXML, "skipping %s: %v", t.Name.Local, err)
				}
				continue
			}

			p, err := parsePropertyElement(d, t)
			if err != nil {
				return md, err
			}

			switch p.ID {
			case "XISF:CreationTime":
				md.CreationTime = p.TimeValue
				sawCreationTime = true
			case "XISF:CreatorApplication":
				md.CreatorApplication = p.StringValue
				sawCreatorApp = true
			default:
				md.Properties = append(md.Properties, p)
			}

		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				if !sawCreationTime {
					return md, errorf(ErrMissingRequiredAttribute, "Metadata: XISF:CreationTime")
				}
				if !sawCreatorApp || md.CreatorApplication == "" {
					return md, errorf(ErrMissingRequiredAttribute, "Metadata: XISF:CreatorApplication")
				}
				return md, nil
			}
		}
	}
}

// EncodeOptions controls XML emission.
type EncodeOptions struct {
	PrettyPrint bool
}

// EncodeXMLHeader emits an XISF XML header for the given header, images,
// and global properties. The caller is responsible for
// resolving any attached-block positions before calling this (see
// layout.go); this function emits whatever DataBlock state it is given.
func EncodeXMLHeader(ph *parsedHeader, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	if ph.Header.InitialComment != "" {
		buf.WriteString("<!--" + ph.Header.InitialComment + "-->\n")
	}

	e := xml.NewEncoder(&buf)
	if opts.PrettyPrint {
		e.Indent("", "  ")
	}

	root := xml.StartElement{Name: xml.Name{Local: "xisf"}}
	root.Attr = []xml.Attr{
		{Name: xml.Name{Local: "xmlns"}, Value: xisfNamespace},
		{Name: xml.Name{Local: "xmlns:xsi"}, Value: "http://www.w3.org/2001/XMLSchema-instance"},
		{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: xisfNamespace + " http://pixinsight.com/xisf/xisf-1.0.xsd"},
		{Name: xml.Name{Local: "version"}, Value: xisfVersion},
	}
	if err := e.EncodeToken(root); err != nil {
		return nil, err
	}

	if err := emitMetadataElement(e, ph.Header.Metadata); err != nil {
		return nil, err
	}

	for _, img := range ph.Images {
		if err := emitImage(e, img); err != nil {
			return nil, err
		}
	}

	for _, p := range ph.GlobalProperties {
		if err := emitProperty(e, p); err != nil {
			return nil, err
		}
	}

	for _, ce := range ph.Header.Anonymous {
		if err := emitCoreElement(e, ce); err != nil {
			return nil, err
		}
	}
	for _, ce := range ph.Header.CoreElements {
		if err := emitCoreElement(e, ce); err != nil {
			return nil, err
		}
	}

	if err := e.EncodeToken(xml.EndElement{Name: root.Name}); err != nil {
		return nil, err
	}
	if err := e.Flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func emitMetadataElement(e *xml.Encoder, md Metadata) error {
	start := xml.StartElement{Name: xml.Name{Local: "Metadata"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	creationTime := Property{ID: "XISF:CreationTime", Type: PropTimePoint, TimeValue: md.CreationTime}
	if err := emitProperty(e, creationTime); err != nil {
		return err
	}
	creatorApp := Property{ID: "XISF:CreatorApplication", Type: PropString, StringValue: md.CreatorApplication}
	if err := emitProperty(e, creatorApp); err != nil {
		return err
	}

	for _, p := range md.Properties {
		if err := emitProperty(e, p); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
