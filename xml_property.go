// SPDX-License-Identifier: MIT

package xisf

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// attrValue returns the value of the named attribute, or "" if absent.
func attrValue(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// parsePropertyElement decodes one <Property> element (global, associated,
// or nested inside a Table).
func parsePropertyElement(d *xml.Decoder, start xml.StartElement) (Property, error) {
	id, ok := attrValue(start.Attr, "id")
	if !ok || id == "" {
		return Property{}, errorf(ErrMissingRequiredAttribute, "Property: id")
	}
	if !ValidPropertyID(id) {
		return Property{}, errorf(ErrMalformedXML, "Property id %q does not match identifier grammar", id)
	}

	typeName, ok := attrValue(start.Attr, "type")
	if !ok || typeName == "" {
		return Property{}, errorf(ErrMissingRequiredAttribute, "Property: type")
	}
	ptype, err := ParsePropertyType(typeName)
	if err != nil {
		return Property{}, err
	}

	p := Property{ID: id, Type: ptype}
	if c, ok := attrValue(start.Attr, "comment"); ok {
		p.Comment = c
	}
	if f, ok := attrValue(start.Attr, "format"); ok {
		p.Format = f
	}

	valueAttr, hasValueAttr := attrValue(start.Attr, "value")

	text, children, err := readElementTextAndChildren(d, start)
	if err != nil {
		return Property{}, err
	}

	if err := assignPropertyValue(&p, ptype, valueAttr, hasValueAttr, text, children); err != nil {
		return Property{}, err
	}

	return p, nil
}

// assignPropertyValue fills p's typed value from either the value attribute
// (scalar/time types) or the element text content (String, and as a
// fallback for any type).
func assignPropertyValue(p *Property, ptype PropertyType, valueAttr string, hasValueAttr bool, text string, children []Property) error {
	raw := strings.TrimSpace(valueAttr)
	if !hasValueAttr || raw == "" {
		raw = strings.TrimSpace(text)
	}

	switch ptype {
	case PropBoolean:
		v, err := parseBool(raw)
		if err != nil {
			return err
		}
		p.BoolValue = v

	case PropInt8, PropInt16, PropInt32, PropInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errorf(ErrMalformedXML, "property %s: %v", p.ID, err)
		}
		p.IntValue = v

	case PropUInt8, PropUInt16, PropUInt32, PropUInt64:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return errorf(ErrMalformedXML, "property %s: %v", p.ID, err)
		}
		p.UintValue = v

	case PropFloat32, PropFloat64:
		v, err := parseFloat(raw)
		if err != nil {
			return err
		}
		p.FloatValue = v

	case PropComplex32, PropComplex64:
		c, err := parseComplex(raw)
		if err != nil {
			return err
		}
		p.ComplexValue = c

	case PropString:
		p.StringValue = text

	case PropTimePoint:
		t, err := parseTimePoint(raw)
		if err != nil {
			return err
		}
		p.TimeValue = t

	case PropVectorInt32:
		vec, err := parseIntVector(text)
		if err != nil {
			return err
		}
		p.VectorInt32 = vec

	case PropVectorFloat32:
		vec, err := parseFloatVector(text)
		if err != nil {
			return err
		}
		p.VectorFloat32 = toFloat32Vector(vec)

	case PropVectorFloat64:
		vec, err := parseFloatVector(text)
		if err != nil {
			return err
		}
		p.VectorFloat64 = vec

	case PropMatrixFloat32:
		m, err := parseFloatMatrix(text)
		if err != nil {
			return err
		}
		p.MatrixFloat32 = toFloat32Matrix(m)

	case PropMatrixFloat64:
		m, err := parseFloatMatrix(text)
		if err != nil {
			return err
		}
		p.MatrixFloat64 = m

	case PropTable:
		rows := make([][]Property, 0, 1)
		if len(children) > 0 {
			rows = append(rows, children)
		}
		p.TableValue = rows

	default:
		p.StringValue = text
	}

	return nil
}

// readElementTextAndChildren drains an element's text content and any
// nested <Property> children (used by Table-typed properties), consuming
// through the matching EndElement.
func readElementTextAndChildren(d *xml.Decoder, start xml.StartElement) (string, []Property, error) {
	var text strings.Builder
	var children []Property

	for {
		tok, err := d.Token()
		if err != nil {
			return "", nil, errorf(ErrMalformedXML, "reading %s: %v", start.Name.Local, err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)

		case xml.StartElement:
			if t.Name.Local == "Property" {
				child, err := parsePropertyElement(d, t)
				if err != nil {
					return "", nil, err
				}
				children = append(children, child)
				continue
			}
			if err := d.Skip(); err != nil {
				return "", nil, errorf(ErrMalformedXML, "skipping %s: %v", t.Name.Local, err)
			}

		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return text.String(), children, nil
			}
		}
	}
}

// parseComplex parses a "re,im" complex value.
func parseComplex(s string) (complex128, error) {
	fields := strings.SplitN(s, ",", 2)
	if len(fields) != 2 {
		return 0, errorf(ErrMalformedXML, "complex value %q", s)
	}
	re, err := parseFloat(fields[0])
	if err != nil {
		return 0, err
	}
	im, err := parseFloat(fields[1])
	if err != nil {
		return 0, err
	}
	return complex(re, im), nil
}

func formatComplex(c complex128) string {
	return formatFloat64(real(c)) + "," + formatFloat64(imag(c))
}

// parseIntVector parses whitespace-separated integers.
func parseIntVector(s string) ([]int32, error) {
	fields := strings.Fields(s)
	out := make([]int32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, errorf(ErrMalformedXML, "int vector element %q: %v", f, err)
		}
		out = append(out, int32(v))
	}
	return out, nil
}

// parseFloatVector parses whitespace-separated floats.
func parseFloatVector(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseFloatMatrix parses newline-separated rows of whitespace-separated floats.
func parseFloatMatrix(s string) ([][]float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([][]float64, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		row, err := parseFloatVector(line)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func toFloat32Vector(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat32Matrix(m [][]float64) [][]float32 {
	out := make([][]float32, len(m))
	for i, row := range m {
		out[i] = toFloat32Vector(row)
	}
	return out
}

// emitProperty writes one <Property> element.
func emitProperty(e *xml.Encoder, p Property) error {
	start := xml.StartElement{Name: xml.Name{Local: "Property"}}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: p.ID})
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: p.Type.String()})
	if p.Comment != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "comment"}, Value: p.Comment})
	}
	if p.Format != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "format"}, Value: p.Format})
	}

	valueAttr, text, hasText := propertyWireValue(p)
	if valueAttr != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "value"}, Value: valueAttr})
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}
	switch {
	case p.Type == PropTable:
		for _, row := range p.TableValue {
			for _, child := range row {
				if err := emitProperty(e, child); err != nil {
					return err
				}
			}
		}
	case hasText:
		if err := e.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// propertyWireValue returns (value attribute, element text, hasText) for p.
func propertyWireValue(p Property) (string, string, bool) {
	switch p.Type {
	case PropBoolean:
		return formatBool(p.BoolValue), "", false
	case PropInt8, PropInt16, PropInt32, PropInt64:
		return strconv.FormatInt(p.IntValue, 10), "", false
	case PropUInt8, PropUInt16, PropUInt32, PropUInt64:
		return strconv.FormatUint(p.UintValue, 10), "", false
	case PropFloat32:
		return formatFloat32(float32(p.FloatValue)), "", false
	case PropFloat64:
		return formatFloat64(p.FloatValue), "", false
	case PropComplex32, PropComplex64:
		return formatComplex(p.ComplexValue), "", false
	case PropTimePoint:
		return formatTimePoint(p.TimeValue), "", false
	case PropString:
		return "", p.StringValue, true
	case PropVectorInt32:
		return "", formatIntVector(p.VectorInt32), true
	case PropVectorFloat32:
		return "", formatFloatVector(toFloat64Vector32(p.VectorFloat32)), true
	case PropVectorFloat64:
		return "", formatFloatVector(p.VectorFloat64), true
	case PropMatrixFloat32:
		return "", formatFloatMatrix(toFloat64Matrix32(p.MatrixFloat32)), true
	case PropMatrixFloat64:
		return "", formatFloatMatrix(p.MatrixFloat64), true
	case PropTable:
		return "", "", false
	default:
		return "", p.StringValue, true
	}
}

func formatIntVector(v []int32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatInt(int64(x), 10)
	}
	return strings.Join(parts, " ")
}

func formatFloatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = formatFloat64(x)
	}
	return strings.Join(parts, " ")
}

func formatFloatMatrix(m [][]float64) string {
	rows := make([]string, len(m))
	for i, row := range m {
		rows[i] = formatFloatVector(row)
	}
	return strings.Join(rows, "\n")
}

func toFloat64Vector32(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat64Matrix32(m [][]float32) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = toFloat64Vector32(row)
	}
	return out
}
