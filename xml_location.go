// SPDX-License-Identifier: MIT

package xisf

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
)

// decodeText decodes inline/embedded block text: base64 per RFC
// 4648 with SP/TAB/CR/LF ignored, or lowercase-on-emit/case-insensitive-on-
// parse hex.
func decodeText(encoded []byte, enc InlineEncoding) ([]byte, error) {
	switch enc {
	case EncodingBase64:
		stripped := stripBase64Whitespace(encoded)
		out, err := base64.StdEncoding.DecodeString(string(stripped))
		if err != nil {
			return nil, errorf(ErrMalformedXML, "inline base64: %v", err)
		}
		return out, nil

	case EncodingHex:
		out, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(string(encoded))))
		if err != nil {
			return nil, errorf(ErrMalformedXML, "inline hex: %v", err)
		}
		return out, nil

	default:
		return nil, errorf(ErrUnknownEnumValue, "inline encoding %d", enc)
	}
}

// encodeText is the inverse of decodeText.
func encodeText(raw []byte, enc InlineEncoding) []byte {
	switch enc {
	case EncodingHex:
		return []byte(hex.EncodeToString(raw))
	default:
		return []byte(base64.StdEncoding.EncodeToString(raw))
	}
}

// stripBase64Whitespace removes SP, TAB, CR, LF bytes.
func stripBase64Whitespace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			out = append(out, c)
		}
	}
	return out
}

// locationKind discriminates the parsed "location" attribute grammar.
type locationKind uint8

const (
	locInline locationKind = iota
	locEmbedded
	locAttachment
	locURL
	locPath
)

// parsedLocation is the decoded form of a "location" attribute value.
type parsedLocation struct {
	kind     locationKind
	encoding InlineEncoding // locInline
	position uint64         // locAttachment
	size     uint64         // locAttachment
	uri      string         // locURL
	path     string         // locPath, relative to header_dir
}

// parseLocation parses the "location" attribute grammar.
func parseLocation(s string) (parsedLocation, error) {
	switch {
	case strings.HasPrefix(s, "inline:"):
		encName := strings.TrimPrefix(s, "inline:")
		enc, err := parseInlineEncodingName(encName)
		if err != nil {
			return parsedLocation{}, err
		}
		return parsedLocation{kind: locInline, encoding: enc}, nil

	case s == "embedded":
		return parsedLocation{kind: locEmbedded}, nil

	case strings.HasPrefix(s, "attachment:"):
		fields := strings.Split(strings.TrimPrefix(s, "attachment:"), ":")
		if len(fields) != 2 {
			return parsedLocation{}, errorf(ErrMalformedXML, "attachment location %q", s)
		}
		pos, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return parsedLocation{}, errorf(ErrMalformedXML, "attachment position %q: %v", fields[0], err)
		}
		size, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return parsedLocation{}, errorf(ErrMalformedXML, "attachment size %q: %v", fields[1], err)
		}
		return parsedLocation{kind: locAttachment, position: pos, size: size}, nil

	case strings.HasPrefix(s, "url(") && strings.HasSuffix(s, ")"):
		return parsedLocation{kind: locURL, uri: s[4 : len(s)-1]}, nil

	case strings.HasPrefix(s, "path(@header_dir/") && strings.HasSuffix(s, ")"):
		inner := s[len("path(@header_dir/") : len(s)-1]
		return parsedLocation{kind: locPath, path: inner}, nil

	default:
		return parsedLocation{}, errorf(ErrMalformedXML, "unrecognized location %q", s)
	}
}

func parseInlineEncodingName(s string) (InlineEncoding, error) {
	switch s {
	case "base64":
		return EncodingBase64, nil
	case "hex":
		return EncodingHex, nil
	default:
		return 0, errorf(ErrUnknownEnumValue, "inline encoding %q", s)
	}
}

// formatLocation renders the "location" attribute grammar.
func formatLocation(l parsedLocation) string {
	switch l.kind {
	case locInline:
		return "inline:" + l.encoding.String()
	case locEmbedded:
		return "embedded"
	case locAttachment:
		return "attachment:" + strconv.FormatUint(l.position, 10) + ":" + strconv.FormatUint(l.size, 10)
	case locURL:
		return "url(" + l.uri + ")"
	case locPath:
		return "path(@header_dir/" + l.path + ")"
	default:
		return ""
	}
}

// formatGeometry emits a geometry string: each dimension followed by the
// channel count, colon-separated.
func formatGeometry(g Geometry) string {
	var sb strings.Builder
	for _, d := range g.Dims {
		sb.WriteString(strconv.FormatUint(d, 10))
		sb.WriteByte(':')
	}
	sb.WriteString(strconv.FormatUint(g.Channels, 10))
	return sb.String()
}

// parseGeometry parses a geometry string; the parser requires >= 2 fields
// and yields (dims = fields[0..n-1], channel = fields[n-1]).
func parseGeometry(s string) (Geometry, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 {
		return Geometry{}, errorf(ErrMalformedXML, "geometry %q: need at least 2 fields", s)
	}

	dims := make([]uint64, 0, len(fields)-1)
	for _, f := range fields[:len(fields)-1] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil || v == 0 {
			return Geometry{}, errorf(ErrMalformedXML, "geometry %q: bad dimension %q", s, f)
		}
		dims = append(dims, v)
	}

	channels, err := strconv.ParseUint(fields[len(fields)-1], 10, 64)
	if err != nil || channels == 0 {
		return Geometry{}, errorf(ErrMalformedXML, "geometry %q: bad channel count", s)
	}

	return Geometry{Dims: dims, Channels: channels}, nil
}

// formatBounds emits a bounds string "lo:hi".
func formatBounds(b Bounds) string {
	return formatFloat64(b.Lower) + ":" + formatFloat64(b.Upper)
}

// parseBounds parses a "lo:hi" bounds string.
func parseBounds(s string) (Bounds, error) {
	fields := strings.SplitN(s, ":", 2)
	if len(fields) != 2 {
		return Bounds{}, errorf(ErrMalformedXML, "bounds %q", s)
	}
	lo, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Bounds{}, errorf(ErrMalformedXML, "bounds lower %q: %v", fields[0], err)
	}
	hi, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Bounds{}, errorf(ErrMalformedXML, "bounds upper %q: %v", fields[1], err)
	}
	if !(lo < hi) {
		return Bounds{}, errorf(ErrInvalidRange, "bounds %q: lower must be < upper", s)
	}
	return Bounds{Lower: lo, Upper: hi}, nil
}
