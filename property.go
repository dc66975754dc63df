// SPDX-License-Identifier: MIT

package xisf

import (
	"regexp"
	"time"
)

// propertyIDPattern is the canonical single-colon XISF 1.0 identifier grammar,
// additionally accepts the double-colon form.
var propertyIDPattern = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]*(::?[_A-Za-z][_A-Za-z0-9]*)*$`)

// uidPattern is the grammar for core-element unique identifiers.
var uidPattern = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]*$`)

// ValidPropertyID reports whether id matches the property identifier grammar.
func ValidPropertyID(id string) bool {
	return propertyIDPattern.MatchString(id)
}

// ValidUID reports whether uid matches the core-element UID grammar.
func ValidUID(uid string) bool {
	return uidPattern.MatchString(uid)
}

// PropertyType discriminates a Property's value shape and wire type name.
type PropertyType uint8

// Supported property value types.
const (
	PropBoolean PropertyType = iota
	PropInt8
	PropInt16
	PropInt32
	PropInt64
	PropUInt8
	PropUInt16
	PropUInt32
	PropUInt64
	PropFloat32
	PropFloat64
	PropComplex32
	PropComplex64
	PropString
	PropTimePoint
	PropVectorInt32
	PropVectorFloat32
	PropVectorFloat64
	PropMatrixFloat32
	PropMatrixFloat64
	PropTable
)

// propertyTypeNames maps PropertyType to its wire "type" attribute value.
var propertyTypeNames = map[PropertyType]string{
	PropBoolean:        "Boolean",
	PropInt8:           "Int8",
	PropInt16:          "Int16",
	PropInt32:          "Int32",
	PropInt64:          "Int64",
	PropUInt8:          "UInt8",
	PropUInt16:         "UInt16",
	PropUInt32:         "UInt32",
	PropUInt64:         "UInt64",
	PropFloat32:        "Float32",
	PropFloat64:        "Float64",
	PropComplex32:      "Complex32",
	PropComplex64:      "Complex64",
	PropString:         "String",
	PropTimePoint:       "TimePoint",
	PropVectorInt32:    "Vector.Int32",
	PropVectorFloat32:  "Vector.Float32",
	PropVectorFloat64:  "Vector.Float64",
	PropMatrixFloat32:  "Matrix.Float32",
	PropMatrixFloat64:  "Matrix.Float64",
	PropTable:          "Table",
}

func (t PropertyType) String() string {
	if s, ok := propertyTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParsePropertyType resolves a "type" attribute value to its enumerator.
func ParsePropertyType(s string) (PropertyType, error) {
	for t, name := range propertyTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errorf(ErrUnknownEnumValue, "property type %q", s)
}

// Property is one <Property> element: a typed, identified value with optional comment/format.
type Property struct {
	ID      string
	Type    PropertyType
	Comment string
	Format  string

	// Exactly one of the following is populated, selected by Type.
	BoolValue    bool
	IntValue     int64
	UintValue    uint64
	FloatValue   float64
	ComplexValue complex128
	StringValue  string
	TimeValue    time.Time
	VectorInt32  []int32
	VectorFloat32 []float32
	VectorFloat64 []float64
	MatrixFloat32 [][]float32
	MatrixFloat64 [][]float64
	TableValue    [][]Property
}
