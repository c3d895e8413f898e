// Package models defines the data model shared by the encoder, the
// partition uploader and the load orchestrator: rows, schemas and the
// closed set of field types the wire encoding understands.
package models

// Row is one record of a partition: an ordered sequence of typed values
// whose length is fixed by the schema. Any slot may be nil.
type Row []interface{}

// Schema describes the structure of the rows in a dataset and, by
// extension, the column list of the target table.
type Schema struct {
	// Name identifies the schema (usually the target table name)
	Name string `json:"name" yaml:"name"`

	// Fields defines the columns in order
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field is a single column in the schema.
type Field struct {
	// Name is the column identifier
	Name string `json:"name" yaml:"name"`

	// Type is the semantic value kind of the column
	Type FieldType `json:"type" yaml:"type"`
}

// FieldType is the closed enumeration of value kinds the COPY text
// encoding knows how to render. Kinds not listed here fall back to the
// default string representation.
type FieldType string

const (
	// FieldTypeString represents text values
	FieldTypeString FieldType = "string"
	// FieldTypeBool represents boolean values
	FieldTypeBool FieldType = "bool"
	// FieldTypeInt16 represents 16-bit integers
	FieldTypeInt16 FieldType = "int16"
	// FieldTypeInt32 represents 32-bit integers
	FieldTypeInt32 FieldType = "int32"
	// FieldTypeInt64 represents 64-bit integers
	FieldTypeInt64 FieldType = "int64"
	// FieldTypeFloat32 represents single-precision floats
	FieldTypeFloat32 FieldType = "float32"
	// FieldTypeFloat64 represents double-precision floats
	FieldTypeFloat64 FieldType = "float64"
	// FieldTypeDecimal represents fixed-point decimal values
	FieldTypeDecimal FieldType = "decimal"
	// FieldTypeDate represents calendar dates without time of day
	FieldTypeDate FieldType = "date"
	// FieldTypeTimestamp represents point-in-time values
	FieldTypeTimestamp FieldType = "timestamp"
	// FieldTypeBinary represents byte sequences, decoded as UTF-8 text on the wire
	FieldTypeBinary FieldType = "binary"

	// Wrapped kinds. These alias an underlying kind and are resolved
	// through Underlying before encoding.

	// FieldTypeJSON represents JSON documents carried as text
	FieldTypeJSON FieldType = "json"
	// FieldTypeUUID represents UUID values carried as text
	FieldTypeUUID FieldType = "uuid"
)

// Underlying resolves a wrapped or aliased kind to the kind that drives
// encoding and DDL generation. Plain kinds resolve to themselves.
func (t FieldType) Underlying() FieldType {
	switch t {
	case FieldTypeJSON, FieldTypeUUID:
		return FieldTypeString
	default:
		return t
	}
}
