package copy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/gpload/pkg/gperrors"
	"github.com/ajitpratap0/gpload/pkg/models"
)

// nullToken is the literal written for a nil column value. A non-nil
// string column that happens to equal "NULL" encodes identically; this
// collision is inherent to the sentinel-based wire format and is kept
// for compatibility with existing loaders.
const nullToken = "NULL"

// convertFunc renders one non-nil column value as its canonical text
// form, before escaping.
type convertFunc func(v interface{}) string

// RowEncoder converts rows into the delimited, newline-terminated,
// escaped text lines the COPY protocol consumes. The type-to-text
// dispatch is resolved once per column at construction, not per row.
//
// A RowEncoder is not safe for concurrent use; each partition upload
// owns its own instance.
type RowEncoder struct {
	delimiter  byte
	converters []convertFunc
	buf        []byte
}

// NewRowEncoder builds an encoder for the given schema and delimiter.
func NewRowEncoder(schema *models.Schema, delimiter byte) *RowEncoder {
	converters := make([]convertFunc, len(schema.Fields))
	for i, field := range schema.Fields {
		converters[i] = resolveConverter(field.Type)
	}

	return &RowEncoder{
		delimiter:  delimiter,
		converters: converters,
		buf:        make([]byte, 0, 1024),
	}
}

// EncodeRow produces one wire line for the row: per-column text forms,
// escaped, joined by the delimiter and terminated by a newline. The
// returned slice is reused by the next call; write it out before
// encoding another row.
func (e *RowEncoder) EncodeRow(row models.Row) ([]byte, error) {
	if len(row) != len(e.converters) {
		return nil, gperrors.Newf(gperrors.ErrorTypeData,
			"row has %d values, schema has %d columns", len(row), len(e.converters))
	}

	e.buf = e.buf[:0]
	for i, v := range row {
		if i > 0 {
			e.buf = append(e.buf, e.delimiter)
		}
		if v == nil {
			e.buf = append(e.buf, nullToken...)
			continue
		}
		e.buf = appendEscaped(e.buf, e.converters[i](v), e.delimiter)
	}
	e.buf = append(e.buf, '\n')

	return e.buf, nil
}

// appendEscaped writes s to dst, escaping the characters the wire
// format reserves: backslash, newline, carriage return and the
// delimiter. NUL bytes are dropped. All escape targets are ASCII, so a
// byte-wise scan is safe on UTF-8 input.
func appendEscaped(dst []byte, s string, delimiter byte) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == delimiter:
			dst = append(dst, '\\', c)
		case c == 0x00:
			// NUL cannot be represented in COPY text; dropped
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// resolveConverter maps a field type to its text converter. Wrapped
// kinds are first resolved to their underlying kind; anything outside
// the closed set falls back to the default string representation.
func resolveConverter(t models.FieldType) convertFunc {
	switch t.Underlying() {
	case models.FieldTypeString:
		return convertString
	case models.FieldTypeBool:
		return convertBool
	case models.FieldTypeInt16, models.FieldTypeInt32, models.FieldTypeInt64:
		return convertInt
	case models.FieldTypeFloat32, models.FieldTypeFloat64:
		return convertFloat
	case models.FieldTypeDecimal:
		return convertDecimal
	case models.FieldTypeDate:
		return convertDate
	case models.FieldTypeTimestamp:
		return convertTimestamp
	case models.FieldTypeBinary:
		return convertBinary
	default:
		return convertDefault
	}
}

func convertString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return convertDefault(v)
}

func convertBool(v interface{}) string {
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return convertDefault(v)
}

func convertInt(v interface{}) string {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10)
	case int8:
		return strconv.FormatInt(int64(n), 10)
	case int16:
		return strconv.FormatInt(int64(n), 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint:
		return strconv.FormatUint(uint64(n), 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	default:
		return convertDefault(v)
	}
}

func convertFloat(v interface{}) string {
	switch f := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return convertDefault(v)
	}
}

func convertDecimal(v interface{}) string {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return convertDefault(v)
}

func convertDate(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return convertDefault(v)
}

func convertTimestamp(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02 15:04:05.999999")
	}
	return convertDefault(v)
}

func convertBinary(v interface{}) string {
	if b, ok := v.([]byte); ok {
		// binary payloads travel as UTF-8 decoded text
		return string(b)
	}
	return convertDefault(v)
}

func convertDefault(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
