package copy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/gpload/pkg/gperrors"
)

// TableIdentifier is a parsed, possibly schema-qualified table name.
// Whether each component was double-quoted is recorded at parse time so
// rendering preserves it: a quoted component names a case-sensitive
// relation the engine must not fold to lowercase.
type TableIdentifier struct {
	// Schema is the namespace component; empty when the identifier was
	// unqualified.
	Schema string
	// Name is the raw table name with any surrounding quotes removed.
	Name string
	// SchemaQuoted records whether the schema component was quoted.
	SchemaQuoted bool
	// NameQuoted records whether the name component was quoted.
	NameQuoted bool
}

// identComponent accepts one identifier component: alphanumeric or
// underscore characters, optionally wrapped in double quotes.
var identComponent = regexp.MustCompile(`^(?:"([A-Za-z0-9_]+)"|([A-Za-z0-9_]+))$`)

// ParseTableIdentifier parses text of the form "name" or "schema.name".
// Each component is one or more alphanumeric/underscore characters,
// optionally double-quoted. Any other shape is rejected before any I/O
// takes place.
func ParseTableIdentifier(text string) (TableIdentifier, error) {
	parts := strings.Split(text, ".")
	if len(parts) > 2 {
		return TableIdentifier{}, malformedIdentifier(text)
	}

	type component struct {
		text   string
		quoted bool
	}

	components := make([]component, 0, 2)
	for _, part := range parts {
		m := identComponent.FindStringSubmatch(part)
		if m == nil {
			return TableIdentifier{}, malformedIdentifier(text)
		}
		if m[1] != "" {
			components = append(components, component{text: m[1], quoted: true})
		} else {
			components = append(components, component{text: m[2]})
		}
	}

	if len(components) == 2 {
		return TableIdentifier{
			Schema:       components[0].text,
			Name:         components[1].text,
			SchemaQuoted: components[0].quoted,
			NameQuoted:   components[1].quoted,
		}, nil
	}
	return TableIdentifier{
		Name:       components[0].text,
		NameQuoted: components[0].quoted,
	}, nil
}

func malformedIdentifier(text string) *gperrors.Error {
	return gperrors.Newf(gperrors.ErrorTypeIdentifier,
		"malformed table identifier %q: expected NAME or SCHEMA.NAME where each component is alphanumeric/underscore, optionally double-quoted", text)
}

// String renders the identifier the way it is used in SQL: each
// component keeps the quoting it carried on input.
func (t TableIdentifier) String() string {
	if t.Schema == "" {
		return renderComponent(t.Name, t.NameQuoted)
	}
	return renderComponent(t.Schema, t.SchemaQuoted) + "." + renderComponent(t.Name, t.NameQuoted)
}

// NameSQL renders only the name component, for statements that take a
// bare relation name such as ALTER TABLE ... RENAME TO.
func (t TableIdentifier) NameSQL() string {
	return renderComponent(t.Name, t.NameQuoted)
}

func renderComponent(text string, quoted bool) string {
	if quoted {
		return fmt.Sprintf("%q", text)
	}
	return text
}
