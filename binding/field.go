package binding

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Source is where a field's raw value is read from.
type Source int

const (
	SourcePath Source = iota
	SourceQuery
	SourceBody
	SourceHeader
	SourceForm
)

var sourceNames = map[Source]string{
	SourcePath:   "path",
	SourceQuery:  "query",
	SourceBody:   "body",
	SourceHeader: "header",
	SourceForm:   "form",
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return "unknown"
}

// UnmarshalYAML reads a source by name.
func (s *Source) UnmarshalYAML(node *yaml.Node) error {
	for src, name := range sourceNames {
		if strings.EqualFold(node.Value, name) {
			*s = src
			return nil
		}
	}
	return errors.Newf("line %d: unknown source %q", node.Line, node.Value)
}

// Kind is the declared type a raw value is converted to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime // RFC 3339
	KindDuration
	KindStrings
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindTime:     "time",
	KindDuration: "duration",
	KindStrings:  "strings",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// UnmarshalYAML reads a kind by name.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	for kind, name := range kindNames {
		if strings.EqualFold(node.Value, name) {
			*k = kind
			return nil
		}
	}
	return errors.Newf("line %d: unknown kind %q", node.Line, node.Value)
}

// Field describes how one field of a bindable type is read, converted and validated.
type Field struct {
	// Name identifies the field in notes and validation results. It is also the default source
	// key.
	Name string `yaml:"name"`
	// Target is the struct field to set. Defaults to Name with its first letter upper-cased.
	// Ignored for map targets.
	Target string `yaml:"target"`
	// Key overrides the source key: a route parameter, query or form key, header name, or a
	// gjson path into the body such as "address.city".
	Key    string `yaml:"key"`
	Source Source `yaml:"source"`
	Kind   Kind   `yaml:"kind"`
	// Default is bound when the value is absent. A field with a default cannot be required.
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

func (f Field) key() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

func (f Field) target() string {
	if f.Target != "" {
		return f.Target
	}
	return strings.ToUpper(f.Name[:1]) + f.Name[1:]
}

// LoadFields reads field descriptors from YAML:
//
//	fields:
//	  - name: age
//	    source: body
//	    kind: int
//	    rules:
//	      - kind: range
//	        args: ["18", "60"]
func LoadFields(rd io.Reader) ([]Field, error) {
	var doc struct {
		Fields []Field `yaml:"fields"`
	}

	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode field descriptors")
	}

	return doc.Fields, nil
}
