package binding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Validate runs every rule of every field against the bound value, in declaration order, and
// aggregates all violations. A field the binder could not convert first fails with an invalid
// value message, then its declared rules run. value may be the bound T or a pointer to it; any
// other value panics, like a descriptor that fails to compile in [MustDescribe].
func Validate(value any, notes Notes, d *Descriptor) Result {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != d.typ {
		panic(fmt.Sprintf("binding: validate %T with a descriptor for %s", value, d.typ))
	}

	var res Result
	for _, cf := range d.fields {
		note, noted := notes[cf.Name]
		if noted && note.Kind == NoteInvalid {
			res.Add(cf.Name, renderMessage(invalidValueMessage, cf.Name, note.Raw, nil))
		}

		v := fieldValue(rv, cf)
		missing := noted && note.Kind == NoteMissing
		for _, rule := range cf.rules {
			if !rule.check(v, missing) {
				res.Add(cf.Name, rule.render(cf.Name, v))
			}
		}
	}

	return res
}

// fieldValue reads a field back from the bound value; nil when absent.
func fieldValue(rv reflect.Value, cf compiledField) any {
	if rv.Kind() == reflect.Map {
		mv := rv.MapIndex(reflect.ValueOf(cf.Name))
		if !mv.IsValid() {
			return nil
		}
		return mv.Interface()
	}

	fv := rv.FieldByIndex(cf.index)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	return fv.Interface()
}

// Result maps field names to violation messages, in the order they were found. The zero value
// is an empty, valid result.
type Result struct {
	order []string
	msgs  map[string][]string
}

// Add records a violation for the field.
func (r *Result) Add(field, msg string) {
	if r.msgs == nil {
		r.msgs = map[string][]string{}
	}
	if _, ok := r.msgs[field]; !ok {
		r.order = append(r.order, field)
	}
	r.msgs[field] = append(r.msgs[field], msg)
}

// IsValid is true iff no field has a violation.
func (r Result) IsValid() bool { return len(r.order) == 0 }

// Len returns the number of fields with violations.
func (r Result) Len() int { return len(r.order) }

// Fields returns the fields with violations in insertion order.
func (r Result) Fields() []string { return append([]string(nil), r.order...) }

// Messages returns the violations of one field.
func (r Result) Messages(field string) []string { return append([]string(nil), r.msgs[field]...) }

// MarshalJSON encodes the result as an object whose keys keep insertion order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		msgs, err := json.Marshal(r.msgs[field])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(msgs)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
