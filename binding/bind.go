package binding

import (
	"bytes"
	"net/url"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// NoteKind classifies what the binder noticed about a field.
type NoteKind int

const (
	// NoteInvalid means the raw value could not be converted to the field's kind.
	NoteInvalid NoteKind = iota + 1
	// NoteMissing means the value is absent while the field carries a required rule.
	NoteMissing
)

// Note is the binder's remark about one field. Notes are not failures by themselves; the
// validator turns them into messages.
type Note struct {
	Kind NoteKind
	Raw  string
	Err  error
}

// Notes maps field names to the binder's notes.
type Notes map[string]Note

// BindingError reports a body that could not be read at all. No body field can be bound from
// it, so validation is skipped.
type BindingError struct {
	Source Source
	Err    error
}

func (e *BindingError) Error() string { return "bind " + e.Source.String() + ": " + e.Err.Error() }
func (e *BindingError) Unwrap() error { return e.Err }

func bindingError(code bpipe.Code, src Source, err error) error {
	return bpipe.NewError(code, &BindingError{Source: src, Err: err})
}

type parsedBody struct {
	json gjson.Result
	form url.Values
	err  error
}

var (
	jsonBodyKey = bpipe.NewKey[*parsedBody]("binding.json")
	formBodyKey = bpipe.NewKey[*parsedBody]("binding.form")
)

// Bind reads every field of d from the request into a new T. Conversion failures and missing
// required values become notes and binding goes on. A body that cannot be parsed fails the whole
// bind with a [*BindingError] wrapped in a [*bpipe.Error] carrying 400, 413 or 415.
func Bind[T any](r *bpipe.Request, d *Descriptor) (T, Notes, error) {
	var out T
	if typ := reflect.TypeFor[T](); typ != d.typ {
		return out, nil, errors.Newf("descriptor is for %s, not %s", d.typ, typ)
	}

	rv := reflect.ValueOf(&out).Elem()
	if d.isMap {
		rv.Set(reflect.ValueOf(map[string]any{}))
	}

	notes := Notes{}
	for _, cf := range d.fields {
		val, raw, present, err := read(r, cf)
		if err != nil {
			var zero T
			return zero, nil, err
		}

		if present && val == nil {
			notes[cf.Name] = Note{Kind: NoteInvalid, Raw: raw.display, Err: raw.err}
			continue
		}

		if !present {
			if hasRequired(cf) {
				notes[cf.Name] = Note{Kind: NoteMissing}
			}
			if cf.def == nil {
				continue
			}
			val = cf.def
		}

		if err := assign(rv, cf, val); err != nil {
			notes[cf.Name] = Note{Kind: NoteInvalid, Raw: display(val), Err: err}
		}
	}

	return out, notes, nil
}

type rawValue struct {
	display string
	err     error
}

// read looks the field up in its source. A present value that fails conversion comes back with
// a nil val and the conversion error in raw.
func read(r *bpipe.Request, cf compiledField) (val any, raw rawValue, present bool, err error) {
	var vals []string

	switch cf.Source {
	case SourcePath:
		v, ok := r.Params()[cf.key()]
		if ok {
			vals = []string{v}
		}
	case SourceQuery:
		vals = r.Query()[cf.key()]
	case SourceHeader:
		vals = r.Header().Values(cf.key())
	case SourceForm:
		body := formBody(r)
		if body.err != nil {
			return nil, raw, false, body.err
		}
		vals = body.form[cf.key()]
	case SourceBody:
		body := jsonBody(r)
		if body.err != nil {
			return nil, raw, false, body.err
		}

		res := body.json.Get(cf.key())
		if !res.Exists() || res.Type == gjson.Null {
			return nil, raw, false, nil
		}

		v, cerr := convertJSON(cf.Kind, res)
		if cerr != nil {
			return nil, rawValue{display: displayJSON(res), err: cerr}, true, nil
		}
		return v, raw, true, nil
	}

	if len(vals) == 0 || (cf.Kind != KindString && cf.Kind != KindStrings && strings.TrimSpace(vals[0]) == "") {
		return nil, raw, false, nil
	}

	v, cerr := convertString(cf.Kind, vals)
	if cerr != nil {
		return nil, rawValue{display: vals[0], err: cerr}, true, nil
	}
	return v, raw, true, nil
}

func displayJSON(res gjson.Result) string {
	if res.Type == gjson.String {
		return res.Str
	}
	return res.Raw
}

func jsonBody(r *bpipe.Request) *parsedBody {
	if pb, ok := bpipe.Get(r, jsonBodyKey); ok {
		return pb
	}

	pb := &parsedBody{}
	defer bpipe.Set(r, jsonBodyKey, pb)

	if mt := r.MediaType(); mt != "" && mt != "application/json" && !strings.HasSuffix(mt, "+json") {
		pb.err = bindingError(bpipe.CodeUnsupportedMediaType, SourceBody,
			errors.Newf("unsupported content type %q", mt))
		return pb
	}

	data, err := r.Body()
	if err != nil {
		pb.err = bodyReadError(SourceBody, err)
		return pb
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return pb
	}
	if !gjson.ValidBytes(data) {
		pb.err = bindingError(bpipe.CodeBadRequest, SourceBody, errors.New("malformed JSON body"))
		return pb
	}
	if !utf8.Valid(data) {
		pb.err = bindingError(bpipe.CodeBadRequest, SourceBody, errors.New("JSON body is not valid UTF-8"))
		return pb
	}

	pb.json = gjson.ParseBytes(data)
	if !pb.json.IsObject() {
		pb.err = bindingError(bpipe.CodeBadRequest, SourceBody, errors.New("JSON body must be an object"))
	}

	return pb
}

func formBody(r *bpipe.Request) *parsedBody {
	if pb, ok := bpipe.Get(r, formBodyKey); ok {
		return pb
	}

	pb := &parsedBody{form: url.Values{}}
	defer bpipe.Set(r, formBodyKey, pb)

	if mt := r.MediaType(); mt != "" && mt != "application/x-www-form-urlencoded" {
		pb.err = bindingError(bpipe.CodeUnsupportedMediaType, SourceForm,
			errors.Newf("unsupported content type %q", mt))
		return pb
	}

	data, err := r.Body()
	if err != nil {
		pb.err = bodyReadError(SourceForm, err)
		return pb
	}

	form, err := url.ParseQuery(string(data))
	if err != nil {
		pb.err = bindingError(bpipe.CodeBadRequest, SourceForm, errors.Wrap(err, "malformed form body"))
		return pb
	}
	pb.form = form

	return pb
}

func bodyReadError(src Source, err error) error {
	if code := bpipe.CodeOf(err); code != bpipe.CodeUnknown {
		return bindingError(code, src, err)
	}
	return bindingError(bpipe.CodeBadRequest, src, err)
}

func hasRequired(cf compiledField) bool {
	for _, rule := range cf.Rules {
		if rule.Kind == RuleRequired {
			return true
		}
	}
	return false
}

// assign stores a converted value into the target.
func assign(rv reflect.Value, cf compiledField, val any) error {
	if rv.Kind() == reflect.Map {
		rv.SetMapIndex(reflect.ValueOf(cf.Name), reflect.ValueOf(val))
		return nil
	}

	field := rv.FieldByIndex(cf.index)
	fv := field
	if cf.ptr {
		fv = reflect.New(field.Type().Elem()).Elem()
	}

	src := reflect.ValueOf(val)
	switch fv.Kind() { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.OverflowInt(src.Int()) {
			return errors.Newf("%d overflows %s", src.Int(), fv.Type())
		}
		fv.SetInt(src.Int())
	case reflect.Float32, reflect.Float64:
		if fv.OverflowFloat(src.Float()) {
			return errors.Newf("%g overflows %s", src.Float(), fv.Type())
		}
		fv.SetFloat(src.Float())
	default:
		fv.Set(src.Convert(fv.Type()))
	}

	if cf.ptr {
		field.Set(fv.Addr())
	}

	return nil
}
