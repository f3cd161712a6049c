package binding

import (
	"reflect"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	anyMapType   = reflect.TypeFor[map[string]any]()
)

// Descriptor is a list of fields compiled against a target type. It is immutable and safe for
// concurrent use.
type Descriptor struct {
	typ    reflect.Type
	isMap  bool
	fields []compiledField
}

type compiledField struct {
	Field
	index []int
	ptr   bool
	def   any
	rules []compiledRule
}

// Fields returns the descriptor's fields in declaration order.
func (d *Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	for i, cf := range d.fields {
		out[i] = cf.Field
	}
	return out
}

// Describe compiles fields against T, which must be a struct or map[string]any. Struct targets
// are resolved by reflection once, here; pointer fields stay nil when their value is absent.
func Describe[T any](fields ...Field) (*Descriptor, error) {
	typ := reflect.TypeFor[T]()

	d := &Descriptor{typ: typ, isMap: typ == anyMapType}
	if !d.isMap && typ.Kind() != reflect.Struct {
		return nil, errors.Newf("binding target %s must be a struct or map[string]any", typ)
	}

	seen := map[string]bool{}
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.Newf("field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, errors.Newf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		cf, err := compileField(typ, d.isMap, f)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q of %s", f.Name, typ)
		}
		d.fields = append(d.fields, cf)
	}

	return d, nil
}

// MustDescribe is like [Describe] but panics on error. Use it for package-level descriptors.
func MustDescribe[T any](fields ...Field) *Descriptor {
	d, err := Describe[T](fields...)
	if err != nil {
		panic("binding: " + err.Error())
	}
	return d
}

func compileField(typ reflect.Type, isMap bool, f Field) (compiledField, error) {
	cf := compiledField{Field: f}
	if _, ok := kindNames[f.Kind]; !ok {
		return cf, errors.Newf("unknown kind %d", f.Kind)
	}
	if _, ok := sourceNames[f.Source]; !ok {
		return cf, errors.Newf("unknown source %d", f.Source)
	}
	if f.Kind == KindStrings && f.Source == SourcePath {
		return cf, errors.New("path parameters cannot bind to a list")
	}

	if !isMap {
		sf, ok := typ.FieldByName(f.target())
		if !ok {
			return cf, errors.Newf("no struct field %q", f.target())
		}
		if !sf.IsExported() {
			return cf, errors.Newf("struct field %q is not exported", sf.Name)
		}

		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			cf.ptr, ft = true, ft.Elem()
		}
		if !assignable(f.Kind, ft) {
			return cf, errors.Newf("struct field %q of type %s cannot hold kind %s", sf.Name, sf.Type, f.Kind)
		}
		cf.index = sf.Index
	}

	if f.Default != "" {
		def, err := convertString(f.Kind, []string{f.Default})
		if err != nil {
			return cf, errors.Wrap(err, "default")
		}
		cf.def = def

		if hasRequired(cf) {
			return cf, errors.New("a field with a default cannot be required")
		}
	}

	for i, rule := range f.Rules {
		cr, err := compileRule(rule)
		if err != nil {
			return cf, errors.Wrapf(err, "rule %d", i)
		}
		cf.rules = append(cf.rules, cr)
	}

	return cf, nil
}

func assignable(k Kind, t reflect.Type) bool {
	switch k {
	case KindString:
		return t.Kind() == reflect.String
	case KindInt:
		switch t.Kind() { //nolint:exhaustive
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return t != durationType
		default:
			return false
		}
	case KindFloat:
		return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case KindBool:
		return t.Kind() == reflect.Bool
	case KindTime:
		return t == timeType
	case KindDuration:
		return t == durationType
	case KindStrings:
		return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String
	default:
		return false
	}
}

// Describer is implemented by types that declare their own fields. [For] compiles and caches
// their descriptor.
type Describer interface {
	BindingFields() []Field
}

type cacheEntry struct {
	once sync.Once
	d    *Descriptor
	err  error
}

var descriptors sync.Map // reflect.Type -> *cacheEntry

// For returns the cached descriptor of T. It is derived at most once per type and process, even
// under concurrent first use.
func For[T Describer]() (*Descriptor, error) {
	v, _ := descriptors.LoadOrStore(reflect.TypeFor[T](), &cacheEntry{})
	entry := v.(*cacheEntry) //nolint:forcetypeassert

	entry.once.Do(func() {
		var zero T
		entry.d, entry.err = Describe[T](zero.BindingFields()...)
	})

	return entry.d, entry.err
}
