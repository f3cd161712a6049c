package binding_test

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/advdv/bpipe/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules(t *testing.T) {
	binding.RegisterRule("even", func(v any) bool {
		n, ok := v.(int)
		return ok && n%2 == 0
	})

	type Form struct {
		Code    string
		Tags    []string
		Phone   string
		Site    string
		Color   string
		Number  int
		Percent float64
	}

	for _, tt := range []struct {
		name  string
		field binding.Field
		value Form
		want  []string
	}{
		{
			name:  "min length",
			field: binding.Field{Name: "code", Rules: []binding.Rule{binding.MinLength(3)}},
			value: Form{Code: "ab"},
			want:  []string{"The field code must be a string or array type with a minimum length of '3'."},
		},
		{
			name:  "max length counts runes",
			field: binding.Field{Name: "code", Rules: []binding.Rule{binding.MaxLength(2)}},
			value: Form{Code: "éé"},
		},
		{
			name:  "max length on lists",
			field: binding.Field{Name: "tags", Kind: binding.KindStrings, Rules: []binding.Rule{binding.MaxLength(1)}},
			value: Form{Tags: []string{"a", "b"}},
			want:  []string{"The field tags must be a string or array type with a maximum length of '1'."},
		},
		{
			name:  "phone",
			field: binding.Field{Name: "phone", Rules: []binding.Rule{binding.Phone()}},
			value: Form{Phone: "12345"},
			want:  []string{"The phone field is not a valid phone number."},
		},
		{
			name:  "valid phone",
			field: binding.Field{Name: "phone", Rules: []binding.Rule{binding.Phone()}},
			value: Form{Phone: "+31612345678"},
		},
		{
			name:  "url",
			field: binding.Field{Name: "site", Rules: []binding.Rule{binding.URL()}},
			value: Form{Site: "not a url"},
			want:  []string{"The site field is not a valid fully-qualified http, https, or ftp URL."},
		},
		{
			name:  "empty format values pass",
			field: binding.Field{Name: "site", Rules: []binding.Rule{binding.URL(), binding.Regex(`[a-z]+`)}},
			value: Form{},
		},
		{
			name:  "regex must match whole value",
			field: binding.Field{Name: "code", Rules: []binding.Rule{binding.Regex(`[A-Z]{2}`)}},
			value: Form{Code: "ABC"},
			want:  []string{"The field code must match the regular expression '[A-Z]{2}'."},
		},
		{
			name:  "one of",
			field: binding.Field{Name: "color", Rules: []binding.Rule{binding.OneOf("red", "green")}},
			value: Form{Color: "blue"},
			want:  []string{"The field color must be one of: red, green."},
		},
		{
			name:  "float range",
			field: binding.Field{Name: "percent", Kind: binding.KindFloat, Rules: []binding.Rule{binding.Range(0, 1)}},
			value: Form{Percent: 1.5},
			want:  []string{"The field percent must be between 0 and 1."},
		},
		{
			name:  "custom",
			field: binding.Field{Name: "number", Kind: binding.KindInt, Rules: []binding.Rule{binding.Custom("even")}},
			value: Form{Number: 3},
			want:  []string{"The field number is invalid."},
		},
		{
			name: "custom message",
			field: binding.Field{Name: "number", Kind: binding.KindInt, Rules: []binding.Rule{
				binding.Range(10, 20).WithMessage("{field} is {value}, want {min}-{max}"),
			}},
			value: Form{Number: 3},
			want:  []string{"number is 3, want 10-20"},
		},
		{
			name: "rules run in declaration order",
			field: binding.Field{Name: "code", Rules: []binding.Rule{
				binding.Required(), binding.MinLength(2),
			}},
			value: Form{Code: " "},
			want: []string{
				"The code field is required.",
				"The field code must be a string or array type with a minimum length of '2'.",
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			d, err := binding.Describe[Form](tt.field)
			require.NoError(t, err)

			res := binding.Validate(tt.value, nil, d)
			if len(tt.want) == 0 {
				require.True(t, res.IsValid(), res.Fields())
				return
			}
			require.Equal(t, tt.want, res.Messages(tt.field.Name))
		})
	}
}

func TestValidateEvaluatesAllFields(t *testing.T) {
	d, err := binding.Describe[map[string]any](
		binding.Field{Name: "a", Rules: []binding.Rule{binding.Required()}},
		binding.Field{Name: "b", Rules: []binding.Rule{binding.Required()}},
		binding.Field{Name: "c", Rules: []binding.Rule{binding.Required()}},
	)
	require.NoError(t, err)

	res := binding.Validate(map[string]any{"b": "x"}, binding.Notes{
		"a": {Kind: binding.NoteMissing},
		"c": {Kind: binding.NoteMissing},
	}, d)
	require.Equal(t, []string{"a", "c"}, res.Fields())
}

func TestResultJSONOrder(t *testing.T) {
	var res binding.Result
	res.Add("zeta", "z1")
	res.Add("alpha", "a1")
	res.Add("zeta", "z2")

	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":["z1","z2"],"alpha":["a1"]}`, string(b))

	var empty binding.Result
	b, err = json.Marshal(empty)
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))
	require.True(t, empty.IsValid())
}

func TestDescribeErrors(t *testing.T) {
	type T struct {
		Name   string
		Age    int
		hidden string //nolint:unused
	}

	for _, tt := range []struct {
		name    string
		fields  []binding.Field
		wantErr string
	}{
		{name: "no name", fields: []binding.Field{{}}, wantErr: "has no name"},
		{name: "duplicate", fields: []binding.Field{{Name: "name"}, {Name: "name"}}, wantErr: "duplicate field"},
		{name: "unknown target", fields: []binding.Field{{Name: "nope"}}, wantErr: `no struct field "Nope"`},
		{name: "unexported", fields: []binding.Field{{Name: "hidden", Target: "hidden"}}, wantErr: "not exported"},
		{name: "kind mismatch", fields: []binding.Field{{Name: "age", Kind: binding.KindString}}, wantErr: "cannot hold kind string"},
		{name: "bad default", fields: []binding.Field{{Name: "age", Kind: binding.KindInt, Default: "x"}}, wantErr: "default"},
		{name: "required default", fields: []binding.Field{{Name: "age", Kind: binding.KindInt, Default: "1", Rules: []binding.Rule{binding.Required()}}}, wantErr: "cannot be required"},
		{name: "bad regex", fields: []binding.Field{{Name: "name", Rules: []binding.Rule{binding.Regex("(")}}}, wantErr: "rule regex"},
		{name: "bad range", fields: []binding.Field{{Name: "age", Kind: binding.KindInt, Rules: []binding.Rule{binding.Range(5, 1)}}}, wantErr: "invalid bounds"},
		{name: "unknown custom", fields: []binding.Field{{Name: "name", Rules: []binding.Rule{binding.Custom("nope")}}}, wantErr: "no rule registered"},
		{name: "unknown rule", fields: []binding.Field{{Name: "name", Rules: []binding.Rule{{Kind: "shiny"}}}}, wantErr: "unknown rule kind"},
		{name: "path list", fields: []binding.Field{{Name: "name", Source: binding.SourcePath, Kind: binding.KindStrings}}, wantErr: "cannot bind to a list"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := binding.Describe[T](tt.fields...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := binding.Describe[string]()
	require.ErrorContains(t, err, "must be a struct or map[string]any")
}

var numDerived atomic.Int64

type Signup struct {
	Email string
}

func (Signup) BindingFields() []binding.Field {
	numDerived.Add(1)
	return []binding.Field{{Name: "email", Source: binding.SourceBody, Rules: []binding.Rule{binding.Required(), binding.Email()}}}
}

func TestForCachesPerType(t *testing.T) {
	var wg sync.WaitGroup
	descs := make([]*binding.Descriptor, 32)
	for i := range descs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := binding.For[Signup]()
			assert.NoError(t, err)
			descs[i] = d
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), numDerived.Load())
	for _, d := range descs {
		require.Same(t, descs[0], d)
	}
	require.Equal(t, "email", descs[0].Fields()[0].Name)
}

func TestLoadFields(t *testing.T) {
	fields, err := binding.LoadFields(strings.NewReader(`
fields:
  - name: name
    source: body
    rules:
      - kind: required
  - name: age
    source: body
    kind: int
    rules:
      - kind: range
        args: ["18", "60"]
        message: "{field} out of range"
  - name: email
    source: body
    rules:
      - kind: email
`))
	require.NoError(t, err)
	require.Len(t, fields, 3)
	require.Equal(t, binding.SourceBody, fields[1].Source)
	require.Equal(t, binding.KindInt, fields[1].Kind)

	d, err := binding.Describe[User](fields...)
	require.NoError(t, err)

	u, notes, err := binding.Bind[User](jsonReq(`{"name":"","age":10,"email":"bad"}`), d)
	require.NoError(t, err)

	res := binding.Validate(u, notes, d)
	require.Equal(t, []string{"name", "age", "email"}, res.Fields())
	require.Equal(t, []string{"age out of range"}, res.Messages("age"))

	_, err = binding.LoadFields(strings.NewReader("fields:\n  - name: x\n    source: cookie\n"))
	require.ErrorContains(t, err, `unknown source "cookie"`)

	_, err = binding.LoadFields(strings.NewReader("fields:\n  - name: x\n    bogus: 1\n"))
	require.Error(t, err)
}

func TestValidateRejectsOtherTypes(t *testing.T) {
	d := binding.MustDescribe[User](userFields...)

	type other struct{ Name, Email string }
	require.PanicsWithValue(t, "binding: validate binding_test.other with a descriptor for binding_test.User", func() {
		binding.Validate(other{Email: "bad"}, nil, d)
	})
	require.Panics(t, func() { binding.Validate(nil, nil, d) })
	require.Panics(t, func() { binding.Validate((*User)(nil), nil, d) })

	require.NotPanics(t, func() {
		res := binding.Validate(&User{Name: "Alex", Age: 30, Email: "a@b.com"}, nil, d)
		require.True(t, res.IsValid())
	})
}
