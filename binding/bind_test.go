package binding_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type User struct {
	Name  string
	Age   int
	Email string
}

var userFields = []binding.Field{
	{Name: "name", Source: binding.SourceBody, Rules: []binding.Rule{binding.Required()}},
	{Name: "age", Source: binding.SourceBody, Kind: binding.KindInt, Rules: []binding.Rule{binding.Range(18, 60)}},
	{Name: "email", Source: binding.SourceBody, Rules: []binding.Rule{binding.Email()}},
}

func jsonReq(body string) *bpipe.Request {
	return bpipe.NewRequest(context.Background(), http.MethodPost, "/users", nil,
		http.Header{"Content-Type": {"application/json"}}, strings.NewReader(body))
}

func TestBindAndValidateExample(t *testing.T) {
	d, err := binding.Describe[User](userFields...)
	require.NoError(t, err)

	t.Run("invalid", func(t *testing.T) {
		u, notes, err := binding.Bind[User](jsonReq(`{ "name": "", "age": 10, "email": "bad" }`), d)
		require.NoError(t, err)
		require.Equal(t, User{Name: "", Age: 10, Email: "bad"}, u)

		res := binding.Validate(u, notes, d)
		require.False(t, res.IsValid())
		require.Equal(t, 3, res.Len())
		require.Equal(t, []string{"name", "age", "email"}, res.Fields())
		for _, f := range res.Fields() {
			require.NotEmpty(t, res.Messages(f))
		}

		assert.Equal(t, []string{"The name field is required."}, res.Messages("name"))
		assert.Equal(t, []string{"The field age must be between 18 and 60."}, res.Messages("age"))
		assert.Equal(t, []string{"The email field is not a valid e-mail address."}, res.Messages("email"))
	})

	t.Run("valid", func(t *testing.T) {
		u, notes, err := binding.Bind[User](jsonReq(`{ "name": "Alex", "age": 30, "email": "a@b.com" }`), d)
		require.NoError(t, err)
		require.Equal(t, User{Name: "Alex", Age: 30, Email: "a@b.com"}, u)

		res := binding.Validate(u, notes, d)
		require.True(t, res.IsValid())
		require.Equal(t, 0, res.Len())
		require.Empty(t, res.Fields())
	})
}

func TestBindConversionNotes(t *testing.T) {
	d, err := binding.Describe[User](userFields...)
	require.NoError(t, err)

	u, notes, err := binding.Bind[User](jsonReq(`{"name": 5, "age": "old", "email": "a@b.com"}`), d)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", u.Email)
	require.Len(t, notes, 2)
	require.Equal(t, binding.NoteInvalid, notes["name"].Kind)
	require.Equal(t, "old", notes["age"].Raw)

	res := binding.Validate(u, notes, d)
	require.Equal(t, []string{"name", "age"}, res.Fields())
	require.Equal(t, []string{
		"The value '5' is not valid for name.",
		"The name field is required.",
	}, res.Messages("name"))
	require.Equal(t, []string{
		"The value 'old' is not valid for age.",
		"The field age must be between 18 and 60.",
	}, res.Messages("age"))
}

func TestBindMissingAndDefaults(t *testing.T) {
	type Query struct {
		Page  int
		Limit *int
		Sort  string
		Tags  []string
	}

	d, err := binding.Describe[Query](
		binding.Field{Name: "page", Source: binding.SourceQuery, Kind: binding.KindInt, Default: "1"},
		binding.Field{Name: "limit", Source: binding.SourceQuery, Kind: binding.KindInt},
		binding.Field{Name: "sort", Source: binding.SourceQuery, Rules: []binding.Rule{binding.Required()}},
		binding.Field{Name: "tag", Target: "Tags", Source: binding.SourceQuery, Kind: binding.KindStrings},
	)
	require.NoError(t, err)

	r := bpipe.NewRequest(context.Background(), http.MethodGet, "/", url.Values{"tag": {"a", "b"}}, nil, nil)
	q, notes, err := binding.Bind[Query](r, d)
	require.NoError(t, err)
	require.Equal(t, 1, q.Page)
	require.Nil(t, q.Limit)
	require.Equal(t, []string{"a", "b"}, q.Tags)
	require.Equal(t, binding.Notes{"sort": {Kind: binding.NoteMissing}}, notes)

	res := binding.Validate(&q, notes, d)
	require.Equal(t, []string{"sort"}, res.Fields())

	r = bpipe.NewRequest(context.Background(), http.MethodGet, "/",
		url.Values{"page": {"3"}, "limit": {"20"}, "sort": {"name"}}, nil, nil)
	q, notes, err = binding.Bind[Query](r, d)
	require.NoError(t, err)
	require.Empty(t, notes)
	require.Equal(t, 3, q.Page)
	require.Equal(t, 20, *q.Limit)
}

func TestBindSources(t *testing.T) {
	type Input struct {
		ID      string
		Token   string
		City    string
		Comment string
		At      time.Time
		TTL     time.Duration
		Ratio   float64
		Active  bool
	}

	tbl := bpipe.NewTable()
	d, err := binding.Describe[Input](
		binding.Field{Name: "id", Target: "ID", Source: binding.SourcePath},
		binding.Field{Name: "token", Key: "X-Token", Source: binding.SourceHeader},
		binding.Field{Name: "city", Key: "address.city", Source: binding.SourceBody},
		binding.Field{Name: "at", Source: binding.SourceBody, Kind: binding.KindTime},
		binding.Field{Name: "ttl", Target: "TTL", Source: binding.SourceBody, Kind: binding.KindDuration},
		binding.Field{Name: "ratio", Source: binding.SourceBody, Kind: binding.KindFloat},
		binding.Field{Name: "active", Source: binding.SourceBody, Kind: binding.KindBool},
	)
	require.NoError(t, err)

	var got Input
	_, err = tbl.Register(http.MethodPut, "/things/{id}", bpipe.HandlerFunc(func(r *bpipe.Request) (*bpipe.Response, error) {
		in, notes, err := binding.Bind[Input](r, d)
		require.NoError(t, err)
		require.Empty(t, notes)
		got = in
		return bpipe.NewResponse(r, http.StatusNoContent), nil
	}))
	require.NoError(t, err)

	pipe, err := bpipe.Build(nil, tbl)
	require.NoError(t, err)

	r := bpipe.NewRequest(context.Background(), http.MethodPut, "/things/t1", nil,
		http.Header{"content-type": {"application/merge-patch+json"}, "x-token": {"secret"}},
		strings.NewReader(`{"address":{"city":"Utrecht"},"at":"2024-01-02T03:04:05Z","ttl":"90s","ratio":0.5,"active":true}`))
	resp, err := pipe.Execute(r)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.Status())

	require.Equal(t, Input{
		ID:     "t1",
		Token:  "secret",
		City:   "Utrecht",
		At:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		TTL:    90 * time.Second,
		Ratio:  0.5,
		Active: true,
	}, got)
}

func TestBindForm(t *testing.T) {
	type Login struct {
		User     string
		Remember bool
	}

	d, err := binding.Describe[Login](
		binding.Field{Name: "user", Source: binding.SourceForm},
		binding.Field{Name: "remember", Source: binding.SourceForm, Kind: binding.KindBool},
	)
	require.NoError(t, err)

	r := bpipe.NewRequest(context.Background(), http.MethodPost, "/login", nil,
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}, strings.NewReader("user=alex&remember=true"))
	l, notes, err := binding.Bind[Login](r, d)
	require.NoError(t, err)
	require.Empty(t, notes)
	require.Equal(t, Login{User: "alex", Remember: true}, l)
}

func TestBindBodyErrors(t *testing.T) {
	d, err := binding.Describe[User](userFields...)
	require.NoError(t, err)

	for _, tt := range []struct {
		name    string
		ctype   string
		body    string
		code    bpipe.Code
		wantErr string
	}{
		{name: "malformed", ctype: "application/json", body: `{"name": `, code: bpipe.CodeBadRequest, wantErr: "malformed JSON body"},
		{name: "not an object", ctype: "application/json", body: `[1,2]`, code: bpipe.CodeBadRequest, wantErr: "must be an object"},
		{name: "invalid utf-8", ctype: "application/json", body: "{\"name\":\"\xff\xfe\"}", code: bpipe.CodeBadRequest, wantErr: "not valid UTF-8"},
		{name: "content type", ctype: "text/plain", body: `{}`, code: bpipe.CodeUnsupportedMediaType, wantErr: "unsupported content type"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := bpipe.NewRequest(context.Background(), http.MethodPost, "/", nil,
				http.Header{"Content-Type": {tt.ctype}}, strings.NewReader(tt.body))

			_, notes, err := binding.Bind[User](r, d)
			require.Nil(t, notes)
			require.ErrorContains(t, err, tt.wantErr)
			require.Equal(t, tt.code, bpipe.CodeOf(err))

			var berr *binding.BindingError
			require.ErrorAs(t, err, &berr)
			require.Equal(t, binding.SourceBody, berr.Source)
		})
	}
}

func TestBindBodyParsedOnce(t *testing.T) {
	d, err := binding.Describe[User](userFields...)
	require.NoError(t, err)

	r := jsonReq(`{"name":"a","age":20,"email":"a@b.com"}`)
	u1, _, err := binding.Bind[User](r, d)
	require.NoError(t, err)

	m, err := binding.Describe[map[string]any](
		binding.Field{Name: "name", Source: binding.SourceBody},
		binding.Field{Name: "age", Source: binding.SourceBody, Kind: binding.KindInt},
	)
	require.NoError(t, err)

	u2, _, err := binding.Bind[map[string]any](r, m)
	require.NoError(t, err)
	require.Equal(t, "a", u1.Name)
	require.Equal(t, map[string]any{"name": "a", "age": int64(20)}, u2)
}

func TestBindOverflow(t *testing.T) {
	type Small struct{ N int8 }
	d, err := binding.Describe[Small](binding.Field{Name: "n", Source: binding.SourceQuery, Kind: binding.KindInt})
	require.NoError(t, err)

	r := bpipe.NewRequest(context.Background(), http.MethodGet, "/", url.Values{"n": {"300"}}, nil, nil)
	s, notes, err := binding.Bind[Small](r, d)
	require.NoError(t, err)
	require.Zero(t, s.N)
	require.Equal(t, binding.NoteInvalid, notes["n"].Kind)
}

func TestBindDescriptorMismatch(t *testing.T) {
	d, err := binding.Describe[User](userFields...)
	require.NoError(t, err)

	_, _, err = binding.Bind[map[string]any](jsonReq(`{}`), d)
	require.ErrorContains(t, err, "descriptor is for")
}
