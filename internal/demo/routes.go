// Package demo is a small users and items API used by the bpipe command and its tests.
package demo

import (
	"bytes"
	_ "embed"
	"net/http"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/binding"
	"github.com/cockroachdb/errors"
)

// UserHeader identifies the caller for GET /users/me.
const UserHeader = "X-User-ID"

//go:embed users.yaml
var usersYAML []byte

// NewUser is the body of POST /users. Its fields are declared in users.yaml.
type NewUser struct {
	Name  string
	Age   int
	Email string
}

// ItemInput is the body of POST /items.
type ItemInput struct {
	Name  string
	Price float64
	Tags  []string
}

func (ItemInput) BindingFields() []binding.Field {
	return []binding.Field{
		{Name: "name", Source: binding.SourceBody, Rules: []binding.Rule{binding.Required(), binding.MaxLength(64)}},
		{Name: "price", Source: binding.SourceBody, Kind: binding.KindFloat, Rules: []binding.Rule{binding.Range(0, 1_000_000)}},
		{Name: "tags", Source: binding.SourceBody, Kind: binding.KindStrings, Rules: []binding.Rule{binding.MaxLength(5)}},
	}
}

// ListQuery pages through items.
type ListQuery struct {
	Page  int
	Limit int
}

var listFields = binding.MustDescribe[ListQuery](
	binding.Field{Name: "page", Source: binding.SourceQuery, Kind: binding.KindInt, Default: "1",
		Rules: []binding.Rule{binding.Range(1, 10_000)}},
	binding.Field{Name: "limit", Source: binding.SourceQuery, Kind: binding.KindInt, Default: "20",
		Rules: []binding.Rule{binding.Range(1, 100)}},
)

// Option configures the demo routes.
type Option func(*config)

type config struct {
	admin []bpipe.Interceptor
}

// WithAdmin guards the destructive routes with the given interceptors.
func WithAdmin(ics ...bpipe.Interceptor) Option {
	return func(c *config) { c.admin = append(c.admin, ics...) }
}

// Register adds the demo routes to mux.
func Register(mux *bpipe.ServeMux, s *Store, opts ...Option) error {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	fields, err := binding.LoadFields(bytes.NewReader(usersYAML))
	if err != nil {
		return errors.Wrap(err, "load user fields")
	}
	userFields, err := binding.Describe[NewUser](fields...)
	if err != nil {
		return errors.Wrap(err, "describe user fields")
	}
	itemFields, err := binding.For[ItemInput]()
	if err != nil {
		return errors.Wrap(err, "describe item fields")
	}

	h := &handlers{store: s, reverse: mux.Reverse}

	mux.Handle("GET /items", binding.HandleResult(listFields, h.listItems))
	mux.HandleFunc("GET /items/{id}", h.getItem, bpipe.WithName("get-item"))
	mux.HandleFunc("POST /items", h.createItem, bpipe.WithInterceptors(binding.Gate[ItemInput](itemFields)))
	mux.HandleFunc("DELETE /items/{id}", h.deleteItem, bpipe.WithInterceptors(cfg.admin...))

	mux.HandleFunc("GET /users/me", h.me)
	mux.HandleFunc("GET /users/{id}", h.getUser, bpipe.WithName("get-user"))
	mux.Handle("POST /users", binding.Handle(userFields, h.createUser))

	return nil
}

type handlers struct {
	store   *Store
	reverse func(name string, vals ...string) (string, error)
}

func (h *handlers) listItems(r *bpipe.Request, q ListQuery, res binding.Result) (*bpipe.Response, error) {
	if !res.IsValid() {
		return binding.Problem(r, res)
	}
	return bpipe.JSON(r, http.StatusOK, h.store.Items(q.Page, q.Limit))
}

func (h *handlers) getItem(r *bpipe.Request) (*bpipe.Response, error) {
	it, err := h.store.Item(r.Param("id"))
	if err != nil {
		return nil, err
	}
	return bpipe.JSON(r, http.StatusOK, it)
}

func (h *handlers) createItem(r *bpipe.Request) (*bpipe.Response, error) {
	in, ok := binding.Input[ItemInput](r)
	if !ok {
		return nil, errors.New("no item input in request")
	}

	it := h.store.AddItem(Item{Name: in.Name, Price: in.Price, Tags: in.Tags})
	return h.created(r, "get-item", it.ID, it)
}

func (h *handlers) deleteItem(r *bpipe.Request) (*bpipe.Response, error) {
	if err := h.store.DeleteItem(r.Param("id")); err != nil {
		return nil, err
	}
	return bpipe.NewResponse(r, http.StatusNoContent), nil
}

func (h *handlers) me(r *bpipe.Request) (*bpipe.Response, error) {
	id := r.Header().Get(UserHeader)
	if id == "" {
		return nil, bpipe.NewError(bpipe.CodeUnauthorized, errors.Newf("missing %s header", UserHeader))
	}

	u, err := h.store.User(id)
	if err != nil {
		return nil, err
	}
	return bpipe.JSON(r, http.StatusOK, u)
}

func (h *handlers) getUser(r *bpipe.Request) (*bpipe.Response, error) {
	u, err := h.store.User(r.Param("id"))
	if err != nil {
		return nil, err
	}
	return bpipe.JSON(r, http.StatusOK, u)
}

func (h *handlers) createUser(r *bpipe.Request, in NewUser) (*bpipe.Response, error) {
	u := h.store.AddUser(User{Name: in.Name, Age: in.Age, Email: in.Email})
	return h.created(r, "get-user", u.ID, u)
}

func (h *handlers) created(r *bpipe.Request, route, id string, v any) (*bpipe.Response, error) {
	loc, err := h.reverse(route, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reverse %s", route)
	}

	resp, err := bpipe.JSON(r, http.StatusCreated, v)
	if err != nil {
		return nil, err
	}
	if err := resp.SetHeader("Location", loc); err != nil {
		return nil, err
	}
	return resp, nil
}
