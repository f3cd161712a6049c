package bpapp

import (
	"context"
	"net/http"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/interceptor"
	"github.com/carlmjohnson/requests"
)

// APIKeyHeader is the header [Runtime.RequireAPIKey] checks.
const APIKeyHeader = "X-Api-Key"

// Runtime provides access to app-scoped dependencies. Inject it into handler constructors via
// fx instead of pulling from the request.
//
//	type Handlers struct{ rt *bpapp.Runtime[Env] }
//
//	func (h *Handlers) GetItem(r *bpipe.Request) (*bpipe.Response, error) {
//	    self, err := h.rt.Reverse("get-item", r.Param("id"))
//	    // ...
//	}
type Runtime[E Environment] struct {
	env       E
	mux       *Mux
	secrets   SecretReader
	transport http.RoundTripper
}

// RuntimeParams holds optional dependencies for Runtime.
type RuntimeParams struct {
	SecretReader SecretReader
	Transport    http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, mux *Mux, params RuntimeParams) *Runtime[E] {
	if params.Transport == nil {
		params.Transport = http.DefaultTransport
	}

	return &Runtime[E]{
		env:       env,
		mux:       mux,
		secrets:   params.SecretReader,
		transport: params.Transport,
	}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Reverse returns the URL for a named route with the given parameters.
func (r *Runtime[E]) Reverse(name string, params ...string) (string, error) {
	return r.mux.Reverse(name, params...)
}

// Secret reads a secret from AWS Secrets Manager. When jsonPath is not empty the secret is
// parsed as JSON and the value at the gjson path is returned. Secrets are cached but read per
// call, so rotation needs no redeployment.
func (r *Runtime[E]) Secret(ctx context.Context, secretID, jsonPath string) (string, error) {
	return ReadSecret(ctx, r.secrets, secretID, jsonPath)
}

// RequireAPIKey is a route interceptor checking the X-Api-Key header against a secret.
func (r *Runtime[E]) RequireAPIKey(secretID, jsonPath string) bpipe.Interceptor {
	return interceptor.APIKey(APIKeyHeader, SecretKeySource(r.secrets, secretID, jsonPath))
}

// NewRequest starts an outbound request whose spans join the current trace.
//
//	var out Item
//	err := h.rt.NewRequest("https://example.com/items").Path(id).ToJSON(&out).Fetch(r.Context())
func (r *Runtime[E]) NewRequest(baseURL string) *requests.Builder {
	return newRequestBuilder(r.transport).BaseURL(baseURL)
}
