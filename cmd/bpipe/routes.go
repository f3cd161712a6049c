package main

import (
	"strconv"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/bpapp"
	"github.com/advdv/bpipe/interceptor"
	"github.com/advdv/bpipe/internal/demo"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// RoutesCmd prints the demo route table.
type RoutesCmd struct{}

// Run registers the demo routes on an empty mux and prints them in registration order.
func (c *RoutesCmd) Run(rc *runContext) error {
	mux := bpipe.NewServeMux()
	if err := registerDemo(mux, interceptor.APIKey(bpapp.APIKeyHeader, interceptor.StaticKey(""))); err != nil {
		return err
	}

	rows := lo.Map(mux.Routes(), func(rt *bpipe.Route, _ int) []string {
		return []string{
			lo.Ternary(rt.Method() == "", "ANY", rt.Method()),
			rt.Pattern(),
			rt.Name(),
			strconv.Itoa(rt.NumInterceptors()),
		}
	})

	if err := renderTable([]string{"METHOD", "PATTERN", "NAME", "INTERCEPTORS"}, rows, rc.stdout); err != nil {
		return errors.Wrap(err, "render route table")
	}
	return nil
}

// registerDemo adds the demo routes backed by a fresh store. A nil admin leaves deletes open.
func registerDemo(mux *bpipe.ServeMux, admin bpipe.Interceptor) error {
	var opts []demo.Option
	if admin != nil {
		opts = append(opts, demo.WithAdmin(admin))
	}

	return demo.Register(mux, demo.NewStore(), opts...)
}
