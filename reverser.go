package bpipe

import (
	"github.com/advdv/bpipe/internal/pathpattern"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Name names a registered route so URLs can be built for it with [Table.Reverse].
func (t *Table) Name(name string, rt *Route) error {
	if t.sealed.Load() {
		return configErrorf("name %q: table is sealed", name)
	}
	if _, exists := t.names[name]; exists {
		return configErrorf("route with name %q already exists", name)
	}
	if rt.name != "" {
		return configErrorf("route %q is already named %q", rt.Pattern(), rt.name)
	}

	rt.name = name
	t.names[name] = rt

	return nil
}

// Reverse builds the path of the named route, substituting vals into its wildcards in order.
func (t *Table) Reverse(name string, vals ...string) (string, error) {
	rt, ok := t.names[name]
	if !ok {
		return "", errors.Newf("no route named: %q, got: %v", name, lo.Keys(t.names))
	}

	res, err := pathpattern.Build(rt.pattern, vals...)
	if err != nil {
		return "", errors.Wrap(err, "failed to build")
	}

	return res, nil
}
