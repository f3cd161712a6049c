// Package bpapptest provides test helpers for bpapp applications.
//
// It constructs the identical DI graph as [bpapp.NewApp] but uses [fxtest.App] which fails
// the test immediately on DI errors.
//
//	bpapptest.SetBaseEnv(t, 18081)
//	app := bpapptest.New[TestEnv](t, routing)
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package bpapptest

import (
	"testing"

	"github.com/advdv/bpipe/bpapp"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing bpapp applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [bpapp.NewApp].
func New[E bpapp.Environment](t testing.TB, routing any, opts ...bpapp.Option) *App {
	return &App{App: fxtest.New(t, bpapp.FxOptions[E](routing, opts...)...)}
}
