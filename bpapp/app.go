package bpapp

import (
	"context"

	"github.com/advdv/bpipe"
	"github.com/aws/aws-sdk-go-v2/aws"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

type runtimeProviderParams[E Environment] struct {
	fx.In

	Env          E
	Mux          *Mux
	SecretReader SecretReader
	TracerProv   trace.TracerProvider
	Propagator   propagation.TextMapPropagator
}

// WithAWSClient registers an AWS SDK v2 client for dependency injection. Clients target
// AWS_REGION unless [ForRegion] is given:
//
//	bpapp.WithAWSClient(func(cfg aws.Config) *secretsmanager.Client {
//	    return secretsmanager.NewFromConfig(cfg)
//	})
func WithAWSClient[T any](factory func(aws.Config) T, opts ...ClientOption) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, AWSClientProvider(factory, opts...))
	}
}

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler replaces the readiness handler. The default answers 200 "ok".
func WithHealthHandler(h bpipe.HandlerFunc) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithInterceptors adds app-wide interceptors inside the built-in ones.
func WithInterceptors(ics ...bpipe.Interceptor) Option {
	return func(c *AppConfig) {
		c.Interceptors = append(c.Interceptors, ics...)
	}
}

// FxOptions returns the dependency graph of an app. The routing function can request any
// provided type and should at least accept *Mux.
func FxOptions[E Environment](routing any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return append([]fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewRegistry),
		fx.Provide(provideMetrics),
		fx.Provide(provideAWSConfig),
		fx.Provide(func(cfg aws.Config) (SecretReader, error) {
			return NewAWSSecretReader(cfg)
		}),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewMux),
		fx.Provide(NewServer),
		fx.Provide(func(p runtimeProviderParams[E]) *Runtime[E] {
			return NewRuntime(p.Env, p.Mux, RuntimeParams{
				SecretReader: p.SecretReader,
				Transport:    NewHTTPTransport(p.TracerProv, p.Propagator),
			})
		}),
		fx.Invoke(startServerHook),
		fx.Invoke(routing),
	}, cfg.FxOptions...)
}

// NewApp creates a batteries-included app with dependency injection.
//
//	bpapp.NewApp[Env](func(m *bpapp.Mux, h *Handlers) {
//	    m.HandleFunc("GET /items/{id}", h.GetItem, bpipe.WithName("get-item"))
//	},
//	    bpapp.WithFx(fx.Provide(NewHandlers)),
//	).Run()
func NewApp[E Environment](routing any, opts ...Option) *App {
	return &App{app: fx.New(FxOptions[E](routing, opts...)...)}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application and stops it when ctx is done.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}

// Err returns the error, if any, encountered while building the dependency graph.
func (a *App) Err() error {
	return a.app.Err()
}
