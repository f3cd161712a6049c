package bpapp

import (
	"time"

	iie "github.com/MawKKe/integer-interval-expressions-go"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap/zapcore"
)

// FaultStatusCodes are the codes a pipeline fails with on its own: 500 for faults and 504 for
// exceeded deadlines. AWS_LWA_ERROR_STATUS_CODES must cover them.
var FaultStatusCodes = []int{500, 504}

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	base() BaseEnvironment
}

// BaseEnvironment contains the variables every app reads. Embed this in your custom
// environment struct.
type BaseEnvironment struct {
	Port               int           `env:"BP_PORT,required"`
	ServiceName        string        `env:"BP_SERVICE_NAME,required"`
	ReadinessCheckPath string        `env:"BP_READINESS_CHECK_PATH" envDefault:"/healthz"`
	MetricsPath        string        `env:"BP_METRICS_PATH" envDefault:"/metrics"`
	LogLevel           zapcore.Level `env:"BP_LOG_LEVEL" envDefault:"info"`
	OtelExporter       string        `env:"BP_OTEL_EXPORTER" envDefault:"stdout"`
	RequestTimeout     time.Duration `env:"BP_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes       int64         `env:"BP_MAX_BODY_BYTES" envDefault:"4194304"`
	RateLimitRPS       float64       `env:"BP_RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst     int           `env:"BP_RATE_LIMIT_BURST" envDefault:"20"`
	H2C                bool          `env:"BP_H2C" envDefault:"false"`
	AWSRegion          string        `env:"AWS_REGION"`
	// GatewayAccessLogGroup is added to the trace resource so X-Ray can correlate the
	// gateway's access logs.
	GatewayAccessLogGroup string `env:"BP_GATEWAY_ACCESS_LOG_GROUP"`
	// LWAErrorStatusCodes tells Lambda Web Adapter which responses count as invocation
	// errors. Required when running on Lambda.
	LWAErrorStatusCodes string `env:"AWS_LWA_ERROR_STATUS_CODES"`
	LambdaFunctionName  string `env:"AWS_LAMBDA_FUNCTION_NAME"`
}

func (e BaseEnvironment) base() BaseEnvironment { return e }

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}

		b := e.base()
		switch b.OtelExporter {
		case "stdout", "xrayudp", "none":
		default:
			return e, errors.Errorf("unsupported BP_OTEL_EXPORTER: %q (supported: stdout, xrayudp, none)", b.OtelExporter)
		}
		if b.RequestTimeout <= 0 {
			return e, errors.Errorf("BP_REQUEST_TIMEOUT must be positive, got %s", b.RequestTimeout)
		}

		switch {
		case b.LWAErrorStatusCodes != "":
			if err := ValidateErrorStatusCodes(b.LWAErrorStatusCodes, FaultStatusCodes...); err != nil {
				return e, err
			}
		case b.LambdaFunctionName != "":
			return e, errors.New("AWS_LWA_ERROR_STATUS_CODES is required on Lambda (recommended value: \"500-599\")")
		}

		return e, nil
	}
}

// ValidateErrorStatusCodes checks that an interval expression such as "500,502-504" matches
// every required status code.
func ValidateErrorStatusCodes(expr string, required ...int) error {
	parsed, err := iie.ParseExpression(expr)
	if err != nil {
		return errors.Wrapf(err, "failed to parse AWS_LWA_ERROR_STATUS_CODES %q", expr)
	}

	missing := lo.Reject(required, func(code int, _ int) bool { return parsed.Matches(code) })
	if len(missing) > 0 {
		return errors.Newf("AWS_LWA_ERROR_STATUS_CODES %q does not cover the fault status codes (missing: %v, recommended value: %q)",
			expr, missing, "500-599")
	}

	return nil
}
