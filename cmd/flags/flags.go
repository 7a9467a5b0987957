package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/waas-signing-service/api"
	"github.com/ruteri/waas-signing-service/common"
	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/custody"
	"github.com/ruteri/waas-signing-service/signing"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// ConfigureCustody reads the signing pipeline and expiry flags.
func ConfigureCustody(cCtx *cli.Context) *custody.Config {
	return &custody.Config{
		SignWorkers:     cCtx.Int(SignWorkersFlag.Name),
		ResultTTL:       cCtx.Duration(ResultTTLFlag.Name),
		NotificationTTL: cCtx.Duration(NotificationTTLFlag.Name),
		SweepInterval:   cCtx.Duration(SweepIntervalFlag.Name),
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	EnvVars: []string{"LISTEN_ADDR"},
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
}

var AccountsFileFlag = &cli.StringFlag{
	Name:    "accounts-file",
	EnvVars: []string{"ACCOUNTS_FILE"},
	Usage:   "JSON file with the user accounts ([{user_id, username, password_hash}]); the two built-in demo accounts are used if empty",
}

var SignDelayFlag = &cli.DurationFlag{
	Name:    "sign-delay",
	EnvVars: []string{"SIGN_DELAY"},
	Value:   cryptoutils.DefaultSignDelay,
	Usage:   "artificial latency of every signature",
}

var SignWorkersFlag = &cli.IntFlag{
	Name:    "sign-workers",
	EnvVars: []string{"SIGN_WORKERS"},
	Value:   signing.DefaultWorkers,
	Usage:   "maximum number of signatures computed concurrently",
}

var SessionTTLFlag = &cli.DurationFlag{
	Name:    "session-ttl",
	EnvVars: []string{"SESSION_TTL"},
	Value:   0,
	Usage:   "lifetime of a login session, 0 keeps sessions until logout",
}

var ResultTTLFlag = &cli.DurationFlag{
	Name:    "result-ttl",
	EnvVars: []string{"RESULT_TTL"},
	Value:   0,
	Usage:   "how long an uncollected signature is kept, 0 keeps it until retrieved",
}

var NotificationTTLFlag = &cli.DurationFlag{
	Name:    "notification-ttl",
	EnvVars: []string{"NOTIFICATION_TTL"},
	Value:   0,
	Usage:   "how long an undelivered sign event is kept, 0 keeps it until delivered",
}

var SweepIntervalFlag = &cli.DurationFlag{
	Name:    "sweep-interval",
	EnvVars: []string{"SWEEP_INTERVAL"},
	Value:   time.Minute,
	Usage:   "how often expired sessions, signatures and events are dropped",
}

var SecureCookieFlag = &cli.BoolFlag{
	Name:    "secure-cookie",
	EnvVars: []string{"SECURE_COOKIE"},
	Value:   false,
	Usage:   "mark the session cookie Secure (serve behind TLS)",
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	EnvVars: []string{"CUSTODY_SERVER_ADDR"},
	Value:   "http://127.0.0.1:8080",
	Usage:   "signing service address to request",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	EnvVars: []string{"METRICS_ADDR"},
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var CustodyFlags = []cli.Flag{
	ListenAddrFlag,
	AccountsFileFlag,
	SignDelayFlag,
	SignWorkersFlag,
	SessionTTLFlag,
	ResultTTLFlag,
	NotificationTTLFlag,
	SweepIntervalFlag,
	SecureCookieFlag,
}
