package ops

import (
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kelseyhightower/envconfig"
	"github.com/yanun0323/errors"

	"hearth/pkg/conn"
	"hearth/pkg/exception"
	"hearth/pkg/gateway"
)

// EnvPrefix prefixes every environment override, e.g. HEARTH_GATEWAY_API_BASE.
const EnvPrefix = "HEARTH"

// Config mirrors the JSON config layout. Every field can be overridden from the environment.
type Config struct {
	// Token is only read from the environment.
	Token     string          `json:"-"`
	Gateway   GatewayConfig   `json:"gateway"`
	Postgres  PostgresConfig  `json:"postgres"`
	Metrics   MetricsConfig   `json:"metrics"`
	Profiling ProfilingConfig `json:"profiling"`
	Notify    NotifyConfig    `json:"notify"`
}

// GatewayConfig configures the gateway client. Zero values fall back to the client defaults.
type GatewayConfig struct {
	APIBase     string `json:"apiBase" split_words:"true"`
	Origin      string `json:"origin"`
	RESTPrefix  string `json:"restPrefix" split_words:"true"`
	GatewayPath string `json:"gatewayPath" split_words:"true"`
	TokenParam  string `json:"tokenParam" split_words:"true"`

	HeartbeatInterval    Duration `json:"heartbeatInterval" split_words:"true"`
	MaxReconnectAttempts int      `json:"maxReconnectAttempts" split_words:"true"`
	BackoffBase          Duration `json:"backoffBase" split_words:"true"`
	BackoffMax           Duration `json:"backoffMax" split_words:"true"`
	BackoffFactor        float64  `json:"backoffFactor" split_words:"true"`
	BackoffJitter        float64  `json:"backoffJitter" split_words:"true"`

	HandshakeTimeout Duration `json:"handshakeTimeout" split_words:"true"`
	WriteTimeout     Duration `json:"writeTimeout" split_words:"true"`
	ReadLimit        int64    `json:"readLimit" split_words:"true"`
}

// PostgresConfig enables the postgres message store when DSN or Host is set.
type PostgresConfig struct {
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Database     string `json:"database"`
	SSLMode      string `json:"sslMode" split_words:"true"`
	MaxOpenConns int    `json:"maxOpenConns" split_words:"true"`
	Verbose      bool   `json:"verbose"`
}

// MetricsConfig exposes /metrics on Addr when set.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// ProfilingConfig starts continuous profiling when ServerAddress is set.
type ProfilingConfig struct {
	ServerAddress   string `json:"serverAddress" split_words:"true"`
	ApplicationName string `json:"applicationName" split_words:"true"`
}

type NotifyConfig struct {
	Self      string `json:"self"`
	Muted     bool   `json:"muted"`
	FocusMode bool   `json:"focusMode" split_words:"true"`
}

// Load reads the JSON config file at path, when given, and applies environment overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return Config{}, errors.Wrap(exception.ErrConfigNotFound, "read config").With("path", path)
		}
		if err != nil {
			return Config{}, errors.Wrap(err, "read config").With("path", path)
		}
		if err := sonic.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(exception.ErrConfigInvalid, "decode config").With("path", path).With("err", err.Error())
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(exception.ErrConfigInvalid, "environment override").With("err", err.Error())
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	g := cfg.Gateway
	if g.APIBase == "" && g.Origin == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "gateway.apiBase or gateway.origin is required")
	}
	if g.HeartbeatInterval < 0 || g.BackoffBase < 0 || g.BackoffMax < 0 || g.HandshakeTimeout < 0 || g.WriteTimeout < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "durations must be >= 0")
	}
	if g.MaxReconnectAttempts < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "gateway.maxReconnectAttempts must be >= 0")
	}
	if g.BackoffJitter < 0 || g.BackoffJitter > 1 {
		return errors.Wrap(exception.ErrConfigInvalid, "gateway.backoffJitter must be within [0, 1]").With("jitter", g.BackoffJitter)
	}
	return nil
}

// GatewayOption converts the config into client options. Collaborators are supplied by the caller.
func (cfg Config) GatewayOption(handlers gateway.Handlers, observer gateway.Observer) gateway.Option {
	g := cfg.Gateway
	return gateway.Option{
		APIBase:              g.APIBase,
		Origin:               g.Origin,
		RESTPrefix:           g.RESTPrefix,
		GatewayPath:          g.GatewayPath,
		TokenParam:           g.TokenParam,
		HeartbeatInterval:    g.HeartbeatInterval.Std(),
		MaxReconnectAttempts: g.MaxReconnectAttempts,
		Backoff: gateway.Backoff{
			Base:   g.BackoffBase.Std(),
			Max:    g.BackoffMax.Std(),
			Factor: g.BackoffFactor,
			Jitter: g.BackoffJitter,
		},
		Dialer: gateway.NewDialer(gateway.DialerOption{
			HandshakeTimeout: g.HandshakeTimeout.Std(),
			WriteTimeout:     g.WriteTimeout.Std(),
			ReadLimit:        g.ReadLimit,
		}),
		Handlers: handlers,
		Observer: observer,
	}
}

// Enabled reports whether a postgres store is configured.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != "" || p.Host != ""
}

func (p PostgresConfig) Option() conn.Option {
	return conn.Option{
		ConnString:   p.DSN,
		Host:         p.Host,
		Port:         p.Port,
		User:         p.User,
		Password:     p.Password,
		Database:     p.Database,
		SSLMode:      p.SSLMode,
		MaxOpenConns: p.MaxOpenConns,
		Verbose:      p.Verbose,
		Params:       map[string]string{"application_name": "hearth-gateway"},
	}
}

// Duration accepts "30s" style strings in JSON and the environment, and plain numbers as
// milliseconds in JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		return d.Decode(s)
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.Wrap(err, "parse duration").With("value", string(data))
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, "parse duration").With("value", value)
	}
	*d = Duration(parsed)
	return nil
}
