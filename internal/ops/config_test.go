package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/pkg/exception"
	"hearth/pkg/gateway"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"gateway": {
			"apiBase": "https://hearth.chat/api",
			"heartbeatInterval": "15s",
			"backoffBase": 500,
			"maxReconnectAttempts": 3
		},
		"postgres": {"host": "db", "database": "chat"},
		"metrics": {"addr": ":9090"},
		"notify": {"self": "u1", "focusMode": true}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://hearth.chat/api", cfg.Gateway.APIBase)
	assert.Equal(t, 15*time.Second, cfg.Gateway.HeartbeatInterval.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Gateway.BackoffBase.Std())
	assert.Equal(t, 3, cfg.Gateway.MaxReconnectAttempts)
	assert.True(t, cfg.Postgres.Enabled())
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "u1", cfg.Notify.Self)
	assert.True(t, cfg.Notify.FocusMode)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"gateway": {"apiBase": "https://hearth.chat/api", "heartbeatInterval": "15s"}}`)
	t.Setenv("HEARTH_TOKEN", "secret")
	t.Setenv("HEARTH_GATEWAY_API_BASE", "https://staging.hearth.chat/api")
	t.Setenv("HEARTH_GATEWAY_MAX_RECONNECT_ATTEMPTS", "7")
	t.Setenv("HEARTH_POSTGRES_DSN", "postgres://localhost/chat")
	t.Setenv("HEARTH_NOTIFY_MUTED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "https://staging.hearth.chat/api", cfg.Gateway.APIBase)
	assert.Equal(t, 15*time.Second, cfg.Gateway.HeartbeatInterval.Std())
	assert.Equal(t, 7, cfg.Gateway.MaxReconnectAttempts)
	assert.Equal(t, "postgres://localhost/chat", cfg.Postgres.Option().ConnString)
	assert.True(t, cfg.Notify.Muted)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("HEARTH_GATEWAY_ORIGIN", "https://app.hearth.chat")
	t.Setenv("HEARTH_GATEWAY_HEARTBEAT_INTERVAL", "45s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://app.hearth.chat", cfg.Gateway.Origin)
	assert.Equal(t, 45*time.Second, cfg.Gateway.HeartbeatInterval.Std())
	assert.False(t, cfg.Postgres.Enabled())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, exception.ErrConfigNotFound)

	_, err = Load(writeConfig(t, `{"gateway":`))
	assert.ErrorIs(t, err, exception.ErrConfigInvalid)

	_, err = Load(writeConfig(t, `{"gateway": {}}`))
	assert.ErrorIs(t, err, exception.ErrConfigInvalid)

	_, err = Load(writeConfig(t, `{"gateway": {"apiBase": "https://hearth.chat/api", "backoffJitter": 2}}`))
	assert.ErrorIs(t, err, exception.ErrConfigInvalid)

	t.Setenv("HEARTH_GATEWAY_HEARTBEAT_INTERVAL", "soon")
	_, err = Load(writeConfig(t, `{"gateway": {"apiBase": "https://hearth.chat/api"}}`))
	assert.ErrorIs(t, err, exception.ErrConfigInvalid)
}

func TestGatewayOption(t *testing.T) {
	cfg := Config{Gateway: GatewayConfig{
		APIBase:           "https://hearth.chat/api",
		HeartbeatInterval: Duration(10 * time.Second),
		BackoffBase:       Duration(2 * time.Second),
		BackoffFactor:     3,
	}}
	opt := cfg.GatewayOption(gateway.Handlers{}, nil)
	assert.Equal(t, "https://hearth.chat/api", opt.APIBase)
	assert.Equal(t, 10*time.Second, opt.HeartbeatInterval)
	assert.Equal(t, gateway.Backoff{Base: 2 * time.Second, Factor: 3}, opt.Backoff)
	assert.NotNil(t, opt.Dialer)
}
