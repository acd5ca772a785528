package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"QTB_PORT", "QTB_LOG_LEVEL", "QTB_LOG_PRETTY", "QTB_LOG_FILE",
		"QTB_DEFAULT_SHOTS", "QTB_MAX_SHOTS", "QTB_MAX_QUBITS",
		"QTB_CIRCUIT_TTL", "QTB_REQUEST_TIMEOUT", "QTB_SIM_WORKERS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, 1024, cfg.DefaultShots)
	assert.Equal(t, 100000, cfg.MaxShots)
	assert.Equal(t, 12, cfg.MaxQubits)
	assert.Equal(t, 30*time.Minute, cfg.CircuitTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.SimWorkers)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("QTB_PORT", "9090")
	t.Setenv("QTB_LOG_LEVEL", "debug")
	t.Setenv("QTB_LOG_PRETTY", "false")
	t.Setenv("QTB_MAX_QUBITS", "8")
	t.Setenv("QTB_CIRCUIT_TTL", "5m")
	t.Setenv("QTB_SIM_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, 8, cfg.MaxQubits)
	assert.Equal(t, 5*time.Minute, cfg.CircuitTTL)
	assert.Equal(t, 3, cfg.SimWorkers)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("QTB_PORT", "not-a-port")
	t.Setenv("QTB_CIRCUIT_TTL", "forever")
	t.Setenv("QTB_LOG_PRETTY", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.CircuitTTL)
	assert.True(t, cfg.LogPretty)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:           8080,
			DefaultShots:   1024,
			MaxShots:       4096,
			MaxQubits:      12,
			CircuitTTL:     time.Minute,
			RequestTimeout: time.Second,
			SimWorkers:     1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"port":          func(c *Config) { c.Port = 70000 },
		"default shots": func(c *Config) { c.DefaultShots = 0 },
		"max shots":     func(c *Config) { c.MaxShots = 10 },
		"qubits":        func(c *Config) { c.MaxQubits = 40 },
		"ttl":           func(c *Config) { c.CircuitTTL = 0 },
		"timeout":       func(c *Config) { c.RequestTimeout = -time.Second },
		"workers":       func(c *Config) { c.SimWorkers = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_RejectsInvalidLimits(t *testing.T) {
	t.Setenv("QTB_DEFAULT_SHOTS", "5000")
	t.Setenv("QTB_MAX_SHOTS", "100")

	_, err := Load()
	assert.Error(t, err)
}
