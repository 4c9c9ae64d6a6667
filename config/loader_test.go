// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// 验证 Voice 默认值
	assert.Equal(t, "ko", cfg.Voice.Locale)
	assert.Equal(t, 16000, cfg.Voice.SampleRate)
	assert.Equal(t, 1.0, cfg.Voice.Speed)
	assert.Equal(t, 20, cfg.Voice.LogCapacity)
	assert.Contains(t, cfg.Voice.PromptTemplate, "{query}")

	// 验证 Database 默认值
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "kiosk.db", cfg.Database.Name)

	// 验证 Log 默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "ko", cfg.Voice.Locale)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kiosk.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

voice:
  locale: en
  speed: 1.2
  playback_padding: 50ms

engines:
  llm:
    base_url: "http://127.0.0.1:8081"
    max_tokens: 32
    breaker_threshold: -1
  vad:
    threshold: 0.05

redis:
  enabled: true
  addr: "redis.example.com:6379"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)

	assert.Equal(t, "en", cfg.Voice.Locale)
	assert.Equal(t, 1.2, cfg.Voice.Speed)
	assert.Equal(t, 50*time.Millisecond, cfg.Voice.PlaybackPadding)
	// YAML 未覆盖的字段保留默认值
	assert.Equal(t, 16000, cfg.Voice.SampleRate)

	assert.Equal(t, "http://127.0.0.1:8081", cfg.Engines.LLM.BaseURL)
	assert.Equal(t, 32, cfg.Engines.LLM.MaxTokens)
	assert.Equal(t, -1, cfg.Engines.LLM.BreakerThreshold)
	assert.Equal(t, 0.05, cfg.Engines.VAD.Threshold)
	assert.Equal(t, 512, cfg.Engines.VAD.FrameSize)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("KIOSK_SERVER_HTTP_PORT", "7777")
	t.Setenv("KIOSK_VOICE_LOCALE", "en")
	t.Setenv("KIOSK_VOICE_SPEED", "0.9")
	t.Setenv("KIOSK_ENGINES_TTS_BASE_URL", "http://tts.local")
	t.Setenv("KIOSK_ENGINES_TTS_TIMEOUT", "3s")
	t.Setenv("KIOSK_ENGINES_TTS_BREAKER_RESET", "10s")
	t.Setenv("KIOSK_SERVER_CORS_ALLOWED_ORIGINS", "http://a, http://b")
	t.Setenv("KIOSK_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "en", cfg.Voice.Locale)
	assert.Equal(t, 0.9, cfg.Voice.Speed)
	assert.Equal(t, "http://tts.local", cfg.Engines.TTS.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Engines.TTS.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Engines.TTS.BreakerReset)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "kiosk.yaml")

	yamlContent := `
server:
  http_port: 8888
voice:
  locale: en
  speaker_id: 3
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("KIOSK_SERVER_HTTP_PORT", "9999")
	t.Setenv("KIOSK_VOICE_LOCALE", "ko")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "ko", cfg.Voice.Locale)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, 3, cfg.Voice.SpeakerID)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYKIOSK_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().
		WithEnvPrefix("MYKIOSK").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("KIOSK_VOICE_LOCALE", "fr")

	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	assert.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("KIOSK_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KIOSK_SERVER_HTTP_PORT")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/kiosk.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid HTTP port",
			modify:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: true,
		},
		{
			name:    "unsupported driver",
			modify:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: true,
		},
		{
			name:    "unsupported locale",
			modify:  func(c *Config) { c.Voice.Locale = "ja" },
			wantErr: true,
		},
		{
			name:    "zero speed",
			modify:  func(c *Config) { c.Voice.Speed = 0 },
			wantErr: true,
		},
		{
			name:    "prompt without placeholder",
			modify:  func(c *Config) { c.Voice.PromptTemplate = "Query:" },
			wantErr: true,
		},
		{
			name: "reporter enabled without url",
			modify: func(c *Config) {
				c.Reporter.Enabled = true
				c.Reporter.BaseURL = ""
			},
			wantErr: true,
		},
		{
			name:    "sqlite3 driver accepted",
			modify:  func(c *Config) { c.Database.Driver = "sqlite3" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "kiosk",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=kiosk sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "kiosk",
			},
			expected: "user:pass@tcp(localhost:3306)/kiosk?parseTime=true",
		},
		{
			name: "postgres DSN quotes password",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "db",
				Port:     5432,
				User:     "kiosk",
				Password: "it's secret",
				Name:     "answers",
			},
			expected: `host=db port=5432 user=kiosk password='it\'s secret' dbname=answers sslmode=''`,
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/var/lib/kiosk/kiosk.db"},
			expected: "/var/lib/kiosk/kiosk.db",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}
