// =============================================================================
// 📦 Kiosk 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("kiosk.yaml").
//	    WithEnvPrefix("KIOSK").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 kiosk 守护进程的完整配置结构
type Config struct {
	// Server 本地 HTTP 控制面配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Database 应答库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 应答缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Voice 对话编排配置
	Voice VoiceConfig `yaml:"voice" env:"VOICE"`

	// Engines 语音/语言引擎配置
	Engines EnginesConfig `yaml:"engines" env:"ENGINES"`

	// Reporter 对话遥测上报配置
	Reporter ReporterConfig `yaml:"reporter" env:"REPORTER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// API Key 列表，空表示不校验
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 是否允许通过 query 参数传递 API Key
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// 管理端点 JWT 密钥，空表示管理端点关闭
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每客户端每秒请求数
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, sqlite3, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时自动执行迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用应答缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 应答缓存 TTL
	AnswerTTL time.Duration `yaml:"answer_ttl" env:"ANSWER_TTL"`
}

// VoiceConfig 对话编排配置
type VoiceConfig struct {
	// 应答语言: ko, en
	Locale string `yaml:"locale" env:"LOCALE"`
	// 麦克风采样率
	SampleRate int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// TTS 说话人
	SpeakerID int `yaml:"speaker_id" env:"SPEAKER_ID"`
	// TTS 语速
	Speed float64 `yaml:"speed" env:"SPEED"`
	// 每段播放后的额外等待
	PlaybackPadding time.Duration `yaml:"playback_padding" env:"PLAYBACK_PADDING"`
	// LLM 提示词模板，{query} 为占位符
	PromptTemplate string `yaml:"prompt_template" env:"PROMPT_TEMPLATE"`
	// 对话日志保留条数
	LogCapacity int `yaml:"log_capacity" env:"LOG_CAPACITY"`
}

// EnginesConfig 引擎配置
type EnginesConfig struct {
	LLM EngineConfig `yaml:"llm" env:"LLM"`
	STT EngineConfig `yaml:"stt" env:"STT"`
	TTS EngineConfig `yaml:"tts" env:"TTS"`
	VAD VADConfig    `yaml:"vad" env:"VAD"`
}

// EngineConfig 单个 HTTP 引擎配置
type EngineConfig struct {
	// 基础 URL，空表示该能力不可用
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 请求超时，0 表示不设超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大 Token 数（仅 LLM）
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 额外信任的 CA 证书（PEM），用于自签证书的局域网引擎
	CAFile string `yaml:"ca_file" env:"CA_FILE"`
	// 熔断：连续失败次数阈值，0 使用默认值，负数关闭
	BreakerThreshold int `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	// 熔断打开后多久放行探测请求，0 使用默认值
	BreakerReset time.Duration `yaml:"breaker_reset" env:"BREAKER_RESET"`
}

// VADConfig 能量阈值 VAD 配置
type VADConfig struct {
	// RMS 阈值
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
	// 帧长度（采样点）
	FrameSize int `yaml:"frame_size" env:"FRAME_SIZE"`
	// 静音多少帧后判定语音结束
	HangoverFrames int `yaml:"hangover_frames" env:"HANGOVER_FRAMES"`
	// 预录帧数
	PreRollFrames int `yaml:"pre_roll_frames" env:"PRE_ROLL_FRAMES"`
	// 麦克风采集命令，输出 16bit 单声道 PCM
	CaptureCommand []string `yaml:"capture_command" env:"CAPTURE_COMMAND"`
	// 播放命令，从 stdin 读取 float32 PCM
	PlaybackCommand []string `yaml:"playback_command" env:"PLAYBACK_COMMAND"`
}

// ReporterConfig 遥测上报配置
type ReporterConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 收集端基础 URL（以 / 结尾）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 并发 worker 数
	Workers int `yaml:"workers" env:"WORKERS"`
	// 队列长度
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "KIOSK",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 校验与连接串
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	switch c.Voice.Locale {
	case "ko", "en":
	default:
		errs = append(errs, fmt.Sprintf("unsupported locale %q", c.Voice.Locale))
	}
	if c.Voice.SampleRate <= 0 {
		errs = append(errs, "sample_rate must be positive")
	}
	if c.Voice.Speed <= 0 {
		errs = append(errs, "speed must be positive")
	}
	if c.Voice.LogCapacity <= 0 {
		errs = append(errs, "log_capacity must be positive")
	}
	if !strings.Contains(c.Voice.PromptTemplate, "{query}") {
		errs = append(errs, "prompt_template must contain {query}")
	}

	if c.Reporter.Enabled && c.Reporter.BaseURL == "" {
		errs = append(errs, "reporter base_url is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回 GORM 使用的连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pgQuote(d.Host), d.Port, pgQuote(d.User), pgQuote(d.Password), pgQuote(d.Name), pgQuote(d.SSLMode))
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite", "sqlite3":
		return d.Name
	default:
		return ""
	}
}

// pgQuote 含空格、引号或为空的值需要用单引号包裹
func pgQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}
