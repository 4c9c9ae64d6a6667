// =============================================================================
// 📦 Kiosk 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultPromptTemplate 是函数调用模型使用的默认提示词
const DefaultPromptTemplate = "<|im_start|>Below is the query from the users, please choose the correct function and generate the parameters to call the function. Query: {query} Response:"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Voice:     DefaultVoiceConfig(),
		Engines:   DefaultEnginesConfig(),
		Reporter:  DefaultReporterConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置（设备本地 SQLite）
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "kiosk.db",
		SSLMode:         "disable",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     4,
		MinIdleConns: 1,
		AnswerTTL:    10 * time.Minute,
	}
}

// DefaultVoiceConfig 返回默认对话编排配置
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		Locale:          "ko",
		SampleRate:      16000,
		SpeakerID:       0,
		Speed:           1.0,
		PlaybackPadding: 100 * time.Millisecond,
		PromptTemplate:  DefaultPromptTemplate,
		LogCapacity:     20,
	}
}

// DefaultEnginesConfig 返回默认引擎配置，未配置 BaseURL 的引擎视为不可用
func DefaultEnginesConfig() EnginesConfig {
	return EnginesConfig{
		LLM: EngineConfig{
			Model:     "llama32-1b-fc",
			MaxTokens: 64,
		},
		STT: EngineConfig{
			Model: "whisper-ko",
		},
		TTS: EngineConfig{
			Model: "tts-korean-female",
		},
		VAD: VADConfig{
			Threshold:      0.02,
			FrameSize:      512,
			HangoverFrames: 15,
			PreRollFrames:  10,
		},
	}
}

// DefaultReporterConfig 返回默认上报配置
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		Enabled:   false,
		Workers:   2,
		QueueSize: 64,
		Timeout:   5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "kioskd",
		SampleRate:   0.1,
	}
}
