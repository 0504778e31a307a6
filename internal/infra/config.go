package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

// Config: корневая структура конфигурации рантайма админки.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Session   SessionConfig   `mapstructure:"session"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig описывает HTTP-адаптер для UI.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AdapterToken string        `mapstructure:"adapter_token"` // пусто = адаптер без авторизации (только localhost)
}

// APIConfig описывает удаленный админ-API бот-защиты.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	KeyPath    string        `mapstructure:"key_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
	RetryCount uint          `mapstructure:"retry_count"`

	// Настройки Circuit Breaker для админ-API
	CBMaxRequests      uint32        `mapstructure:"cb_max_requests"`
	CBInterval         time.Duration `mapstructure:"cb_interval"`
	CBTimeout          time.Duration `mapstructure:"cb_timeout"`
	CBFailureThreshold uint32        `mapstructure:"cb_failure_threshold"`

	APIKey string
}

type SessionConfig struct {
	LoginPath string `mapstructure:"login_path"`
}

// EngineConfig: параметры движка обновлений.
type EngineConfig struct {
	InitialTab      string        `mapstructure:"initial_tab"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	FrameInterval   time.Duration `mapstructure:"frame_interval"`
	EventsHours     int           `mapstructure:"events_hours"`
	MonitoringLimit int           `mapstructure:"monitoring_limit"`
	CDPEventsLimit  int           `mapstructure:"cdp_events_limit"`
}

// PollingConfig: интервалы автообновления по вкладкам; 0 отключает поллинг вкладки.
type PollingConfig struct {
	Monitoring time.Duration `mapstructure:"monitoring"`
	IPBans     time.Duration `mapstructure:"ip_bans"`
	Status     time.Duration `mapstructure:"status"`
	Config     time.Duration `mapstructure:"config"`
	Tuning     time.Duration `mapstructure:"tuning"`
}

// IntervalFor возвращает настроенный интервал вкладки.
func (p PollingConfig) IntervalFor(tab domain.Tab) time.Duration {
	switch tab {
	case domain.TabMonitoring:
		return p.Monitoring
	case domain.TabIPBans:
		return p.IPBans
	case domain.TabStatus:
		return p.Status
	case domain.TabConfig:
		return p.Config
	case domain.TabTuning:
		return p.Tuning
	}
	return 0
}

// RedisConfig описывает подключение к Redis (Pub/Sub сигналы инвалидации). Пустой Addr выключает подписку.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"` // пусто = канал окружения Env
	Env      string `mapstructure:"env"`
}

// DatabaseConfig: PostgreSQL для журнала обновлений. Пустой URL = журнал только в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stderr, stdout или путь к файлу
}

type TelemetryConfig struct {
	WindowSize int `mapstructure:"window_size"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// path переопределяет поиск config.yaml (флаг --config).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. ENV перекрывает файл: API_BASE_URL=... перекроет api.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Значения по умолчанию
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ админ-API из ENV или из файла
	cfg.API.APIKey = strings.TrimSpace(string(loadKeyResource(cfg.API.KeyPath, "SHUMA_API_KEY_DATA")))

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = InvalidateChannelFor(cfg.Redis.Env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные поля.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.Engine.RefreshTimeout < 0 || c.Engine.MaxBackoff < 0 {
		return errors.New("config: engine timeouts must be non-negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("api.timeout", 20*time.Second)
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.cb_max_requests", 3)
	v.SetDefault("api.cb_interval", 30*time.Second)
	v.SetDefault("api.cb_timeout", 15*time.Second)
	v.SetDefault("api.cb_failure_threshold", 5)

	v.SetDefault("session.login_path", "/dashboard/login.html")

	v.SetDefault("engine.initial_tab", string(domain.DefaultTab))
	v.SetDefault("engine.refresh_timeout", 30*time.Second)
	v.SetDefault("engine.max_backoff", 5*time.Minute)
	v.SetDefault("engine.frame_interval", 16*time.Millisecond)
	v.SetDefault("engine.events_hours", 24)
	v.SetDefault("engine.monitoring_limit", 50)
	v.SetDefault("engine.cdp_events_limit", 500)

	v.SetDefault("polling.monitoring", 30*time.Second)
	v.SetDefault("polling.ip_bans", 45*time.Second)
	v.SetDefault("polling.status", 60*time.Second)
	v.SetDefault("polling.config", 60*time.Second)
	v.SetDefault("polling.tuning", 60*time.Second)

	// пустые значения нужны, чтобы AutomaticEnv видел ключи при Unmarshal
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "")
	v.SetDefault("redis.env", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("telemetry.window_size", 20)
}

// loadKeyResource: секрет из ENV (Docker/K8s) или из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
