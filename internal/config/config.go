package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort                string   `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL             string   `env:"DATABASE_URL,required,notEmpty"`
	AutoMigrate             bool     `env:"AUTO_MIGRATE" envDefault:"true"`
	DBMaxConns              int      `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns              int      `env:"DB_MIN_CONNS" envDefault:"1"`
	DBConnectTimeoutSeconds int      `env:"DB_CONNECT_TIMEOUT_SECONDS" envDefault:"5"`
	PublicAPIKey            string   `env:"PUBLIC_API_KEY"`
	JWTSecret               string   `env:"JWT_SECRET"`
	JWTAccessTTLMinutes     int      `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes    int      `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	RedisAddr               string   `env:"REDIS_ADDR"`
	RedisPassword           string   `env:"REDIS_PASSWORD"`
	RedisDB                 int      `env:"REDIS_DB" envDefault:"0"`
	LoginRateWindowMinutes  int      `env:"LOGIN_RATE_WINDOW_MINUTES" envDefault:"10"`
	LoginRateMax            int      `env:"LOGIN_RATE_MAX" envDefault:"5"`
	CORSAllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MetricsEnabled          bool     `env:"METRICS_ENABLED" envDefault:"true"`
	RateLimitRPS            float64  `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst          int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
	SMTPHost                string   `env:"SMTP_HOST"`
	SMTPPort                int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser                string   `env:"SMTP_USER"`
	SMTPPass                string   `env:"SMTP_PASS"`
	SMTPFrom                string   `env:"SMTP_FROM"`
	SMTPFromName            string   `env:"SMTP_FROM_NAME" envDefault:"SynergySphere"`
	SMTPUseTLS              bool     `env:"SMTP_USE_TLS" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig configura el cliente de terminal.
type ClientConfig struct {
	BaseURL              string `env:"SYNERGY_URL,required,notEmpty"`
	AnonKey              string `env:"SYNERGY_ANON_KEY"`
	SessionFile          string `env:"SYNERGY_SESSION_FILE" envDefault:".synergy/session.json"`
	AutoRefresh          bool   `env:"SYNERGY_AUTO_REFRESH" envDefault:"true"`
	RefreshMarginSeconds int    `env:"SYNERGY_REFRESH_MARGIN_SECONDS" envDefault:"60"`
}

// LoadClientConfig carga la configuración del cliente desde variables de entorno.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
