package config

import "time"

// Settings is the full set of application options. Every field carries an
// envDefault so a zero environment still yields a usable configuration.
type Settings struct {
	App       App
	Server    Server
	Security  Security
	CORS      CORS
	Database  Database
	Logging   Logging
	Request   Request
	SMTP      SMTP
	RateLimit RateLimit
	Telemetry Telemetry

	// Warnings lists environment values that could not be parsed and were
	// replaced by their defaults.
	Warnings []string
}

type App struct {
	Name         string `env:"APP_NAME" envDefault:"Auth Service"`
	Description  string `env:"APP_DESCRIPTION" envDefault:"Authentication and Authorization Service"`
	Version      string `env:"APP_VERSION" envDefault:"1.0.0"`
	Author       string `env:"APP_AUTHOR" envDefault:""`
	License      string `env:"APP_LICENSE" envDefault:"MIT"`
	Contact      string `env:"APP_CONTACT" envDefault:""`
	ContactEmail string `env:"APP_CONTACT_EMAIL" envDefault:""`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	Debug        bool   `env:"DEBUG" envDefault:"true"`
	// ProjectRoot is where transient build artifacts are cleaned on shutdown.
	ProjectRoot string `env:"PROJECT_ROOT" envDefault:"."`
}

type Server struct {
	Host            string        `env:"HOST" envDefault:"127.0.0.1"`
	Port            int           `env:"PORT" envDefault:"8000"`
	ReadHeader      time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type Security struct {
	SecretKey                string `env:"SECRET_KEY" envDefault:"your-super-secret-key-change-this-in-production"`
	Algorithm                string `env:"ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`

	// JWTSecretKey is optional; see Settings.JWTSecret for the fallback.
	JWTSecretKey                string `env:"JWT_SECRET_KEY"`
	JWTAlgorithm                string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTAccessTokenExpireMinutes int    `env:"JWT_ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	JWTRefreshTokenExpireDays   int    `env:"JWT_REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"7"`
}

type CORS struct {
	AllowOrigins     string `env:"ALLOW_ORIGINS" envDefault:"*"`
	AllowCredentials bool   `env:"ALLOW_CREDENTIALS" envDefault:"true"`
	AllowMethods     string `env:"ALLOW_METHODS" envDefault:"*"`
	AllowHeaders     string `env:"ALLOW_HEADERS" envDefault:"*"`
	TrustedHosts     string `env:"TRUSTED_HOSTS" envDefault:"localhost,127.0.0.1,*.localhost"`
}

type Database struct {
	URL         string        `env:"DATABASE_URL" envDefault:"sqlite:///./auth.db"`
	Echo        bool          `env:"DATABASE_ECHO" envDefault:"false"`
	PoolSize    int           `env:"DATABASE_POOL_SIZE" envDefault:"5"`
	MaxOverflow int           `env:"DATABASE_MAX_OVERFLOW" envDefault:"10"`
	PoolTimeout time.Duration `env:"DATABASE_POOL_TIMEOUT" envDefault:"30s"`
	PoolRecycle time.Duration `env:"DATABASE_POOL_RECYCLE" envDefault:"1h"`
	// RetryAttempts bounds the connectivity probe at initialization.
	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"DATABASE_RETRY_DELAY" envDefault:"1s"`
}

// Logging holds the raw per-sink options. Sinks() turns them into the
// explicit registry the logger consumes.
type Logging struct {
	Level       string `env:"LOG_LEVEL" envDefault:"INFO"`
	File        string `env:"LOG_FILE" envDefault:"logs/app.log"`
	Rotation    string `env:"LOG_ROTATION" envDefault:"1 day"`
	Retention   string `env:"LOG_RETENTION" envDefault:"7 days"`
	Compression bool   `env:"LOG_COMPRESSION" envDefault:"true"`
	Backtrace   bool   `env:"LOG_BACKTRACE" envDefault:"true"`
	Color       bool   `env:"LOG_COLOR" envDefault:"true"`
	JSON        bool   `env:"LOG_JSON" envDefault:"false"`
	Console     bool   `env:"LOG_CONSOLE" envDefault:"true"`
	FileSizeMB  int    `env:"LOG_FILE_SIZE_MB" envDefault:"10"`
	FileCount   int    `env:"LOG_FILE_COUNT" envDefault:"5"`

	Exception            bool   `env:"LOG_EXCEPTION" envDefault:"true"`
	ExceptionFile        string `env:"LOG_EXCEPTION_FILE" envDefault:"logs/exception.log"`
	ExceptionRotation    string `env:"LOG_EXCEPTION_ROTATION" envDefault:"1 day"`
	ExceptionRetention   string `env:"LOG_EXCEPTION_RETENTION" envDefault:"7 days"`
	ExceptionCompression bool   `env:"LOG_EXCEPTION_COMPRESSION" envDefault:"true"`
	ExceptionJSON        bool   `env:"LOG_EXCEPTION_JSON" envDefault:"false"`
	ExceptionLevel       string `env:"LOG_EXCEPTION_LEVEL" envDefault:"ERROR"`

	Request            bool   `env:"LOG_REQUEST" envDefault:"true"`
	RequestFile        string `env:"LOG_REQUEST_FILE" envDefault:"logs/requests.log"`
	RequestRotation    string `env:"LOG_REQUEST_ROTATION" envDefault:"1 day"`
	RequestRetention   string `env:"LOG_REQUEST_RETENTION" envDefault:"30 days"`
	RequestCompression bool   `env:"LOG_REQUEST_COMPRESSION" envDefault:"true"`

	SkipFrameCount    int  `env:"LOG_SKIP_FRAME_COUNT" envDefault:"3"`
	ShutdownTimeoutMS int  `env:"LOG_SHUTDOWN_TIMEOUT_MS" envDefault:"500"`
	ShutdownWarning   bool `env:"LOG_SHUTDOWN_WARNING" envDefault:"true"`
}

// Request configures the inbound request instrumentation.
type Request struct {
	ExcludedPaths      string        `env:"REQUEST_EXCLUDED_PATHS" envDefault:"/health,/metrics,/favicon.ico"`
	SensitiveHeaders   string        `env:"REQUEST_SENSITIVE_HEADERS" envDefault:"authorization,cookie,x-api-key"`
	MaxBodyBytes       int           `env:"REQUEST_MAX_BODY_BYTES" envDefault:"1000"`
	SlowThreshold      time.Duration `env:"REQUEST_SLOW_THRESHOLD" envDefault:"2s"`
	PerfSlow           time.Duration `env:"REQUEST_PERF_SLOW_THRESHOLD" envDefault:"1s"`
	PerfVerySlow       time.Duration `env:"REQUEST_PERF_VERY_SLOW_THRESHOLD" envDefault:"5s"`
	RequestIDHeader    string        `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	ResponseTimeHeader string        `env:"RESPONSE_TIME_HEADER" envDefault:"X-Response-Time"`
}

type SMTP struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	FromEmail string `env:"SMTP_FROM_EMAIL"`
	// FromName is optional; see Settings.SMTPFromName for the fallback.
	FromName string `env:"SMTP_FROM_NAME"`
	UseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"true"`
}

type RateLimit struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`
	Burst             int  `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

type Telemetry struct {
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint string `env:"OTEL_ENDPOINT"`
}
