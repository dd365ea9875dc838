package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"http_server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Events   EventsConfig   `mapstructure:"events"`
	Xendit   XenditConfig   `mapstructure:"xendit"`
	OpenCage OpenCageConfig `mapstructure:"opencage"`
	Storage  StorageConfig  `mapstructure:"storage"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

type AppConfig struct {
	Env         string `mapstructure:"env" validate:"omitempty,oneof=development production test"`
	LogLevel    string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	FrontendURL string `mapstructure:"frontend_url" validate:"required,url"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" validate:"required,min=32"`
	BCryptCost int    `mapstructure:"bcrypt_cost" validate:"omitempty,min=4,max=15"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"min=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type JobsConfig struct {
	Backend       string        `mapstructure:"backend" validate:"omitempty,oneof=memory redis"`
	Workers       int           `mapstructure:"workers" validate:"min=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	EmailAttempts int           `mapstructure:"email_attempts" validate:"min=0"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffFactor float64       `mapstructure:"backoff_factor" validate:"min=0"`
	JobRetention  time.Duration `mapstructure:"job_retention"`
	SweepSpec     string        `mapstructure:"sweep_spec"`
}

type EventsConfig struct {
	Broker       string   `mapstructure:"broker" validate:"omitempty,oneof=none kafka nats"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	NatsURL      string   `mapstructure:"nats_url"`
	TopicPrefix  string   `mapstructure:"topic_prefix"`
}

type XenditConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	SecretKey       string        `mapstructure:"secret_key" validate:"required"`
	CallbackToken   string        `mapstructure:"callback_token"`
	InvoiceDuration time.Duration `mapstructure:"invoice_duration"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type OpenCageConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir" validate:"required"`
	PublicURL string `mapstructure:"public_url" validate:"required,url"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required,email"`
}

// ApplyDefaults fills the values a minimal config file may leave out.
func (c *Config) ApplyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Jobs.Backend == "" {
		c.Jobs.Backend = "redis"
	}
	if c.Jobs.Workers == 0 {
		c.Jobs.Workers = 5
	}
	if c.Jobs.PollInterval == 0 {
		c.Jobs.PollInterval = 500 * time.Millisecond
	}
	if c.Jobs.EmailAttempts == 0 {
		c.Jobs.EmailAttempts = 3
	}
	if c.Jobs.BackoffBase == 0 {
		c.Jobs.BackoffBase = time.Second
	}
	if c.Jobs.BackoffFactor == 0 {
		c.Jobs.BackoffFactor = 2
	}
	if c.Jobs.JobRetention == 0 {
		c.Jobs.JobRetention = 24 * time.Hour
	}
	if c.Jobs.SweepSpec == "" {
		c.Jobs.SweepSpec = "0 * * * * *"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "courier:jobs"
	}
	if c.Events.Broker == "" {
		c.Events.Broker = "none"
	}
	if c.Events.TopicPrefix == "" {
		c.Events.TopicPrefix = "courier"
	}
	if c.Xendit.InvoiceDuration == 0 {
		c.Xendit.InvoiceDuration = 24 * time.Hour
	}
	if c.Xendit.Timeout == 0 {
		c.Xendit.Timeout = 10 * time.Second
	}
	if c.OpenCage.Timeout == 0 {
		c.OpenCage.Timeout = 10 * time.Second
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 10
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Jobs.Validate(c.Redis); err != nil {
		errs = append(errs, fmt.Sprintf("jobs config: %v", err))
	}

	if err := c.Events.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("events config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *JobsConfig) Validate(redis RedisConfig) error {
	if c.Backend == "redis" && redis.Addr == "" {
		return errors.New("redis.addr is required for the redis job backend")
	}
	if c.BackoffFactor != 0 && c.BackoffFactor < 1 {
		return errors.New("backoff_factor must be >= 1")
	}
	return nil
}

func (c *EventsConfig) Validate() error {
	switch c.Broker {
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return errors.New("kafka_brokers is required for the kafka broker")
		}
	case "nats":
		if c.NatsURL == "" {
			return errors.New("nats_url is required for the nats broker")
		}
	}
	return nil
}
