package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Razorpay RazorpayConfig `mapstructure:"razorpay"`
	Email    EmailConfig    `mapstructure:"email"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Env         string `mapstructure:"env"`
	Port        string `mapstructure:"port"`
	FrontendURL string `mapstructure:"frontend_url"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	BodyLimit   int    `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return r.Address != "" }

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
}

type AdminConfig struct {
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

type RazorpayConfig struct {
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type EmailConfig struct {
	Provider       string `mapstructure:"provider"`
	From           string `mapstructure:"from"`
	FromName       string `mapstructure:"from_name"`
	BrevoAPIKey    string `mapstructure:"brevo_api_key"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	SESRegion      string `mapstructure:"ses_region"`
}

type SMSConfig struct {
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`
}

type StorageConfig struct {
	CloudinaryURL string `mapstructure:"cloudinary_url"`
	Folder        string `mapstructure:"folder"`
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxFileSize   int64  `mapstructure:"max_file_size"`
}

type JobsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ScheduledDispatch  string `mapstructure:"scheduled_dispatch"`
	PurgeNotifications string `mapstructure:"purge_notifications"`
	ReconcilePayments  string `mapstructure:"reconcile_payments"`
	OverdueFees        string `mapstructure:"overdue_fees"`
}

var defaults = map[string]interface{}{
	"app.name":         "Campus Manager",
	"app.env":          "development",
	"app.port":         "8080",
	"app.frontend_url": "http://localhost:3000",
	"app.log_level":    "info",
	"app.log_format":   "json",
	"app.body_limit":   20 * 1024 * 1024,

	"database.url":            "",
	"database.max_open_conns": 25,
	"database.max_idle_conns": 5,

	"redis.address":  "",
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret": "",
	"jwt.expiry": "720h",

	"admin.email":      "",
	"admin.password":   "",
	"admin.first_name": "System",
	"admin.last_name":  "Administrator",

	"razorpay.key_id":         "",
	"razorpay.key_secret":     "",
	"razorpay.webhook_secret": "",

	"email.provider":         "log",
	"email.from":             "no-reply@campus.local",
	"email.from_name":        "Campus Manager",
	"email.brevo_api_key":    "",
	"email.sendgrid_api_key": "",
	"email.ses_region":       "ap-south-1",

	"sms.provider": "none",
	"sms.region":   "ap-south-1",

	"storage.cloudinary_url":  "",
	"storage.folder":          "cms-uploads",
	"storage.local_dir":       "uploads",
	"storage.public_base_url": "/uploads",
	"storage.max_file_size":   10 * 1024 * 1024,

	"jobs.enabled":             true,
	"jobs.scheduled_dispatch":  "* * * * *",
	"jobs.purge_notifications": "0 * * * *",
	"jobs.reconcile_payments":  "*/5 * * * *",
	"jobs.overdue_fees":        "0 2 * * *",
}

// legacy env names from the previous deployment
var aliases = map[string][]string{
	"storage.cloudinary_url": {"CLOUDINARY_URL"},
	"email.brevo_api_key":    {"BREVO_API_KEY"},
	"email.sendgrid_api_key": {"SENDGRID_API_KEY"},
	"email.from":             {"EMAIL_SENDER"},
	"email.from_name":        {"EMAIL_SENDER_NAME"},
	"app.port":               {"PORT"},
	"app.log_level":          {"LOG_LEVEL"},
	"app.log_format":         {"LOG_FORMAT"},
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envs := range aliases {
		names := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envs...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	switch c.Email.Provider {
	case "brevo", "sendgrid", "ses", "log":
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = 30 * 24 * time.Hour
	}
	return nil
}
