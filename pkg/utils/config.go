package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Email         EmailConfig
	OTP           OTPConfig
	VNPay         VNPayConfig
	PasswordReset PasswordResetConfig
	Trigger       TriggerConfig
	CORS          CORSConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

type OTPConfig struct {
	ExpiryMinutes     int
	Length            int
	MaxSendsPerHour   int
	MaxFailedAttempts int
	LockoutMinutes    int
}

func (c OTPConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

type VNPayConfig struct {
	TmnCode       string
	HashSecret    string
	PayURL        string
	ReturnURL     string
	Version       string
	Command       string
	CurrCode      string
	Locale        string
	OrderType     string
	ExpireMinutes int
}

type PasswordResetConfig struct {
	TokenTTLMinutes int
	LinkBaseURL     string
}

type TriggerConfig struct {
	Workers        int
	SweepInterval  time.Duration
	RedeliverAfter time.Duration
	SweepBatch     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// Set defaults
	v.SetDefault("APP_NAME", "paygate")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_FROM_NAME", "Paygate")
	v.SetDefault("OTP_EXPIRY_MINUTES", 2)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_MAX_SENDS_PER_HOUR", 5)
	v.SetDefault("OTP_MAX_FAILED_ATTEMPTS", 3)
	v.SetDefault("OTP_LOCKOUT_MINUTES", 15)
	v.SetDefault("VNPAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("VNPAY_RETURN_URL", "http://localhost:8080/api/payments/vnpay/return")
	v.SetDefault("VNPAY_VERSION", "2.1.0")
	v.SetDefault("VNPAY_COMMAND", "pay")
	v.SetDefault("VNPAY_CURR_CODE", "VND")
	v.SetDefault("VNPAY_LOCALE", "vn")
	v.SetDefault("VNPAY_ORDER_TYPE", "other")
	v.SetDefault("VNPAY_EXPIRE_MINUTES", 15)
	v.SetDefault("RESET_TOKEN_TTL_MINUTES", 60)
	v.SetDefault("RESET_LINK_BASE_URL", "http://localhost:8080/reset-password")
	v.SetDefault("TRIGGER_WORKERS", 4)
	v.SetDefault("TRIGGER_SWEEP_INTERVAL", "30s")
	v.SetDefault("TRIGGER_REDELIVER_AFTER", "1m")
	v.SetDefault("TRIGGER_SWEEP_BATCH", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// .env is optional, the environment always wins
	if _, err := os.Stat(".env"); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Email: EmailConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("EMAIL_FROM"),
			FromName: v.GetString("EMAIL_FROM_NAME"),
		},
		OTP: OTPConfig{
			ExpiryMinutes:     v.GetInt("OTP_EXPIRY_MINUTES"),
			Length:            v.GetInt("OTP_LENGTH"),
			MaxSendsPerHour:   v.GetInt("OTP_MAX_SENDS_PER_HOUR"),
			MaxFailedAttempts: v.GetInt("OTP_MAX_FAILED_ATTEMPTS"),
			LockoutMinutes:    v.GetInt("OTP_LOCKOUT_MINUTES"),
		},
		VNPay: VNPayConfig{
			TmnCode:       v.GetString("VNPAY_TMN_CODE"),
			HashSecret:    v.GetString("VNPAY_HASH_SECRET"),
			PayURL:        v.GetString("VNPAY_URL"),
			ReturnURL:     v.GetString("VNPAY_RETURN_URL"),
			Version:       v.GetString("VNPAY_VERSION"),
			Command:       v.GetString("VNPAY_COMMAND"),
			CurrCode:      v.GetString("VNPAY_CURR_CODE"),
			Locale:        v.GetString("VNPAY_LOCALE"),
			OrderType:     v.GetString("VNPAY_ORDER_TYPE"),
			ExpireMinutes: v.GetInt("VNPAY_EXPIRE_MINUTES"),
		},
		PasswordReset: PasswordResetConfig{
			TokenTTLMinutes: v.GetInt("RESET_TOKEN_TTL_MINUTES"),
			LinkBaseURL:     v.GetString("RESET_LINK_BASE_URL"),
		},
		Trigger: TriggerConfig{
			Workers:        v.GetInt("TRIGGER_WORKERS"),
			SweepInterval:  v.GetDuration("TRIGGER_SWEEP_INTERVAL"),
			RedeliverAfter: v.GetDuration("TRIGGER_REDELIVER_AFTER"),
			SweepBatch:     v.GetInt("TRIGGER_SWEEP_BATCH"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	return config, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.VNPay.TmnCode == "" {
		errs = append(errs, errors.New("VNPAY_TMN_CODE is required"))
	}
	if c.VNPay.HashSecret == "" {
		errs = append(errs, errors.New("VNPAY_HASH_SECRET is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		errs = append(errs, fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTP.Length))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
