// Package config loads runtime settings from POS_* environment variables.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Prefix = "POS"

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8082"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// DatabaseURL selects PostgreSQL; empty keeps everything in memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	Seed        bool   `envconfig:"SEED" default:"false"`

	PrinterPort         string        `envconfig:"PRINTER_PORT" default:"/dev/ttyUSB0"`
	PrinterAutoConnect  bool          `envconfig:"PRINTER_AUTO_CONNECT" default:"false"`
	PrinterOpenTimeout  time.Duration `envconfig:"PRINTER_OPEN_TIMEOUT" default:"5s"`
	PrinterWriteTimeout time.Duration `envconfig:"PRINTER_WRITE_TIMEOUT" default:"10s"`
	AutoPrint           bool          `envconfig:"AUTO_PRINT" default:"true"`
	PrintTimeout        time.Duration `envconfig:"PRINT_TIMEOUT" default:"15s"`

	ReceiptWidth   int    `envconfig:"RECEIPT_WIDTH" default:"32"`
	ReceiptCharset string `envconfig:"RECEIPT_CHARSET"`
	StoreName      string `envconfig:"STORE_NAME" default:"MARKET OTOMASYONU"`
	StoreSubtitle  string `envconfig:"STORE_SUBTITLE" default:"Satış ve Stok Yönetim Sistemi"`
	ReceiptZone    string `envconfig:"RECEIPT_TIMEZONE" default:"Europe/Istanbul"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads the environment and checks the values that have to make sense
// before anything starts.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	if c.ReceiptWidth < 16 {
		return Config{}, errors.Errorf("POS_RECEIPT_WIDTH must be at least 16, got %d", c.ReceiptWidth)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return Config{}, errors.Errorf("POS_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return Config{}, errors.Wrap(err, "POS_LOG_LEVEL")
	}
	return c, nil
}

// Logger builds the process logger.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return log
}

// Location is the zone receipt timestamps are printed in.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.ReceiptZone); err == nil {
		return loc
	}
	return time.Local
}

// Usage prints the recognised variables with their defaults.
func Usage() error {
	var c Config
	return envconfig.Usage(Prefix, &c)
}
