// Package config содержит логику чтения конфигурации сервиса aquabill.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса aquabill.
type Config struct {
	RunAddress            string `env:"RUN_ADDRESS"`
	DatabaseURI           string `env:"DATABASE_URI"`
	PaymentGatewayAddress string `env:"PAYMENT_GATEWAY_ADDRESS"`
	JWTSecret             string `env:"JWT_SECRET"`

	RedisAddr    string   `env:"REDIS_ADDR"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"72h"`
	OverdueCheckInterval time.Duration `env:"OVERDUE_CHECK_INTERVAL" envDefault:"1m"`

	CompanyName       string `env:"COMPANY_NAME" envDefault:"Agua Pura S.A. de C.V."`
	CompanyAddress    string `env:"COMPANY_ADDRESS" envDefault:"Calle de la pureza 123, Colonia Hidratación, C.P. 54321"`
	CompanyContact    string `env:"COMPANY_CONTACT" envDefault:"Tel: 555-123-4567"`
	LegalRequirements string `env:"LEGAL_REQUIREMENTS" envDefault:"Factura válida para fines fiscales en México."`

	IssuerName              string `env:"ISSUER_NAME" envDefault:"Centro de Facturas"`
	IssuerAddress           string `env:"ISSUER_ADDRESS" envDefault:"123 Calle de la Innovación, Ciudad Tecnológica, 12345"`
	IssuerContact           string `env:"ISSUER_CONTACT" envDefault:"contacto@centrodefacturas.com"`
	IssuerLegalRequirements string `env:"ISSUER_LEGAL_REQUIREMENTS" envDefault:"Requisitos estándar de facturación en España. Incluir condiciones de pago: Neto 30 días."`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.PaymentGatewayAddress
	envJWTSecret := cfg.JWTSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentGatewayAddress, "g", "", "payment gateway address")
	flag.StringVar(&cfg.JWTSecret, "s", "", "session signing secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.PaymentGatewayAddress = envGatewayAddress
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required")
	}

	return cfg, nil
}
