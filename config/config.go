package config

import (
	"flag"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultServerAddress     = ":8080"
	defaultDatabaseDSN       = ""
	defaultGatewayAddr       = "http://localhost:8181"
	defaultLogLevel          = "debug"
	defaultAuthTokenKey      = "f53ac685bbceebd75043e6be2e06ee07"
	defaultCurrency          = "USD"
	defaultTaxRate           = 0.0
	defaultPlatformFeeRate   = 0.0
	defaultCommissionRate    = 10.0
	defaultPendingPaymentTTL = 30 * time.Minute
	defaultSweepInterval     = 5 * time.Minute
	defaultPayoutCycle       = 24 * time.Hour
	defaultKafkaBroker       = ""
	defaultEventsTopic       = "marketplace-events"
)

type Config struct {
	ServerAddr        string
	DatabaseDSN       string
	GatewayAddr       string
	LogLevel          string
	AuthTokenKey      string
	Currency          string
	TaxRate           float64
	PlatformFeeRate   float64
	CommissionRate    float64
	PendingPaymentTTL time.Duration
	SweepInterval     time.Duration
	PayoutCycle       time.Duration
	KafkaBroker       string
	EventsTopic       string
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		cfg := Config{}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "marketplace server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "marketplace database DSN")
		flag.StringVar(&cfg.GatewayAddr, "g", defaultGatewayAddr, "payment gateway address")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
		flag.StringVar(&cfg.AuthTokenKey, "k", defaultAuthTokenKey, "auth token key (hex)")
		flag.StringVar(&cfg.Currency, "c", defaultCurrency, "settlement currency")
		flag.Float64Var(&cfg.TaxRate, "tax", defaultTaxRate, "tax rate, percent")
		flag.Float64Var(&cfg.PlatformFeeRate, "fee", defaultPlatformFeeRate, "platform fee rate, percent")
		flag.Float64Var(&cfg.CommissionRate, "commission", defaultCommissionRate, "default vendor commission rate, percent")
		flag.DurationVar(&cfg.PendingPaymentTTL, "pending-ttl", defaultPendingPaymentTTL, "window after which a pending payment is abandoned")
		flag.DurationVar(&cfg.SweepInterval, "sweep", defaultSweepInterval, "stale payment sweep interval")
		flag.DurationVar(&cfg.PayoutCycle, "payout-cycle", defaultPayoutCycle, "automatic payout cycle interval")
		flag.StringVar(&cfg.KafkaBroker, "broker", defaultKafkaBroker, "kafka broker for domain events, empty disables publishing")
		flag.StringVar(&cfg.EventsTopic, "topic", defaultEventsTopic, "kafka topic for domain events")

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.ServerAddr = runAddrEnv
		}
		if databaseURIEnv := os.Getenv("DATABASE_URI"); databaseURIEnv != "" {
			cfg.DatabaseDSN = databaseURIEnv
		}
		if gatewayAddrEnv := os.Getenv("PAYMENT_GATEWAY_ADDRESS"); gatewayAddrEnv != "" {
			cfg.GatewayAddr = gatewayAddrEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}
		if tokenKeyEnv := os.Getenv("AUTH_TOKEN_KEY"); tokenKeyEnv != "" {
			cfg.AuthTokenKey = tokenKeyEnv
		}
		if currencyEnv := os.Getenv("CURRENCY"); currencyEnv != "" {
			cfg.Currency = currencyEnv
		}
		if rateEnv := os.Getenv("COMMISSION_RATE"); rateEnv != "" {
			if rate, err := strconv.ParseFloat(rateEnv, 64); err == nil {
				cfg.CommissionRate = rate
			}
		}
		if brokerEnv := os.Getenv("KAFKA_BROKER"); brokerEnv != "" {
			cfg.KafkaBroker = brokerEnv
		}
		if topicEnv := os.Getenv("EVENTS_TOPIC"); topicEnv != "" {
			cfg.EventsTopic = topicEnv
		}

		singleton = &cfg
	})

	return singleton, nil
}
