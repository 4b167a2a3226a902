package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Defaults suit local development; production overrides via env.
type Config struct {
	Addr string

	// Ledger network.
	RPCEndpoint       string
	NetworkPassphrase string
	ContractID        string
	SecondsPerLedger  int
	RPCTimeout        time.Duration

	// SignerEndpoint is the external key-holding agent transactions are
	// signed against.
	SignerEndpoint string

	// Vault governance, mirroring the contract's configuration.
	Signers           []string
	Admins            []string
	Threshold         int
	SpendingLimit     string
	DailyLimit        string
	WeeklyLimit       string
	TimelockThreshold string
	TimelockDelay     int
	ExpiryDelta       int

	// Stores. Empty PostgresDSN selects the in-memory stores.
	PostgresDSN string

	Redis RedisConfig

	// KafkaBrokers empty disables the activity publisher.
	KafkaBrokers  []string
	ActivityTopic string

	JWTSigningKey string
}

// RedisConfig tunes the shared redis client. Empty URL means redis is not
// configured and callers fall back to in-process state.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("VAULTDAO_ADDR", ":8080"),
		RPCEndpoint:       envOr("VAULTDAO_RPC_ENDPOINT", "http://localhost:8000/rpc"),
		NetworkPassphrase: envOr("VAULTDAO_NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
		ContractID:        os.Getenv("VAULTDAO_CONTRACT_ID"),
		SecondsPerLedger:  envInt("VAULTDAO_SECONDS_PER_LEDGER", 5),
		RPCTimeout:        envDuration("VAULTDAO_RPC_TIMEOUT", 30*time.Second),
		SignerEndpoint:    envOr("VAULTDAO_SIGNER_ENDPOINT", "http://localhost:8100/sign"),
		Signers:           envList("VAULTDAO_SIGNERS"),
		Admins:            envList("VAULTDAO_ADMINS"),
		Threshold:         envInt("VAULTDAO_THRESHOLD", 2),
		SpendingLimit:     os.Getenv("VAULTDAO_SPENDING_LIMIT"),
		DailyLimit:        os.Getenv("VAULTDAO_DAILY_LIMIT"),
		WeeklyLimit:       os.Getenv("VAULTDAO_WEEKLY_LIMIT"),
		TimelockThreshold: os.Getenv("VAULTDAO_TIMELOCK_THRESHOLD"),
		TimelockDelay:     envInt("VAULTDAO_TIMELOCK_DELAY", 17280),
		ExpiryDelta:       envInt("VAULTDAO_EXPIRY_DELTA", 120960),
		PostgresDSN:       os.Getenv("VAULTDAO_POSTGRES_DSN"),
		ActivityTopic:     envOr("VAULTDAO_ACTIVITY_TOPIC", "vaultdao.activity"),
		JWTSigningKey:     envOr("VAULTDAO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("VAULTDAO_REDIS_URL"),
			PoolSize:     envInt("VAULTDAO_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VAULTDAO_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VAULTDAO_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VAULTDAO_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VAULTDAO_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	cfg.KafkaBrokers = envList("VAULTDAO_KAFKA_BROKERS")
	return cfg
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
