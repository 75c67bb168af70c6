package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/core-coin/go-core/v2/common"
	"github.com/joho/godotenv"

	"github.com/core-coin/adsponsor/pkg/checked"
	"github.com/core-coin/adsponsor/pkg/validation"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Development bool
	LogFile     string
	// API configuration
	APIPort int
	// Storage configuration
	StorageDriver string
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Blockchain configuration
	NetworkID *big.Int

	// Protocol configuration
	AdminAddress       string
	FeeSinkAddress     string
	TransactionTimeout int64
	MaxSingleDeposit   uint64
	DefaultBaseFee     uint64
	DefaultFeePerAd    uint64
	MinAdReward        uint64
	MinDisplayDuration int64
	MaxAdIDLength      int
	MaxAdURLLength     int
	MaxAdContentLength int
	// GenesisBalances funds the in-process ledger, "addr=amount,addr=amount".
	GenesisBalances string

	// SMTP configuration
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	SMTPSender    string
	SMTPRecipient string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
}

// LoadConfig loads the configuration from environment variables.
// The result is not validated so that flag overrides can be applied first.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:        getEnvAsBool("DEVELOPMENT", false),
		LogFile:            getEnv("LOG_FILE", ""),
		StorageDriver:      getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		PostgresUser:       getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:         getEnv("POSTGRES_DB", "adsponsor"),
		NetworkID:          getEnvAsBigInt("NETWORK_ID", big.NewInt(1)), // Default to Mainnet ID
		AdminAddress:       getEnv("ADMIN_ADDRESS", ""),
		FeeSinkAddress:     getEnv("FEE_SINK_ADDRESS", ""),
		TransactionTimeout: getEnvAsInt64("TRANSACTION_TIMEOUT", 300),
		MaxSingleDeposit:   getEnvAsUint64("MAX_SINGLE_DEPOSIT", 1_000_000_000_000),
		DefaultBaseFee:     getEnvAsUint64("DEFAULT_BASE_FEE", 5000),
		DefaultFeePerAd:    getEnvAsUint64("DEFAULT_FEE_PER_AD", 5000),
		MinAdReward:        getEnvAsUint64("MIN_AD_REWARD", 1000),
		MinDisplayDuration: getEnvAsInt64("MIN_DISPLAY_DURATION", 5),
		MaxAdIDLength:      getEnvAsInt("MAX_AD_ID_LENGTH", 32),
		MaxAdURLLength:     getEnvAsInt("MAX_AD_URL_LENGTH", 200),
		MaxAdContentLength: getEnvAsInt("MAX_AD_CONTENT_LENGTH", 500),
		GenesisBalances:    getEnv("GENESIS_BALANCES", ""),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPSender:         getEnv("SMTP_SENDER", ""),
		SMTPRecipient:      getEnv("SMTP_RECIPIENT", ""),

		APIPort: getEnvAsInt("API_PORT", 6533),
	}

	cfg.ApplyNetwork()

	return cfg, nil
}

// ApplyNetwork sets the go-core default network used for address handling.
func (c *Config) ApplyNetwork() {
	common.DefaultNetworkID = common.NetworkID(c.NetworkID.Int64())
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.FeeSinkAddress == "" {
		return fmt.Errorf("FEE_SINK_ADDRESS is required")
	}
	if err := validation.ValidateAddress(c.FeeSinkAddress); err != nil {
		return fmt.Errorf("invalid FEE_SINK_ADDRESS format: %w", err)
	}
	if c.AdminAddress != "" {
		if err := validation.ValidateAddress(c.AdminAddress); err != nil {
			return fmt.Errorf("invalid ADMIN_ADDRESS format: %w", err)
		}
	}

	if c.TransactionTimeout <= 0 {
		return fmt.Errorf("TRANSACTION_TIMEOUT must be positive")
	}
	if c.MaxSingleDeposit == 0 {
		return fmt.Errorf("MAX_SINGLE_DEPOSIT must be positive")
	}
	if c.DefaultBaseFee == 0 || c.DefaultFeePerAd == 0 {
		return fmt.Errorf("DEFAULT_BASE_FEE and DEFAULT_FEE_PER_AD must be positive")
	}
	if c.MinDisplayDuration <= 0 {
		return fmt.Errorf("MIN_DISPLAY_DURATION must be positive")
	}
	if c.MaxAdIDLength <= 0 || c.MaxAdURLLength <= len(validation.SecureScheme) || c.MaxAdContentLength <= 0 {
		return fmt.Errorf("advertisement length limits must be positive")
	}
	if _, err := c.ParseGenesisBalances(); err != nil {
		return err
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.SMTPHost != "" && (c.SMTPSender == "" || c.SMTPRecipient == "") {
		return fmt.Errorf("SMTP_SENDER and SMTP_RECIPIENT are required when SMTP_HOST is set")
	}

	return nil
}

// ParseGenesisBalances decodes GenesisBalances.
func (c *Config) ParseGenesisBalances() (map[common.Address]uint64, error) {
	balances := make(map[common.Address]uint64)
	if strings.TrimSpace(c.GenesisBalances) == "" {
		return balances, nil
	}
	for _, entry := range strings.Split(c.GenesisBalances, ",") {
		addrStr, amountStr, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			return nil, fmt.Errorf("invalid GENESIS_BALANCES entry %q, want addr=amount", entry)
		}
		addr, err := validation.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid GENESIS_BALANCES address %q: %w", addrStr, err)
		}
		amount, err := strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GENESIS_BALANCES amount %q: %w", amountStr, err)
		}
		total, err := checked.Add(balances[addr], amount)
		if err != nil {
			return nil, fmt.Errorf("invalid GENESIS_BALANCES amount for %s: %w", addrStr, err)
		}
		balances[addr] = total
	}
	return balances, nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt64(name string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsUint64(name string, defaultValue uint64) uint64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBigInt(name string, defaultValue *big.Int) *big.Int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, ok := new(big.Int).SetString(valueStr, 10); ok {
			return value
		}
	}
	return defaultValue
}
