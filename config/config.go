package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// DevSecretKey is the signing secret shipped in the embedded config. It is
// only acceptable outside production; InitConfig refuses to start a
// production deployment that still uses it.
const DevSecretKey = "dev-only-secret-change-me"

type JWTConfig struct {
	SecretKey string        `mapstructure:"secretKey"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
}

type AuthConfig struct {
	GoogleClientID      string `mapstructure:"googleClientID"`
	AppleClientID       string `mapstructure:"appleClientID"`
	MaxAvatarBytes      int    `mapstructure:"maxAvatarBytes"`
	LoginAttemptsPerMin int    `mapstructure:"loginAttemptsPerMin"`
}

type Config struct {
	Mode         string     `mapstructure:"mode"`
	JWT          JWTConfig  `mapstructure:"jwt"`
	Auth         AuthConfig `mapstructure:"auth"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Environment overrides, e.g. ARTISANHUB_JWT_SECRETKEY,
	// ARTISANHUB_REPOSITORIES_POSTGRES_PASSWORD.
	v.SetEnvPrefix("ARTISANHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	if err = validate(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// validate rejects configurations that must never reach a real deployment.
func validate(cfg *Config) error {
	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secretKey must not be empty")
	}
	if cfg.Mode == "production" && cfg.JWT.SecretKey == DevSecretKey {
		return fmt.Errorf("refusing to start in production with the default jwt secret")
	}
	if cfg.JWT.TokenTTL <= 0 {
		cfg.JWT.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.MaxAvatarBytes <= 0 {
		cfg.Auth.MaxAvatarBytes = 1 << 20 // 1 MiB
	}
	return nil
}
