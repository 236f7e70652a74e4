package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("allowed_origin", "http://localhost:3000")
		viper.SetDefault("store_db_path", "./dev_wallet_backend.db")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("allowed_origin", "https://wallet.wardline.io")
		viper.SetDefault("store_db_path", "/var/lib/wallet-backend/state.db")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("api_port", 9003)
	viper.SetDefault("store_backend", "sqlite") // or "rest"
	viper.SetDefault("store_rest_url", "http://localhost:9002")
	viper.SetDefault("store_rest_api_key", "")
	viper.SetDefault("store_timeout", "15s")
	viper.SetDefault("jwt_keys_dir", "./jwtkeys")
	viper.SetDefault("activity_default_limit", 20)
	viper.SetDefault("ward_approvals_default_limit", 50)
	viper.SetDefault("ward_approvals_max_limit", 200)
	viper.SetDefault("outbox_dispatch_batch", 100)
	viper.SetDefault("use_https", false)
	viper.SetDefault("cert_file", "server.crt")
	viper.SetDefault("key_file", "server.key")
}

// createDefaultConfig writes a starter config.json so the server can boot
// on a fresh checkout without any manual setup.
func createDefaultConfig() error {
	setDefaults()

	defaults := map[string]interface{}{
		"ENV":            viper.GetString("ENV"),
		"api_port":       viper.GetInt("api_port"),
		"allowed_origin": viper.GetString("allowed_origin"),
		"store_backend":  viper.GetString("store_backend"),
		"store_db_path":  viper.GetString("store_db_path"),
		"store_rest_url": viper.GetString("store_rest_url"),
		"jwt_keys_dir":   viper.GetString("jwt_keys_dir"),
		"log_level":      viper.GetString("log_level"),
	}

	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.WriteFile("config.json", data, 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	return viper.ReadInConfig()
}
