// Package config loads relay service configuration.
//
// Configuration is read from a YAML file (config.yml) with Viper, then
// overridden by environment variables. A .env file, when found, is loaded
// with godotenv before environment variables are bound.
//
// # Usage
//
//	var cfg consumer.Config
//	err := config.LoadConfig("consumer", &cfg, config.WithConfigFile(path))
//
// Nested keys map to upper-case variables with dots replaced by underscores,
// so discovery.provider is overridden by DISCOVERY_PROVIDER (or
// RELAY_DISCOVERY_PROVIDER with WithEnvPrefix("relay")).
package config
