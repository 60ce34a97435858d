package config

// Environment variables read by parseEnv. Secrets are expected here rather
// than on the command line.
const (
	EnvEncryptionKey = "EXAMVAULT_ENCRYPTION_KEY"
	EnvJWTSecret     = "EXAMVAULT_JWT_SECRET"
	EnvDatabaseDSN   = "EXAMVAULT_DATABASE_DSN"
)

func parseEnv(config *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := getenv(EnvEncryptionKey); v != "" {
		config.EncryptionKey = v
	}
	if v := getenv(EnvJWTSecret); v != "" {
		config.JWTSecret = v
	}
	if v := getenv(EnvDatabaseDSN); v != "" {
		config.DatabaseDSN = v
	}
}
