package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/examvault/internal/flagx"
	"github.com/dmitrijs2005/examvault/internal/timex"
	"gopkg.in/yaml.v3"
)

// JsonConfig mirrors Config for config files. Files ending in .yaml or .yml
// are read as YAML, everything else as JSON. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Absent fields keep the
// value already in Config.
type JsonConfig struct {
	EndpointAddr                *string         `json:"endpoint_addr" yaml:"endpoint_addr"`
	DatabaseDSN                 *string         `json:"database_dsn" yaml:"database_dsn"`
	JWTSecret                   *string         `json:"jwt_secret" yaml:"jwt_secret"`
	EncryptionKey               *string         `json:"encryption_key" yaml:"encryption_key"`
	UploadDir                   *string         `json:"upload_dir" yaml:"upload_dir"`
	MaxUploadSize               *int64          `json:"max_upload_size" yaml:"max_upload_size"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	LogLevel                    *string         `json:"log_level" yaml:"log_level"`
}

// parseJSON overlays the file named by -c or -config, if any.
func parseJSON(config *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.EncryptionKey, c.EncryptionKey)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.LogLevel, c.LogLevel)
	if c.MaxUploadSize != nil {
		config.MaxUploadSize = *c.MaxUploadSize
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
