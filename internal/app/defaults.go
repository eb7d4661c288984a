package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetDefaults resolves where gss keeps its config file and its data (the
// SQLite record store, staging and logs). A .env file in the working
// directory is read first so a checkout can point GSS_HOME at a scratch
// directory; variables already exported take precedence over it.
//
//   - GSS_CONFIG_PATH overrides ~/.config/gss.toml
//   - GSS_HOME overrides ~/.local/share/gss; logs go to $GSS_HOME/log
func GetDefaults() (map[string]string, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	configPath, err := envOrHome("GSS_CONFIG_PATH", ".config", "gss.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("GSS_HOME", ".local", "share", "gss")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns $key, or the path under the user's home directory.
func envOrHome(key string, rel ...string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving %s: no home directory: %w", key, err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}
