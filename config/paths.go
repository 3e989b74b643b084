package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
)

// ConfigDir returns the sharebridge config directory (~/.sharebridge).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return expandDir(configDirOverride)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sharebridge"), nil
}

// ConfigPath returns the default YAML config path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ImagesPath returns the shared-image directory, expanding ~ if needed.
func (c *Config) ImagesPath() (string, error) {
	if c.Images.Dir != "" {
		return expandDir(c.Images.Dir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, runtimecfg.ImagesDirName), nil
}

func expandDir(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if dir == "~" {
			return home, nil
		}
		return filepath.Join(home, dir[2:]), nil
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
