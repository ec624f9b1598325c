package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"vmdbg/hv/log"
)

const defaultControlPort = 7733

type Config struct {
	Control ControlConfig `toml:"control"`
}

type ControlConfig struct {
	Port int `toml:"port"`
}

var ConfigDir string = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("vmdbg")
	if err := configdir.MakePath(dir); err != nil {
		log.ModHv.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})()

const cfgFilename = "config.toml"

// LoadConfigOrDefault loads the configuration from the vmdbg config
// directory, or provides a default one.
func LoadConfigOrDefault() Config {
	var cfg Config
	_, err := toml.DecodeFile(filepath.Join(ConfigDir, cfgFilename), &cfg)
	if err != nil || cfg.Control.Port == 0 {
		cfg.Control.Port = defaultControlPort
	}
	return cfg
}

// SaveConfig into the vmdbg config directory.
func SaveConfig(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(ConfigDir, cfgFilename), buf, 0644)
}
