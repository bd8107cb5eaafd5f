package bridge

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// Config is Initialize's input (§4.5 op 1), loaded from YAML exactly as the
// teacher's mkaddon reads its addon manifest (cmd/mkaddon/mkaddon.go's
// yaml.Unmarshal(b, &data) shape).
type Config struct {
	RuntimePath string   `yaml:"runtime_path"`
	ExtraPaths  []string `yaml:"extra_paths"`
	ThreadMode  string   `yaml:"thread_mode"`
}

// LoadConfig reads and parses a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errf(ErrRuntimeInitFailed, "reading config %s: %v", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errf(ErrRuntimeInitFailed, "parsing config %s: %v", path, err)
	}
	if cfg.ThreadMode == "" {
		cfg.ThreadMode = "single"
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{RuntimePath: %q, ExtraPaths: %v, ThreadMode: %q}", c.RuntimePath, c.ExtraPaths, c.ThreadMode)
}
