// Package config loads the .nexscan.yml configuration file and applies
// environment overrides for server location and credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds scanner settings. Credentials normally come from the
// environment rather than the file.
type Config struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	TrivyPath     string `yaml:"trivy_path,omitempty"`
	TrivyTemplate string `yaml:"trivy_template,omitempty"`

	OutputDir     string `yaml:"output_dir,omitempty"`
	Format        string `yaml:"format,omitempty"`
	RetainReports bool   `yaml:"retain_reports,omitempty"`
	Debug         bool   `yaml:"debug,omitempty"`
}

// Load reads .nexscan.yml or .nexscan.yaml from the given directory. If dir
// is a file, its parent directory is used. If no config file is found, a
// default Config is returned (not an error). Environment overrides are
// applied last.
func Load(dir string) (Config, error) {
	cfg := defaults()

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		for _, name := range []string{".nexscan.yml", ".nexscan.yaml"} {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return Config{}, fmt.Errorf("reading %s: %w", path, err)
			}
			if info.Size() > 1<<20 {
				return Config{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("reading %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
			break
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		TrivyPath: "trivy",
		OutputDir: "./vulnerability_reports",
		Format:    "terminal",
	}
}

// applyEnv lets the environment override file settings, so credentials
// never have to live on disk.
func applyEnv(cfg *Config) {
	for env, target := range map[string]*string{
		"NEXSCAN_URL":        &cfg.URL,
		"NEXSCAN_USERNAME":   &cfg.Username,
		"NEXSCAN_PASSWORD":   &cfg.Password,
		"NEXSCAN_TRIVY":      &cfg.TrivyPath,
		"NEXSCAN_OUTPUT_DIR": &cfg.OutputDir,
	} {
		if v := os.Getenv(env); v != "" {
			*target = v
		}
	}
}

// Validate checks that a loaded config can drive a scan session.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("server URL is required (set url in .nexscan.yml or NEXSCAN_URL)")
	}
	if c.TrivyPath == "" {
		return errors.New("trivy path is required")
	}
	return nil
}
