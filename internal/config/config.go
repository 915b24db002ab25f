package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a receiptgen run.
type Config struct {
	DSN           string
	LogFormat     string // "text" or "json"
	ConfigPath    string
	SnapshotPaths []string
	OutPath       string
	MasterYAML    string
	MasterParquet string
	MasterFile    string // master-load input
	Force         bool   // overwrite an existing output file, or re-import a loaded master
	KeepStaging   bool

	// Set from the YAML config file.
	StrictServiceCodes  bool
	StrictPayerLinks    bool
	AppendEOF           bool
	PrefetchConcurrency int
	Concurrency         int
}

// Defaults returns a Config with the values used when no config file is given.
func Defaults() Config {
	return Config{
		LogFormat:           "text",
		AppendEOF:           true,
		PrefetchConcurrency: 8,
		Concurrency:         4,
	}
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Policy struct {
		StrictServiceCodes *bool `yaml:"strict_service_codes"`
		StrictPayerLinks   *bool `yaml:"strict_payer_links"`
	} `yaml:"policy"`
	Encoding struct {
		AppendEOF *bool `yaml:"append_eof"`
	} `yaml:"encoding"`
	PrefetchConcurrency *int `yaml:"prefetch_concurrency"`
	Concurrency         *int `yaml:"concurrency"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Keys absent from the file leave the current values untouched.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if v := yc.Policy.StrictServiceCodes; v != nil {
		c.StrictServiceCodes = *v
	}
	if v := yc.Policy.StrictPayerLinks; v != nil {
		c.StrictPayerLinks = *v
	}
	if v := yc.Encoding.AppendEOF; v != nil {
		c.AppendEOF = *v
	}
	if v := yc.PrefetchConcurrency; v != nil {
		c.PrefetchConcurrency = *v
	}
	if v := yc.Concurrency; v != nil {
		c.Concurrency = *v
	}
	return c.validateConcurrency()
}

func (c *Config) validateConcurrency() error {
	if c.PrefetchConcurrency < 1 || c.PrefetchConcurrency > 64 {
		return fmt.Errorf("prefetch_concurrency must be within 1..64, got %d", c.PrefetchConcurrency)
	}
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be within 1..64, got %d", c.Concurrency)
	}
	return nil
}

// Validate checks the snapshot inputs shared by generate and plan, and that
// exactly one master source is configured.
func (c *Config) Validate() error {
	if len(c.SnapshotPaths) == 0 {
		return fmt.Errorf("--snapshot is required")
	}
	for _, p := range c.SnapshotPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("snapshot not accessible: %w", err)
		}
	}
	sources := 0
	for _, s := range []string{c.MasterYAML, c.MasterParquet, c.DSN} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of --master, --master-parquet or --dsn is required")
	}
	return c.validateConcurrency()
}

// ValidateGenerate additionally checks the output path.
func (c *Config) ValidateGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.OutPath == "" {
		return fmt.Errorf("--out is required")
	}
	if _, err := os.Stat(c.OutPath); err == nil && !c.Force {
		return fmt.Errorf("output %s already exists (use --force to overwrite)", c.OutPath)
	}
	return nil
}

// ValidateMasterLoad checks the inputs of the master-load command.
func (c *Config) ValidateMasterLoad() error {
	if err := c.ValidateWithDSN(); err != nil {
		return err
	}
	if c.MasterFile == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.MasterFile); err != nil {
		return fmt.Errorf("master file not accessible: %w", err)
	}
	return nil
}

// ValidateWithDSN checks the DSN for database-only commands.
func (c *Config) ValidateWithDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or RECEIPTGEN_DB_URL is required")
	}
	return nil
}
