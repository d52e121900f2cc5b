package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/pds-migration-workbench/internal/migration"
)

// ServerConfig is a pre-configured PDS account session in the config file.
type ServerConfig struct {
	Name        string `yaml:"name"`
	Role        string `yaml:"role"` // "source" or "destination"
	Scheme      string `yaml:"scheme"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Handle      string `yaml:"handle"`
	AccessToken string `yaml:"access_token"` // $VAR references are expanded
	Insecure    bool   `yaml:"insecure"`
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Host, validation.Required),
		validation.Field(&s.Role, validation.In("source", "destination")),
		validation.Field(&s.Scheme, validation.In("http", "https")),
		validation.Field(&s.Port, validation.Min(0), validation.Max(65535)),
	)
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config holds all configuration (CLI flags + config file).
type Config struct {
	Listen         string                  `yaml:"listen"`
	Log            LogConfig               `yaml:"log"`
	WorkDir        string                  `yaml:"workdir"`
	HistoryFile    string                  `yaml:"history_file"`
	RequestTimeout time.Duration           `yaml:"request_timeout"`
	Retries        uint64                  `yaml:"retries"`
	Monitor        migration.MonitorConfig `yaml:"monitor"`
	Servers        []ServerConfig          `yaml:"servers"`

	ShowVersion bool `yaml:"-"`

	// internal: path to config file (from CLI flag)
	configFile string
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Listen:         ":8080",
		Log:            LogConfig{Level: "info"},
		WorkDir:        "workbench-data",
		RequestTimeout: 30 * time.Second,
		Retries:        3,
		Monitor:        migration.DefaultMonitorConfig(),
	}
}

// Parse reads CLI flags, then overlays config file values read from fsys.
// CLI flags take precedence over config file values.
func Parse(fsys afero.Fs, args []string) (*Config, error) {
	c := Default()
	fs := pflag.NewFlagSet("workbench", pflag.ContinueOnError)
	fs.StringVarP(&c.configFile, "config", "c", "", "Path to config file (YAML)")
	fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&c.Log.JSON, "log-json", c.Log.JSON, "Emit JSON logs")
	fs.StringVar(&c.WorkDir, "workdir", c.WorkDir, "Directory for backups and export artifacts")
	fs.StringVar(&c.HistoryFile, "history", "", "Migration history file (default <workdir>/history.json)")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Timeout for each remote call")
	fs.Uint64Var(&c.Retries, "retries", c.Retries, "Retries for read-only remote calls")
	fs.DurationVar(&c.Monitor.MaxDuration, "max-duration", c.Monitor.MaxDuration, "Emergency stop after this long")
	fs.BoolVarP(&c.ShowVersion, "version", "v", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.configFile != "" {
		if err := c.loadFile(fsys, c.configFile, fs); err != nil {
			return nil, err
		}
	}

	if c.HistoryFile == "" {
		c.HistoryFile = filepath.Join(c.WorkDir, "history.json")
	}
	for i := range c.Servers {
		c.Servers[i].applyDefaults()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding CLI flag was not explicitly set.
func (c *Config) loadFile(fsys afero.Fs, path string, flags *pflag.FlagSet) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	file := Default()
	file.Listen, file.WorkDir, file.Log.Level = "", "", ""
	if err := yaml.Unmarshal(data, file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	set := func(name string, apply func()) {
		if !flags.Changed(name) {
			apply()
		}
	}
	if file.Listen != "" {
		set("listen", func() { c.Listen = file.Listen })
	}
	if file.Log.Level != "" {
		set("log-level", func() { c.Log.Level = file.Log.Level })
	}
	set("log-json", func() { c.Log.JSON = c.Log.JSON || file.Log.JSON })
	if file.WorkDir != "" {
		set("workdir", func() { c.WorkDir = file.WorkDir })
	}
	if file.HistoryFile != "" {
		set("history", func() { c.HistoryFile = file.HistoryFile })
	}
	set("request-timeout", func() { c.RequestTimeout = file.RequestTimeout })
	set("retries", func() { c.Retries = file.Retries })

	maxDuration := c.Monitor.MaxDuration
	c.Monitor = file.Monitor
	if flags.Changed("max-duration") {
		c.Monitor.MaxDuration = maxDuration
	}

	// Servers always come from config file
	c.Servers = file.Servers
	return nil
}

func (s *ServerConfig) applyDefaults() {
	if s.Scheme == "" {
		s.Scheme = "https"
	}
	if s.Port == 0 {
		if s.Scheme == "https" {
			s.Port = 443
		} else {
			s.Port = 80
		}
	}
	if s.Name == "" {
		s.Name = s.Host
	}
	s.AccessToken = os.ExpandEnv(s.AccessToken)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required,
			validation.In("trace", "debug", "info", "warn", "error")),
	)
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Log),
		validation.Field(&c.WorkDir, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Retries, validation.Max(uint64(10))),
		validation.Field(&c.Servers),
	); err != nil {
		return err
	}
	m := &c.Monitor
	return validation.ValidateStruct(m,
		validation.Field(&m.CheckInterval, validation.Required),
		validation.Field(&m.MaxDuration, validation.Required),
		validation.Field(&m.StuckThreshold, validation.Required),
		validation.Field(&m.ActiveStuckThreshold, validation.Required),
		validation.Field(&m.MaxConsecutiveStuck, validation.Min(0)),
		validation.Field(&m.MemoryPressureLimit, validation.Min(0.0), validation.Max(1.0)),
	)
}
