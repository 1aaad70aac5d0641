// Package config loads session and transport settings from YAML.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/logging"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config is the root of a configuration file
type Config struct {
	Session SessionConfig `yaml:"session"`
	REST    RESTConfig    `yaml:"rest"`
}

// SessionConfig configures session behaviour
type SessionConfig struct {
	MaxRowsFetched          int    `yaml:"max_rows_fetched"`
	FetchChunkSize          int    `yaml:"fetch_chunk_size"`
	CacheColumnInfo         *bool  `yaml:"cache_column_info"`
	ColumnInfoCacheSize     int    `yaml:"column_info_cache_size"`
	SpeculativeColumnLookup bool   `yaml:"speculative_column_lookup"`
	LogLevel                string `yaml:"log_level"`
}

// RESTConfig configures the HTTP transport
type RESTConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Load reads a configuration file
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open config %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a configuration
func Parse(r io.Reader) (*Config, error) {
	conf := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Session.MaxRowsFetched < 0 {
		errs = multierror.Append(errs, fmt.Errorf("session.max_rows_fetched must not be negative"))
	}
	if c.Session.FetchChunkSize < 0 {
		errs = multierror.Append(errs, fmt.Errorf("session.fetch_chunk_size must not be negative"))
	}
	if c.Session.ColumnInfoCacheSize < 0 {
		errs = multierror.Append(errs, fmt.Errorf("session.column_info_cache_size must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Session.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("session.log_level: %w", err))
	}
	if c.REST.BaseURL != "" {
		u, err := url.Parse(c.REST.BaseURL)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rest.base_url: %w", err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = multierror.Append(errs, fmt.Errorf("rest.base_url must use http or https"))
		}
	}
	if c.REST.Timeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf("rest.timeout must not be negative"))
	}
	return errs.ErrorOrNil()
}

// Options builds session options, writing logs to w
func (c *Config) Options(w io.Writer) *castable.Options {
	opts := castable.DefaultOptions()
	if c.Session.MaxRowsFetched > 0 {
		opts.MaxRowsFetched = c.Session.MaxRowsFetched
	}
	if c.Session.FetchChunkSize > 0 {
		opts.FetchChunkSize = c.Session.FetchChunkSize
	}
	if c.Session.CacheColumnInfo != nil {
		opts.CacheColumnInfo = *c.Session.CacheColumnInfo
	}
	if c.Session.ColumnInfoCacheSize > 0 {
		opts.ColumnInfoCacheSize = c.Session.ColumnInfoCacheSize
	}
	opts.SpeculativeColumnLookup = c.Session.SpeculativeColumnLookup
	level, _ := logging.ParseLevel(c.Session.LogLevel)
	if w != nil {
		opts.Logger = logging.New(level, w)
	} else {
		l := logging.ToSlog(level)
		opts.LogLevel = &l
	}
	return opts
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Session.LogLevel)
	return logging.ToSlog(level)
}
