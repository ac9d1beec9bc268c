package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var GistapiVersion = "0.1.0"

// Not using nested structs because the keys are written
// with a dot notation in the config file
type Config struct {
	LogLevel  string `yaml:"log-level"`
	LogOutput string `yaml:"log-output"`
	LogFile   string `yaml:"log-file"`

	HttpHost      string `yaml:"http.host"`
	HttpPort      string `yaml:"http.port"`
	HttpBodyLimit string `yaml:"http.body-limit"`

	GithubApiUrl           string `yaml:"github.api-url"`
	GithubToken            string `yaml:"github.token"`
	GithubTimeout          string `yaml:"github.timeout"`
	GithubPerPage          int    `yaml:"github.per-page"`
	GithubFollowPagination bool   `yaml:"github.follow-pagination"`
	GithubMaxRetries       uint64 `yaml:"github.max-retries"`
	GithubRetryInterval    string `yaml:"github.retry-interval"`

	SearchAccumulate     bool   `yaml:"search.accumulate"`
	SearchConcurrency    int    `yaml:"search.concurrency"`
	SearchMaxContentSize string `yaml:"search.max-content-size"`

	CacheEnabled bool   `yaml:"cache.enabled"`
	CacheTTL     string `yaml:"cache.ttl"`
	CacheMaxSize string `yaml:"cache.max-size"`

	MetricsEnabled bool `yaml:"metrics.enabled"`
}

func configWithDefaults() *Config {
	c := &Config{}

	c.LogLevel = "warn"
	c.LogOutput = "stdout"
	c.LogFile = filepath.Join(os.TempDir(), "gistapi.log")

	c.HttpHost = "0.0.0.0"
	c.HttpPort = "8000"
	c.HttpBodyLimit = "1M"

	c.GithubApiUrl = "https://api.github.com/"
	c.GithubTimeout = "30s"
	c.GithubPerPage = 0
	c.GithubFollowPagination = false
	c.GithubMaxRetries = 0
	c.GithubRetryInterval = "500ms"

	c.SearchAccumulate = false
	c.SearchConcurrency = 1
	c.SearchMaxContentSize = "10MB"

	c.CacheEnabled = false
	c.CacheTTL = "5m"
	c.CacheMaxSize = "64MB"

	c.MetricsEnabled = false

	return c
}

// Load returns the configuration built from the defaults, the optional YAML
// file at configPath and the YAML held by the CONFIG environment variable,
// in that order of precedence.
func Load(configPath string, out io.Writer) (*Config, error) {
	c := configWithDefaults()

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		_, _ = fmt.Fprintln(out, "Using config file: "+configPath)

		// Override default values with values from config.yml
		d := yaml.NewDecoder(file)
		if err = d.Decode(c); err != nil && err != io.EOF {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
	}

	// Override default values with environment variables (as yaml)
	configEnv := os.Getenv("CONFIG")
	if configEnv != "" {
		_, _ = fmt.Fprintln(out, "Using config from environment variable: CONFIG")
		d := yaml.NewDecoder(strings.NewReader(configEnv))
		if err := d.Decode(c); err != nil && err != io.EOF {
			return nil, fmt.Errorf("could not parse CONFIG environment variable: %w", err)
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	for _, d := range []struct{ key, value string }{
		{"github.timeout", c.GithubTimeout},
		{"github.retry-interval", c.GithubRetryInterval},
		{"cache.ttl", c.CacheTTL},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", d.key, err)
		}
	}

	for _, s := range []struct{ key, value string }{
		{"http.body-limit", c.HttpBodyLimit},
		{"search.max-content-size", c.SearchMaxContentSize},
		{"cache.max-size", c.CacheMaxSize},
	} {
		if _, err := humanize.ParseBytes(s.value); err != nil {
			return fmt.Errorf("invalid size for %s: %w", s.key, err)
		}
	}

	if c.SearchConcurrency < 1 {
		return fmt.Errorf("search.concurrency must be at least 1, got %d", c.SearchConcurrency)
	}
	if c.GithubPerPage < 0 || c.GithubPerPage > 100 {
		return fmt.Errorf("github.per-page must be between 0 and 100, got %d", c.GithubPerPage)
	}
	if c.CacheEnabled && c.CacheMaxSizeBytes() == 0 {
		return fmt.Errorf("cache.max-size must be greater than 0 when the cache is enabled")
	}

	return nil
}

func (c *Config) HttpAddr() string {
	return c.HttpHost + ":" + c.HttpPort
}

// The getters below are only valid on a configuration returned by Load.

func (c *Config) GithubTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.GithubTimeout)
	return d
}

func (c *Config) GithubRetryIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.GithubRetryInterval)
	return d
}

func (c *Config) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

func (c *Config) SearchMaxContentSizeBytes() int64 {
	n, _ := humanize.ParseBytes(c.SearchMaxContentSize)
	return int64(n)
}

func (c *Config) HttpBodyLimitBytes() int64 {
	n, _ := humanize.ParseBytes(c.HttpBodyLimit)
	return int64(n)
}

func (c *Config) CacheMaxSizeBytes() int64 {
	n, _ := humanize.ParseBytes(c.CacheMaxSize)
	return int64(n)
}

func InitLog(c *Config) {
	var writers []io.Writer
	for _, output := range strings.Split(c.LogOutput, ",") {
		switch strings.TrimSpace(output) {
		case "stdout":
			writers = append(writers, zerolog.NewConsoleWriter())
		case "file":
			if err := os.MkdirAll(filepath.Dir(c.LogFile), 0755); err != nil {
				panic(err)
			}
			file, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				panic(err)
			}
			writers = append(writers, file)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.NewConsoleWriter())
	}
	multi := zerolog.MultiLevelWriter(writers...)

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	log.Logger = zerolog.New(multi).Level(level).With().Timestamp().Logger()
}
