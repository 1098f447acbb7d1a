// Package config loads and validates the YAML configuration file that
// describes every proxy this process serves.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"metrics-proxy/internal/apperr"
	"metrics-proxy/internal/filter"
)

// ListenOn describes where a proxy (or the self-telemetry endpoint)
// accepts connections.
type ListenOn struct {
	URL                    string          `yaml:"url"`
	KeyFile                string          `yaml:"key_file"`
	CertificateFile        string          `yaml:"certificate_file"`
	HeaderReadTimeout      filter.Duration `yaml:"header_read_timeout"`
	RequestResponseTimeout filter.Duration `yaml:"request_response_timeout"`

	parsed *url.URL
}

// ConnectTo describes the single upstream a proxy fetches from.
type ConnectTo struct {
	URL     string          `yaml:"url"`
	Timeout filter.Duration `yaml:"timeout"`

	parsed *url.URL
}

// Proxy is one fully validated proxy definition.
type Proxy struct {
	ListenOn      ListenOn          `yaml:"listen_on"`
	ConnectTo     ConnectTo         `yaml:"connect_to"`
	CacheDuration filter.Duration   `yaml:"cache_duration"`
	LabelFilters  []filter.RuleSpec `yaml:"label_filters"`

	Program *filter.Program
}

// Config is the fully parsed and validated top-level config file.
type Config struct {
	Proxies []Proxy   `yaml:"proxies"`
	Metrics *ListenOn `yaml:"metrics"`
}

const defaultConnectTimeout = 30 * time.Second

// RequestResponseTimeoutFor returns a listener's configured
// request-response timeout, defaulting to the upstream timeout plus 5s
// when unset.
func RequestResponseTimeoutFor(p Proxy) time.Duration {
	if p.ListenOn.RequestResponseTimeout > 0 {
		return time.Duration(p.ListenOn.RequestResponseTimeout)
	}
	return time.Duration(p.ConnectTo.Timeout) + 5*time.Second
}

// Load reads, parses, and validates a config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.ConfigInvalidError{Field: path, Err: err}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &apperr.ConfigInvalidError{Field: path, Err: err}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Proxies) == 0 {
		return &apperr.ConfigInvalidError{Field: "proxies", Err: fmt.Errorf("must not be empty")}
	}

	type bindTuple struct {
		scheme, host, port, path string
	}
	seen := make(map[bindTuple]bool)

	for i := range c.Proxies {
		p := &c.Proxies[i]
		field := fmt.Sprintf("proxies[%d]", i)

		if err := p.ListenOn.validateListen(); err != nil {
			return &apperr.ConfigInvalidError{Field: field + ".listen_on", Err: err}
		}
		if err := p.ConnectTo.validateConnect(); err != nil {
			return &apperr.ConfigInvalidError{Field: field + ".connect_to", Err: err}
		}
		if p.ConnectTo.Timeout == 0 {
			p.ConnectTo.Timeout = filter.Duration(defaultConnectTimeout)
		}
		if len(p.LabelFilters) == 0 {
			return &apperr.ConfigInvalidError{Field: field + ".label_filters", Err: fmt.Errorf("must not be empty")}
		}
		program, err := filter.Compile(p.LabelFilters)
		if err != nil {
			return &apperr.ConfigInvalidError{Field: field + ".label_filters", Err: err}
		}
		p.Program = program

		u := p.ListenOn.parsed
		tuple := bindTuple{scheme: u.Scheme, host: u.Hostname(), port: u.Port(), path: u.Path}
		if seen[tuple] {
			return &apperr.ConfigInvalidError{
				Field: field + ".listen_on.url",
				Err:   fmt.Errorf("duplicate bind tuple %s://%s:%s%s", tuple.scheme, tuple.host, tuple.port, tuple.path),
			}
		}
		seen[tuple] = true
	}

	if c.Metrics != nil {
		if err := c.Metrics.validateListen(); err != nil {
			return &apperr.ConfigInvalidError{Field: "metrics.listen_on", Err: err}
		}
	}
	return nil
}

func (l *ListenOn) validateListen() error {
	u, err := url.Parse(l.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", l.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Port() == "" {
		return fmt.Errorf("url must specify a port")
	}
	if u.Fragment != "" || u.RawQuery != "" || u.User != nil {
		return fmt.Errorf("url must not have a fragment, query, or userinfo")
	}
	switch u.Scheme {
	case "https":
		if l.KeyFile == "" || l.CertificateFile == "" {
			return fmt.Errorf("https listener requires both key_file and certificate_file")
		}
	case "http":
		if l.KeyFile != "" || l.CertificateFile != "" {
			return fmt.Errorf("http listener must not set key_file or certificate_file")
		}
	}
	l.parsed = u
	return nil
}

func (c *ConnectTo) validateConnect() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Fragment != "" || u.User != nil {
		return fmt.Errorf("url must not have a fragment or userinfo")
	}
	c.parsed = u
	return nil
}

// ParsedURL returns the validated *url.URL for a listener.
func (l *ListenOn) ParsedURL() *url.URL { return l.parsed }

// ParsedURL returns the validated *url.URL for an upstream.
func (c *ConnectTo) ParsedURL() *url.URL { return c.parsed }
