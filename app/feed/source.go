package feed

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRefreshInterval = 300 // seconds
)

// ResolveSource returns defaults when path is empty, otherwise the YAML
// source at path with unset fields taken from defaults.
func ResolveSource(path string, defaults Source) (*Source, error) {
	if path == "" {
		source := defaults
		source.applyDefaults()
		if err := validateSource(&source); err != nil {
			return nil, fmt.Errorf("invalid source: %w", err)
		}
		return &source, nil
	}

	source, err := parseSource(path)
	if err != nil {
		return nil, err
	}

	if source.Name == "" {
		// Derive name from filename (without extension)
		base := filepath.Base(path)
		source.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	source.FeedURL = cmp.Or(source.FeedURL, defaults.FeedURL)
	source.AggregatorURL = cmp.Or(source.AggregatorURL, defaults.AggregatorURL)
	source.Settings.RefreshInterval = cmp.Or(source.Settings.RefreshInterval, defaults.Settings.RefreshInterval)
	source.Settings.Timeout = cmp.Or(source.Settings.Timeout, defaults.Settings.Timeout)
	source.applyDefaults()

	if err := validateSource(source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", path, err)
	}

	slog.Debug("Source loaded", "source", source.Name, "feed_url", source.FeedURL, "refresh_interval", source.Settings.RefreshInterval)

	return source, nil
}

func (s *Source) RefreshEvery() time.Duration {
	return time.Duration(s.Settings.RefreshInterval) * time.Second
}

func (s *Source) Timeout() time.Duration {
	return time.Duration(s.Settings.Timeout) * time.Second
}

func (s *Source) applyDefaults() {
	if s.Settings.RefreshInterval == 0 {
		s.Settings.RefreshInterval = DefaultRefreshInterval
	}
	if s.Name == "" {
		s.Name = "default"
	}
}

func parseSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &source, nil
}

func validateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}

	requiredURLs := []struct {
		name  string
		value string
	}{
		{"feed URL", source.FeedURL},
		{"aggregator URL", source.AggregatorURL},
	}

	for _, field := range requiredURLs {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
		u, err := url.Parse(field.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL: %s", field.name, field.value)
		}
	}

	nonNegativeFields := map[string]int{
		"refresh interval": source.Settings.RefreshInterval,
		"timeout":          source.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}
