package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Server configuration
	Host      string `long:"host" env:"HOST" default:"0.0.0.0" description:"HTTP listen host"`
	Port      string `long:"port" env:"PORT" default:"5000" description:"HTTP server port"`
	Env       string `long:"env" env:"APP_ENV" default:"production" choice:"development" choice:"production" description:"Environment mode"`
	BaseUrl   string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	StaticDir string `long:"static-dir" env:"STATIC_DIR" description:"Directory with the built client to serve (optional)"`

	// Upstream configuration
	AggregatorURL   string `long:"aggregator-url" env:"AGGREGATOR_URL" default:"https://api.rss2json.com/v1/api.json" description:"RSS-to-JSON aggregator endpoint"`
	FeedURL         string `long:"feed-url" env:"FEED_URL" default:"https://medium.com/@kingsillu/feed" description:"Source RSS feed URL passed to the aggregator"`
	SourceFile      string `long:"source-file" env:"SOURCE_FILE" description:"YAML file overriding the feed source (optional)"`
	RefreshInterval int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"300" description:"Background refresh interval in seconds"`
	UpstreamTimeout int    `long:"upstream-timeout" env:"UPSTREAM_TIMEOUT" default:"0" description:"Upstream request timeout in seconds (0 uses the HTTP client default)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"KingsFeeds/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for rendered dates (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses command-line flags and environment variables. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs is Load with explicit arguments; nil means os.Args.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.RefreshInterval < 0 {
		return nil, fmt.Errorf("refresh interval must be non-negative")
	}
	if raw.UpstreamTimeout < 0 {
		return nil, fmt.Errorf("upstream timeout must be non-negative")
	}

	cfg := &Cfg{
		Host:            raw.Host,
		Port:            raw.Port,
		Env:             raw.Env,
		BaseUrl:         raw.BaseUrl,
		StaticDir:       raw.StaticDir,
		AggregatorURL:   raw.AggregatorURL,
		FeedURL:         raw.FeedURL,
		SourceFile:      raw.SourceFile,
		RefreshInterval: raw.RefreshInterval,
		UpstreamTimeout: raw.UpstreamTimeout,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
