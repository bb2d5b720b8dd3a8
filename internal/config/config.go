// Package config loads and validates ledger build configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. LEDGER_RUN_LOOKBACK_DAYS.
const EnvPrefix = "LEDGER"

// Storage providers.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// Config captures all build configuration knobs loaded via Viper.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Run         RunConfig         `mapstructure:"run"`
	MusicBrainz MusicBrainzConfig `mapstructure:"musicbrainz"`
	Bandcamp    BandcampConfig    `mapstructure:"bandcamp"`
	ITunes      ITunesConfig      `mapstructure:"itunes"`
	LastFM      LastFMConfig      `mapstructure:"lastfm"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Publish     PublishConfig     `mapstructure:"publish"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RunConfig controls the shape of one build.
type RunConfig struct {
	LookbackDays   int      `mapstructure:"lookback_days"`
	OutputPrefix   string   `mapstructure:"output_prefix"`
	ReleasesObject string   `mapstructure:"releases_object"`
	TallyObject    string   `mapstructure:"tally_object"`
	Denylist       []string `mapstructure:"denylist"`
}

// SourcePolicy is the pacing contract shared by every source section.
type SourcePolicy struct {
	Delay   time.Duration `mapstructure:"delay"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MusicBrainzConfig configures the structured metadata API.
type MusicBrainzConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url"`
	UserAgent    string `mapstructure:"user_agent"`
	PageSize     int    `mapstructure:"page_size"`
	MaxRecords   int    `mapstructure:"max_records"`
	SourcePolicy `mapstructure:",squash"`
}

// TargetConfig is one Bandcamp tag page.
type TargetConfig struct {
	Tag      string `mapstructure:"tag"`
	Locality string `mapstructure:"locality"`
}

// SelectorConfig locates cards on a rendered page.
type SelectorConfig struct {
	Card   string `mapstructure:"card"`
	Title  string `mapstructure:"title"`
	Artist string `mapstructure:"artist"`
	Link   string `mapstructure:"link"`
}

// BandcampConfig configures the rendered-page scrape.
type BandcampConfig struct {
	Enabled           bool           `mapstructure:"enabled"`
	URLTemplate       string         `mapstructure:"url_template"`
	Targets           []TargetConfig `mapstructure:"targets"`
	Settle            time.Duration  `mapstructure:"settle"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout"`
	ChromePath        string         `mapstructure:"chrome_path"`
	UserAgent         string         `mapstructure:"user_agent"`
	PrimarySelector   SelectorConfig `mapstructure:"primary_selector"`
	FallbackSelector  SelectorConfig `mapstructure:"fallback_selector"`
	SourcePolicy      `mapstructure:",squash"`
}

// ITunesConfig configures the storefront feeds.
type ITunesConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Feeds        []string `mapstructure:"feeds"`
	SourcePolicy `mapstructure:",squash"`
}

// LastFMConfig configures the keyed API. The source runs only when APIKey is set.
type LastFMConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	TopArtists   int    `mapstructure:"top_artists"`
	ArtistLimit  int    `mapstructure:"artist_limit"`
	AlbumLimit   int    `mapstructure:"album_limit"`
	SourcePolicy `mapstructure:",squash"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	Provider string             `mapstructure:"provider"`
	Local    LocalStorageConfig `mapstructure:"local"`
	GCS      GCSStorageConfig   `mapstructure:"gcs"`
}

// LocalStorageConfig writes artifacts under BaseDir.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSStorageConfig writes artifacts to a bucket.
type GCSStorageConfig struct {
	Bucket       string `mapstructure:"bucket"`
	CacheControl string `mapstructure:"cache_control"`
}

// ArchiveConfig enables the Postgres snapshot archive when a DSN is set.
type ArchiveConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds connection details for the archive.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PublishConfig enables snapshot notifications when a topic is set.
type PublishConfig struct {
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig selects where run metrics are exported.
type MetricsConfig struct {
	TextfilePath   string `mapstructure:"textfile_path"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindLegacyEnv keeps the unprefixed variable names used by existing deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"musicbrainz.user_agent": "MB_USER_AGENT",
		"lastfm.api_key":         "LASTFM_API_KEY",
	}
	for key, env := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("run.lookback_days", 60)
	v.SetDefault("run.output_prefix", "data")
	v.SetDefault("run.releases_object", "releases.json")
	v.SetDefault("run.tally_object", "tally.json")

	v.SetDefault("musicbrainz.enabled", true)
	v.SetDefault("musicbrainz.base_url", "https://musicbrainz.org/ws/2/release")
	v.SetDefault("musicbrainz.user_agent", "CanadianMusicLedger/1.0.0 (https://github.com/JakeFAU/canadian-music-ledger)")
	v.SetDefault("musicbrainz.page_size", 100)
	v.SetDefault("musicbrainz.max_records", 500)
	v.SetDefault("musicbrainz.delay", 1200*time.Millisecond)
	v.SetDefault("musicbrainz.timeout", 20*time.Second)

	v.SetDefault("bandcamp.enabled", true)
	v.SetDefault("bandcamp.url_template", "https://bandcamp.com/discover/{tag}")
	v.SetDefault("bandcamp.settle", 4*time.Second)
	v.SetDefault("bandcamp.navigation_timeout", 30*time.Second)
	v.SetDefault("bandcamp.delay", 3*time.Second)
	v.SetDefault("bandcamp.timeout", 45*time.Second)

	v.SetDefault("itunes.enabled", true)
	v.SetDefault("itunes.feeds", []string{
		"https://itunes.apple.com/ca/rss/topalbums/limit=100/json",
		"https://itunes.apple.com/ca/rss/newmusic/limit=100/json",
	})
	v.SetDefault("itunes.delay", 500*time.Millisecond)
	v.SetDefault("itunes.timeout", 15*time.Second)

	v.SetDefault("lastfm.api_key", "")
	v.SetDefault("lastfm.base_url", "https://ws.audioscrobbler.com/2.0/")
	v.SetDefault("lastfm.top_artists", 100)
	v.SetDefault("lastfm.artist_limit", 50)
	v.SetDefault("lastfm.album_limit", 5)
	v.SetDefault("lastfm.delay", 250*time.Millisecond)
	v.SetDefault("lastfm.timeout", 10*time.Second)

	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.local.base_dir", ".")
	v.SetDefault("storage.gcs.cache_control", "no-cache, max-age=0")

	v.SetDefault("archive.postgres.table", "ledger_snapshots")
	v.SetDefault("metrics.job_name", "ledger_build")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.LookbackDays <= 0 {
		return fmt.Errorf("run.lookback_days must be > 0")
	}
	if strings.TrimSpace(c.Run.ReleasesObject) == "" || strings.TrimSpace(c.Run.TallyObject) == "" {
		return fmt.Errorf("run.releases_object and run.tally_object are required")
	}
	if c.Run.ReleasesObject == c.Run.TallyObject {
		return fmt.Errorf("run.releases_object and run.tally_object must differ")
	}
	if c.MusicBrainz.Enabled {
		if strings.TrimSpace(c.MusicBrainz.UserAgent) == "" {
			return fmt.Errorf("musicbrainz.user_agent must identify the client")
		}
		if c.MusicBrainz.PageSize <= 0 || c.MusicBrainz.PageSize > 100 {
			return fmt.Errorf("musicbrainz.page_size must be between 1 and 100")
		}
		if c.MusicBrainz.MaxRecords <= 0 {
			return fmt.Errorf("musicbrainz.max_records must be > 0")
		}
	}
	if c.Bandcamp.Enabled && !strings.Contains(c.Bandcamp.URLTemplate, "{tag}") {
		return fmt.Errorf("bandcamp.url_template must contain {tag}")
	}
	for name, p := range map[string]SourcePolicy{
		"musicbrainz": c.MusicBrainz.SourcePolicy,
		"bandcamp":    c.Bandcamp.SourcePolicy,
		"itunes":      c.ITunes.SourcePolicy,
		"lastfm":      c.LastFM.SourcePolicy,
	} {
		if p.Delay < 0 || p.Timeout < 0 {
			return fmt.Errorf("%s.delay and %s.timeout must be >= 0", name, name)
		}
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if strings.TrimSpace(c.Storage.Local.BaseDir) == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local provider")
		}
	case ProviderGCS:
		if strings.TrimSpace(c.Storage.GCS.Bucket) == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage.provider must be one of local, gcs, memory (got %q)", c.Storage.Provider)
	}
	if c.Publish.PubSub.TopicID != "" && c.Publish.PubSub.ProjectID == "" {
		return fmt.Errorf("publish.pubsub.project_id is required when a topic is set")
	}
	return nil
}

// ObjectPath joins the output prefix and an object name with a forward slash.
func (c RunConfig) ObjectPath(name string) string {
	prefix := strings.Trim(c.OutputPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
