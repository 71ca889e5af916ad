package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/format"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultBaseURI        = "https://flus.fm"
	defaultOutputDir      = "/tmp/onair"
	defaultListenAddr     = ":8080"
	defaultTickInterval   = time.Second
	defaultReconnectDelay = 3 * time.Second
	cacheFilename         = "onair.db"
)

// Station is one configured station subscription
type Station struct {
	Shortcode string `mapstructure:"shortcode"`
	// Timezone is used when the server does not report one
	Timezone string `mapstructure:"timezone"`
}

type fileConfig struct {
	BaseURI          string        `mapstructure:"base_uri"`
	Stations         []Station     `mapstructure:"stations"`
	Autoplay         bool          `mapstructure:"autoplay"`
	VideoPlayerURL   string        `mapstructure:"video_player_url"`
	TranslationsFile string        `mapstructure:"translations_file"`
	TemplateFile     string        `mapstructure:"template_file"`
	OutputDir        string        `mapstructure:"output_dir"`
	CachePath        string        `mapstructure:"cache_path"`
	ListenAddr       string        `mapstructure:"listen_addr"`
	Notify           bool          `mapstructure:"notify"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	LocalTimezone    string        `mapstructure:"local_timezone"`
}

// AppConfig holds application configuration
type AppConfig struct {
	logger   *zap.Logger
	cfg      fileConfig
	location *time.Location
}

// NewAppConfig loads configuration from config.yaml (or $ONAIR_CONFIG) and
// ONAIR_* environment variables
func NewAppConfig(logger *zap.Logger) (*AppConfig, error) {
	v := viper.New()

	if path := os.Getenv("ONAIR_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "onair"))
		}
	}

	return Load(v, logger)
}

// Load reads configuration through v
func Load(v *viper.Viper, logger *zap.Logger) (*AppConfig, error) {
	v.SetEnvPrefix("ONAIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_uri", defaultBaseURI)
	v.SetDefault("stations", []map[string]string{
		{"shortcode": "flus.fm", "timezone": "Etc/UTC"},
	})
	v.SetDefault("autoplay", false)
	v.SetDefault("video_player_url", "")
	v.SetDefault("translations_file", "")
	v.SetDefault("template_file", "")
	v.SetDefault("output_dir", defaultOutputDir)
	v.SetDefault("cache_path", "")
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("notify", false)
	v.SetDefault("tick_interval", defaultTickInterval)
	v.SetDefault("reconnect_delay", defaultReconnectDelay)
	v.SetDefault("local_timezone", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Info("config.yaml not found, using defaults and environment")
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	fc.OutputDir = expandPath(fc.OutputDir)
	if fc.CachePath == "" {
		fc.CachePath = filepath.Join(fc.OutputDir, cacheFilename)
	}
	fc.CachePath = expandPath(fc.CachePath)

	c := &AppConfig{logger: logger, cfg: fc, location: time.Local}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if fc.LocalTimezone != "" {
		loc, err := time.LoadLocation(fc.LocalTimezone)
		if err != nil {
			return nil, fmt.Errorf("invalid local_timezone '%s': %w", fc.LocalTimezone, err)
		}
		c.location = loc
	}

	logger.Info("Configuration loaded",
		zap.String("baseURI", fc.BaseURI),
		zap.Int("stations", len(fc.Stations)),
		zap.String("outputDir", fc.OutputDir),
		zap.String("listenAddr", fc.ListenAddr),
		zap.Bool("notify", fc.Notify))

	return c, nil
}

// Validate performs basic configuration validation
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.cfg.BaseURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_uri '%s'", c.cfg.BaseURI)
	}
	if len(c.cfg.Stations) == 0 {
		return fmt.Errorf("at least one station must be configured")
	}
	// stations share page elements and thumbnails by class
	seen := make(map[string]string)
	for i, st := range c.cfg.Stations {
		if st.Shortcode == "" {
			return fmt.Errorf("station %d must have a shortcode", i)
		}
		class := format.KebabCase(st.Shortcode)
		if class == "" {
			return fmt.Errorf("station '%s' has no usable characters", st.Shortcode)
		}
		if prev, dup := seen[class]; dup {
			if prev == st.Shortcode {
				return fmt.Errorf("station '%s' configured twice", st.Shortcode)
			}
			return fmt.Errorf("stations '%s' and '%s' both map to class '%s'", prev, st.Shortcode, class)
		}
		seen[class] = st.Shortcode
	}
	if c.cfg.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be greater than 0")
	}
	if c.cfg.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be greater than 0")
	}
	return nil
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) > 0 && p[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

// GetBaseURI returns the station server origin
func (c *AppConfig) GetBaseURI() string {
	return strings.TrimRight(c.cfg.BaseURI, "/")
}

// GetStations returns the configured stations
func (c *AppConfig) GetStations() []Station {
	return c.cfg.Stations
}

// GetSubscriptions returns one subscription per station plus the server clock
func (c *AppConfig) GetSubscriptions() []domain.Subscription {
	subs := make([]domain.Subscription, 0, len(c.cfg.Stations)+1)
	for _, st := range c.cfg.Stations {
		subs = append(subs, domain.Subscription{
			Key:      domain.StationKey(st.Shortcode),
			Timezone: st.Timezone,
		})
	}
	return append(subs, domain.Subscription{Key: domain.ClockChannel})
}

// GetAutoplay reports whether player links request autoplay
func (c *AppConfig) GetAutoplay() bool {
	return c.cfg.Autoplay
}

// GetVideoPlayerURL returns the fixed video player URL, empty when disabled
func (c *AppConfig) GetVideoPlayerURL() string {
	return c.cfg.VideoPlayerURL
}

// GetTranslationsFile returns the translation overlay path
func (c *AppConfig) GetTranslationsFile() string {
	return c.cfg.TranslationsFile
}

// GetTemplateFile returns the page template path
func (c *AppConfig) GetTemplateFile() string {
	return c.cfg.TemplateFile
}

// GetOutputDir returns the directory for generated artwork
func (c *AppConfig) GetOutputDir() string {
	return c.cfg.OutputDir
}

// GetCachePath returns the bbolt database path
func (c *AppConfig) GetCachePath() string {
	return c.cfg.CachePath
}

// GetListenAddr returns the HTTP listen address
func (c *AppConfig) GetListenAddr() string {
	return c.cfg.ListenAddr
}

// GetNotify reports whether desktop notifications are enabled
func (c *AppConfig) GetNotify() bool {
	return c.cfg.Notify
}

// GetTickInterval returns the progress simulator period
func (c *AppConfig) GetTickInterval() time.Duration {
	return c.cfg.TickInterval
}

// GetReconnectDelay returns the delay between connection attempts
func (c *AppConfig) GetReconnectDelay() time.Duration {
	return c.cfg.ReconnectDelay
}

// GetLocalLocation returns the viewer's timezone
func (c *AppConfig) GetLocalLocation() *time.Location {
	return c.location
}
