// Package config loads calm coach settings. Precedence, highest first:
// environment variables, project file (.calmcoach.yaml in the working
// directory or a parent), user file ($XDG_CONFIG_HOME/calmcoach/config.yaml),
// built-in defaults. A .env file is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid is returned when a setting is out of range.
var ErrInvalid = errors.New("invalid config")

const (
	appName           = "calmcoach"
	projectConfigName = ".calmcoach.yaml"
)

// Supported narration languages.
var Languages = []string{"en-US", "bn-BD"}

// Prosody bounds for voice rate and pitch.
const (
	MinProsody = 0.6
	MaxProsody = 1.6
)

// Config holds all settings.
type Config struct {
	Voice   VoiceConfig   `mapstructure:"voice"`
	Azure   AzureConfig   `mapstructure:"azure"`
	Journal JournalConfig `mapstructure:"journal"`
	Coach   CoachConfig   `mapstructure:"coach"`
	Listen  ListenConfig  `mapstructure:"listen"`
	Log     LogConfig     `mapstructure:"log"`
}

// VoiceConfig controls narration.
type VoiceConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Lang      string  `mapstructure:"lang"`
	Name      string  `mapstructure:"name"`
	Rate      float64 `mapstructure:"rate"`
	Pitch     float64 `mapstructure:"pitch"`
	CacheDir  string  `mapstructure:"cache_dir"`
	DiskCache bool    `mapstructure:"disk_cache"`
}

// AzureConfig holds speech service credentials.
type AzureConfig struct {
	Key    string `mapstructure:"key"`
	Region string `mapstructure:"region"`
}

// JournalConfig selects where finished sessions are logged.
type JournalConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// CoachConfig holds routine defaults.
type CoachConfig struct {
	Chime           bool          `mapstructure:"chime"`
	Pattern         string        `mapstructure:"pattern"`
	BreathCycles    int           `mapstructure:"breath_cycles"`
	GazeRounds      int           `mapstructure:"gaze_rounds"`
	GazeInterval    time.Duration `mapstructure:"gaze_interval"`
	ExposureSeconds int           `mapstructure:"exposure_seconds"`
	ExposurePrompts int           `mapstructure:"exposure_prompts"`
	MeetingType     string        `mapstructure:"meeting_type"`
	PracticeSeconds int           `mapstructure:"practice_seconds"`
	PracticeRounds  int           `mapstructure:"practice_rounds"`
	PrepMinutes     int           `mapstructure:"prep_minutes"`
	PatternsDir     string        `mapstructure:"patterns_dir"`
	WatchPatterns   bool          `mapstructure:"watch_patterns"`
}

// ListenConfig controls voice commands.
type ListenConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	WhisperBin   string `mapstructure:"whisper_bin"`
	WhisperModel string `mapstructure:"whisper_model"`
	RecordSecs   int    `mapstructure:"record_secs"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads .env, then the user and project files, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if project := ProjectConfigPath(); project != "" {
		pv := viper.New()
		pv.SetConfigFile(project)
		if err := pv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", project, err)
		}
		if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath reads a single config file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in settings.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

// Validate checks every bounded setting.
func (c *Config) Validate() error {
	var errs []error

	if !validLang(c.Voice.Lang) {
		errs = append(errs, fmt.Errorf("voice.lang %q: want one of %s", c.Voice.Lang, strings.Join(Languages, ", ")))
	}
	if c.Voice.Rate < MinProsody || c.Voice.Rate > MaxProsody {
		errs = append(errs, fmt.Errorf("voice.rate %.2f outside %.1f-%.1f", c.Voice.Rate, MinProsody, MaxProsody))
	}
	if c.Voice.Pitch < MinProsody || c.Voice.Pitch > MaxProsody {
		errs = append(errs, fmt.Errorf("voice.pitch %.2f outside %.1f-%.1f", c.Voice.Pitch, MinProsody, MaxProsody))
	}
	switch c.Journal.Backend {
	case "csv", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("journal.backend %q: want csv or sqlite", c.Journal.Backend))
	}
	positive := map[string]int{
		"coach.breath_cycles":    c.Coach.BreathCycles,
		"coach.gaze_rounds":      c.Coach.GazeRounds,
		"coach.exposure_seconds": c.Coach.ExposureSeconds,
		"coach.exposure_prompts": c.Coach.ExposurePrompts,
		"coach.practice_seconds": c.Coach.PracticeSeconds,
		"coach.practice_rounds":  c.Coach.PracticeRounds,
		"coach.prep_minutes":     c.Coach.PrepMinutes,
		"listen.record_secs":     c.Listen.RecordSecs,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1", key))
		}
	}
	if c.Coach.GazeInterval <= 0 {
		errs = append(errs, fmt.Errorf("coach.gaze_interval must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, UserConfigPath())
}

// SaveTo writes cfg as YAML to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, value := range flatten(cfg) {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Set changes one dotted key (for example "voice.rate") in the file at
// path and validates the result before writing.
func Set(path, key, value string) (*Config, error) {
	key = strings.ToLower(strings.TrimSpace(key))

	v := newViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}
	if !knownKey(v, key) {
		return nil, fmt.Errorf("unknown key %q: %w", key, ErrInvalid)
	}

	v.Set(key, value)
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := SaveTo(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Values returns every setting by dotted key. The Azure key is masked.
func (c *Config) Values() map[string]any {
	values := flatten(c)
	if c.Azure.Key != "" {
		values["azure.key"] = "****"
	}
	return values
}

// Keys lists every settable key.
func Keys() []string {
	return sortedKeys(flatten(Default()))
}

// UserConfigPath returns the user config file location.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

// ProjectConfigPath returns the nearest .calmcoach.yaml, or "".
func ProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("azure.key", "AZURE_SPEECH_KEY", "CALMCOACH_AZURE_KEY")
	_ = v.BindEnv("azure.region", "AZURE_SPEECH_REGION", "CALMCOACH_AZURE_REGION")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("voice.enabled", true)
	v.SetDefault("voice.lang", "en-US")
	v.SetDefault("voice.name", "")
	v.SetDefault("voice.rate", 0.95)
	v.SetDefault("voice.pitch", 1.05)
	v.SetDefault("voice.cache_dir", ".calmcoach/cache")
	v.SetDefault("voice.disk_cache", true)

	v.SetDefault("azure.key", "")
	v.SetDefault("azure.region", "")

	v.SetDefault("journal.backend", "csv")
	v.SetDefault("journal.path", "calmcoach_logs.csv")

	v.SetDefault("coach.chime", true)
	v.SetDefault("coach.pattern", "box")
	v.SetDefault("coach.breath_cycles", 4)
	v.SetDefault("coach.gaze_rounds", 8)
	v.SetDefault("coach.gaze_interval", "3s")
	v.SetDefault("coach.exposure_seconds", 30)
	v.SetDefault("coach.exposure_prompts", 3)
	v.SetDefault("coach.meeting_type", "1:1")
	v.SetDefault("coach.practice_seconds", 30)
	v.SetDefault("coach.practice_rounds", 1)
	v.SetDefault("coach.prep_minutes", 3)
	v.SetDefault("coach.patterns_dir", "")
	v.SetDefault("coach.watch_patterns", true)

	v.SetDefault("listen.enabled", false)
	v.SetDefault("listen.whisper_bin", "whisper-cli")
	v.SetDefault("listen.whisper_model", "bin/ggml-small.bin")
	v.SetDefault("listen.record_secs", 3)

	v.SetDefault("log.level", "normal")
	v.SetDefault("log.file", ".calmcoach/calmcoach.log")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Azure.Key = os.ExpandEnv(cfg.Azure.Key)
	return cfg, nil
}

func flatten(cfg *Config) map[string]any {
	return map[string]any{
		"voice.enabled":          cfg.Voice.Enabled,
		"voice.lang":             cfg.Voice.Lang,
		"voice.name":             cfg.Voice.Name,
		"voice.rate":             cfg.Voice.Rate,
		"voice.pitch":            cfg.Voice.Pitch,
		"voice.cache_dir":        cfg.Voice.CacheDir,
		"voice.disk_cache":       cfg.Voice.DiskCache,
		"azure.key":              cfg.Azure.Key,
		"azure.region":           cfg.Azure.Region,
		"journal.backend":        cfg.Journal.Backend,
		"journal.path":           cfg.Journal.Path,
		"coach.chime":            cfg.Coach.Chime,
		"coach.pattern":          cfg.Coach.Pattern,
		"coach.breath_cycles":    cfg.Coach.BreathCycles,
		"coach.gaze_rounds":      cfg.Coach.GazeRounds,
		"coach.gaze_interval":    cfg.Coach.GazeInterval.String(),
		"coach.exposure_seconds": cfg.Coach.ExposureSeconds,
		"coach.exposure_prompts": cfg.Coach.ExposurePrompts,
		"coach.meeting_type":     cfg.Coach.MeetingType,
		"coach.practice_seconds": cfg.Coach.PracticeSeconds,
		"coach.practice_rounds":  cfg.Coach.PracticeRounds,
		"coach.prep_minutes":     cfg.Coach.PrepMinutes,
		"coach.patterns_dir":     cfg.Coach.PatternsDir,
		"coach.watch_patterns":   cfg.Coach.WatchPatterns,
		"listen.enabled":         cfg.Listen.Enabled,
		"listen.whisper_bin":     cfg.Listen.WhisperBin,
		"listen.whisper_model":   cfg.Listen.WhisperModel,
		"listen.record_secs":     cfg.Listen.RecordSecs,
		"log.level":              cfg.Log.Level,
		"log.file":               cfg.Log.File,
	}
}

func knownKey(v *viper.Viper, key string) bool {
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func validLang(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
