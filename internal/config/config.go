// Package config provides Viper-based configuration loading for the dice client and dev server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/cory-johannsen/crashdice/internal/game/table"
)

// Relay modes.
const (
	RelayDemo   = "demo"
	RelayRemote = "remote"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// RelayConfig selects where bets are settled.
type RelayConfig struct {
	// Mode is "demo" for local simulation or "remote" for the HTTP game server.
	Mode string `mapstructure:"mode"`
	// URL is the base URL of the remote game server.
	URL string `mapstructure:"url"`
	// GameID is joined after the session is established.
	GameID string `mapstructure:"game_id"`
	// ProtocolVersion is sent on every authenticated request.
	ProtocolVersion string `mapstructure:"protocol_version"`
	// Timeout bounds every remote request.
	Timeout time.Duration `mapstructure:"timeout"`
	// FallbackToDemo switches to demo mode when the remote session cannot be established.
	FallbackToDemo bool `mapstructure:"fallback_to_demo"`
}

// TableConfig holds viewport and presentation settings for the headless table.
// The embedded table.Config carries the slider, reveal and history tunables
// under table.slider, table.reveal and table.history.
type TableConfig struct {
	table.Config `mapstructure:",squash"`

	Width         float64       `mapstructure:"width"`
	Height        float64       `mapstructure:"height"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	// RollMode is the initial roll mode: inside, outside or between.
	RollMode string `mapstructure:"roll_mode"`
}

// AutoBetConfig holds betting defaults.
type AutoBetConfig struct {
	// BaseBet is the decimal stake of the first bet, e.g. "1.00".
	BaseBet string `mapstructure:"base_bet"`
	// RoundDelay is the pause between automatic rounds.
	RoundDelay time.Duration `mapstructure:"round_delay"`
	// Preset optionally names a YAML strategy preset file.
	Preset string `mapstructure:"preset"`
	// Script optionally names a Lua strategy script.
	Script string `mapstructure:"script"`
	// ScriptInstructionLimit bounds each dobet call.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// BaseBetAmount parses BaseBet.
//
// Postcondition: Returns a positive amount or a non-nil error.
func (a AutoBetConfig) BaseBetAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(a.BaseBet)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing base bet %q: %w", a.BaseBet, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("base bet must be positive, got %s", d)
	}
	return d, nil
}

// DevServerConfig holds the HTTP dev game server settings.
type DevServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// GameIDs lists the games a session may join.
	GameIDs []string `mapstructure:"game_ids"`
	// StartingBalance is credited to every new session.
	StartingBalance string `mapstructure:"starting_balance"`
	// Currency labels balances.
	Currency string `mapstructure:"currency"`
	// MaxSessions bounds live sessions; the least recently used is evicted.
	MaxSessions int `mapstructure:"max_sessions"`
	// SessionTTL expires sessions this long after creation.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// AllowedOrigins lists the CORS origins browsers may call from.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (d DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Table     TableConfig     `mapstructure:"table"`
	AutoBet   AutoBetConfig   `mapstructure:"autobet"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateLogging(c.Logging),
		validateRelay(c.Relay),
		validateTable(c.Table),
		validateAutoBet(c.AutoBet),
		validateDevServer(c.DevServer),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateRelay(r RelayConfig) error {
	var errs []string
	switch r.Mode {
	case RelayDemo:
	case RelayRemote:
		u, err := url.Parse(r.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("relay.url must be an absolute URL in remote mode, got %q", r.URL))
		}
		if r.GameID == "" {
			errs = append(errs, "relay.game_id must not be empty in remote mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("relay.mode must be one of [demo, remote], got %q", r.Mode))
	}
	if r.Timeout <= 0 {
		errs = append(errs, "relay.timeout must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateTable(t TableConfig) error {
	var errs []string
	if t.Width <= 0 || t.Height <= 0 {
		errs = append(errs, fmt.Sprintf("table.width and table.height must be positive, got %vx%v", t.Width, t.Height))
	}
	if t.FrameInterval <= 0 {
		errs = append(errs, "table.frame_interval must be positive")
	}
	validModes := map[string]bool{"inside": true, "outside": true, "between": true}
	if !validModes[t.RollMode] {
		errs = append(errs, fmt.Sprintf("table.roll_mode must be one of [inside, outside, between], got %q", t.RollMode))
	}
	if err := t.Config.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateAutoBet(a AutoBetConfig) error {
	var errs []string
	if _, err := a.BaseBetAmount(); err != nil {
		errs = append(errs, "autobet.base_bet: "+err.Error())
	}
	if a.RoundDelay < 0 {
		errs = append(errs, "autobet.round_delay must not be negative")
	}
	if a.ScriptInstructionLimit < 1 {
		errs = append(errs, fmt.Sprintf("autobet.script_instruction_limit must be >= 1, got %d", a.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateDevServer(d DevServerConfig) error {
	var errs []string
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("devserver.port must be 1-65535, got %d", d.Port))
	}
	if d.ReadTimeout < 0 || d.WriteTimeout < 0 {
		errs = append(errs, "devserver timeouts must not be negative")
	}
	if len(d.GameIDs) == 0 {
		errs = append(errs, "devserver.game_ids must not be empty")
	}
	if d.MaxSessions < 0 || d.SessionTTL < 0 {
		errs = append(errs, "devserver.max_sessions and devserver.session_ttl must not be negative")
	}
	if b, err := decimal.NewFromString(d.StartingBalance); err != nil || b.IsNegative() {
		errs = append(errs, fmt.Sprintf("devserver.starting_balance must be a non-negative decimal, got %q", d.StartingBalance))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with CRASHDICE_ prefix
	v.SetEnvPrefix("CRASHDICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration produced by defaults alone.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("relay.mode", RelayDemo)
	v.SetDefault("relay.url", "https://dev.securesocket.net:8443")
	v.SetDefault("relay.game_id", "CrashDice")
	v.SetDefault("relay.protocol_version", "1.1")
	v.SetDefault("relay.timeout", "10s")
	v.SetDefault("relay.fallback_to_demo", true)

	v.SetDefault("table.width", 520)
	v.SetDefault("table.height", 640)
	v.SetDefault("table.frame_interval", "16ms")
	v.SetDefault("table.roll_mode", "inside")
	setTableDefaults(v, table.DefaultConfig())

	v.SetDefault("autobet.base_bet", "1.00")
	v.SetDefault("autobet.round_delay", "1s")
	v.SetDefault("autobet.preset", "")
	v.SetDefault("autobet.script", "")
	v.SetDefault("autobet.script_instruction_limit", 100000)

	v.SetDefault("devserver.host", "127.0.0.1")
	v.SetDefault("devserver.port", 8443)
	v.SetDefault("devserver.read_timeout", "10s")
	v.SetDefault("devserver.write_timeout", "10s")
	v.SetDefault("devserver.shutdown_timeout", "5s")
	v.SetDefault("devserver.game_ids", []string{"CrashDice"})
	v.SetDefault("devserver.starting_balance", "1000")
	v.SetDefault("devserver.currency", "FUN")
	v.SetDefault("devserver.max_sessions", 1024)
	v.SetDefault("devserver.session_ttl", "1h")
	v.SetDefault("devserver.allowed_origins", []string{"*"})
}

// setTableDefaults registers every table tunable so file and CRASHDICE_TABLE_*
// environment overrides reach the slider, reveal and history settings.
func setTableDefaults(v *viper.Viper, d table.Config) {
	v.SetDefault("table.base_width", d.BaseWidth)
	v.SetDefault("table.popup_show_duration", d.PopupShowDuration)
	v.SetDefault("table.animations_enabled", d.AnimationsEnabled)

	s := d.Slider
	v.SetDefault("table.slider.range_min", s.RangeMin)
	v.SetDefault("table.slider.range_max", s.RangeMax)
	v.SetDefault("table.slider.min_value", s.MinValue)
	v.SetDefault("table.slider.max_value", s.MaxValue)
	v.SetDefault("table.slider.step", s.Step)
	v.SetDefault("table.slider.track_start", s.TrackStart)
	v.SetDefault("table.slider.track_end", s.TrackEnd)
	v.SetDefault("table.slider.default_mode", string(s.DefaultMode))
	v.SetDefault("table.slider.inside_outside_defaults", s.InsideOutsideDefaults)
	v.SetDefault("table.slider.between_defaults", s.BetweenDefaults)
	v.SetDefault("table.slider.sound.drag_min_pitch", s.Sound.DragMinPitch)
	v.SetDefault("table.slider.sound.drag_max_pitch", s.Sound.DragMaxPitch)
	v.SetDefault("table.slider.sound.drag_max_speed", s.Sound.DragMaxSpeed)
	v.SetDefault("table.slider.sound.drag_cooldown", s.Sound.DragCooldown)

	r := d.Reveal
	v.SetDefault("table.reveal.fade_in_duration", r.FadeInDuration)
	v.SetDefault("table.reveal.fade_out_duration", r.FadeOutDuration)
	v.SetDefault("table.reveal.fade_out_delay", r.FadeOutDelay)
	v.SetDefault("table.reveal.enter_scale", r.EnterScale)
	v.SetDefault("table.reveal.exit_scale", r.ExitScale)
	v.SetDefault("table.reveal.bump_scale", r.BumpScale)
	v.SetDefault("table.reveal.bump_duration", r.BumpDuration)
	v.SetDefault("table.reveal.label_color_duration", r.LabelColorDuration)
	v.SetDefault("table.reveal.portrait_scale", r.PortraitScale)
	v.SetDefault("table.reveal.colors.default", r.Colors.Default)
	v.SetDefault("table.reveal.colors.win", r.Colors.Win)
	v.SetDefault("table.reveal.colors.loss", r.Colors.Loss)
	v.SetDefault("table.reveal.colors.shadow_default", r.Colors.ShadowDefault)
	v.SetDefault("table.reveal.colors.shadow_target", r.Colors.ShadowTarget)

	h := d.History
	v.SetDefault("table.history.top_padding", h.TopPadding)
	v.SetDefault("table.history.left_padding", h.LeftPadding)
	v.SetDefault("table.history.right_padding", h.RightPadding)
	v.SetDefault("table.history.height_ratio", h.HeightRatio)
	v.SetDefault("table.history.min_bubble_height", h.MinBubbleHeight)
	v.SetDefault("table.history.max_bubble_height", h.MaxBubbleHeight)
	v.SetDefault("table.history.aspect_ratio", h.AspectRatio)
	v.SetDefault("table.history.spacing_ratio", h.SpacingRatio)
	v.SetDefault("table.history.font_size_ratio", h.FontSizeRatio)
	v.SetDefault("table.history.fade_in_duration", h.FadeInDuration)
	v.SetDefault("table.history.fade_out_duration", h.FadeOutDuration)
	v.SetDefault("table.history.colors.win_fill", h.Colors.WinFill)
	v.SetDefault("table.history.colors.win_text", h.Colors.WinText)
	v.SetDefault("table.history.colors.loss_fill", h.Colors.LossFill)
	v.SetDefault("table.history.colors.loss_text", h.Colors.LossText)
}
