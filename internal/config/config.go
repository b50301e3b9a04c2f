package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/agentvoice/internal/domain"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	DBPath     string        `mapstructure:"db_path"`

	Poll      PollConfig        `mapstructure:"poll"`
	Detect    DetectConfig      `mapstructure:"detect"`
	TTS       TTSConfig         `mapstructure:"tts"`
	Defaults  RoomDefaults      `mapstructure:"defaults"`
	Tmux      TmuxConfig        `mapstructure:"tmux"`
	Machines  map[string]string `mapstructure:"machines"`
	InputRate RateConfig        `mapstructure:"input_rate"`
	API       APIConfig         `mapstructure:"api"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Lines    int           `mapstructure:"lines"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DetectConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	ProcMount string        `mapstructure:"proc_mount"`
}

// TTSConfig selects the synthesis backend once at startup.
type TTSConfig struct {
	Backend      string        `mapstructure:"backend"`
	URL          string        `mapstructure:"url"`
	Command      string        `mapstructure:"command"`
	DefaultVoice string        `mapstructure:"default_voice"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Player       string        `mapstructure:"player"`
}

type RoomDefaults struct {
	Voice        string  `mapstructure:"voice"`
	Exaggeration float64 `mapstructure:"exaggeration"`
	CFGWeight    float64 `mapstructure:"cfg_weight"`
}

func (d RoomDefaults) RoomConfig() domain.RoomConfig {
	return domain.RoomConfig{Voice: d.Voice, Exaggeration: d.Exaggeration, CFGWeight: d.CFGWeight}
}

type TmuxConfig struct {
	Socket string `mapstructure:"socket"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

// APIConfig is how out-of-process callers reach the server.
type APIConfig struct {
	URL          string        `mapstructure:"url"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults when
// the file is missing. Environment variables override both.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("AGENTVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "PORT", "AGENTVOICE_PORT")
	_ = v.BindEnv("log_level", "LOG_LEVEL", "AGENTVOICE_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Machines = lowerKeys(cfg.Machines)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("tts", cfg.TTS.Backend).Msg("config ready")
	return &cfg, nil
}

// lowerKeys folds machine ids to lower case. viper already does this for
// yaml keys; env and flag overrides may not.
func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "agentvoice-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "./data/agentvoice.db")

	v.SetDefault("poll.interval", "500ms")
	v.SetDefault("poll.lines", 200)
	v.SetDefault("poll.timeout", "2s")

	v.SetDefault("detect.ttl", "60s")
	v.SetDefault("detect.proc_mount", "/proc")

	v.SetDefault("tts.backend", "http")
	v.SetDefault("tts.url", "http://127.0.0.1:8004")
	v.SetDefault("tts.command", "espeak-ng")
	v.SetDefault("tts.default_voice", "default")
	v.SetDefault("tts.timeout", "30s")
	v.SetDefault("tts.player", "")

	v.SetDefault("defaults.voice", "default")
	v.SetDefault("defaults.exaggeration", 0.5)
	v.SetDefault("defaults.cfg_weight", 0.5)

	v.SetDefault("tmux.socket", "")
	v.SetDefault("machines", map[string]string{})

	v.SetDefault("input_rate.limit", 10)
	v.SetDefault("input_rate.interval", "10s")

	v.SetDefault("api.url", "http://127.0.0.1:8080")
	v.SetDefault("api.probe_timeout", "3s")
}

var (
	ErrBadMode       = errors.New("mode must be debug, release or test")
	ErrBadPort       = errors.New("port out of range")
	ErrBadPoll       = errors.New("poll interval and timeout must be positive")
	ErrBadTTSBackend = errors.New("unknown tts backend")
	ErrMissingTTSURL = errors.New("tts.url is required for the http backend")
)

func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("%w: %q", ErrBadMode, c.Mode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrBadPort, c.Port)
	}
	if c.Poll.Interval <= 0 || c.Poll.Timeout <= 0 {
		return ErrBadPoll
	}
	switch c.TTS.Backend {
	case "http":
		if c.TTS.URL == "" {
			return ErrMissingTTSURL
		}
	case "command", "none":
	default:
		return fmt.Errorf("%w: %q", ErrBadTTSBackend, c.TTS.Backend)
	}
	return nil
}
