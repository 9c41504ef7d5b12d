package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/seca-suite/internal/application"
	scheduleapp "github.com/khanhnv2901/seca-suite/internal/application/schedule"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/llm"
	"github.com/khanhnv2901/seca-suite/internal/observability"
	"github.com/khanhnv2901/seca-suite/internal/render"
	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
)

const (
	defaultEndpointHelp   = constants.DefaultEndpoint
	defaultGatewayAddr    = "127.0.0.1:8088"
	defaultRetentionDays  = 90
	defaultLLMBaseURL     = "http://localhost:11434/v1"
	defaultLLMModel       = "llama3.1"
	defaultLLMRequestsPM  = 30
	defaultHeaderTimeout  = 15 * time.Second
	defaultJobTimeout     = 10 * time.Minute
	defaultMaxUploadMB    = 100
	defaultGatewayRPS     = 10
	defaultGatewayBurst   = 20
	defaultCLILogLevel    = "warn"
	defaultServerLogLevel = "info"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Endpoint        string // empty runs offline
	Token           string
	DataDir         string
	Format          render.Format
	Output          string
	Force           bool
	Timeouts        map[assessment.Tool]time.Duration
	Canvas          diagram.Canvas
	Frameworks      []string
	DisableFallback bool
	HeaderTimeout   time.Duration

	Gateway   GatewayConfig
	LLM       LLMConfig
	Log       observability.LogConfig
	History   HistoryConfig
	Scheduler scheduleapp.Config
}

// GatewayConfig holds the settings of `serve`.
type GatewayConfig struct {
	Addr        string
	AuthToken   string
	CORSOrigins []string
	RateLimit   int
	RateBurst   int
	MaxUploadMB int
	JobTimeout  time.Duration
}

// LLMConfig points the assistant at an OpenAI-compatible model server.
type LLMConfig struct {
	Enabled bool
	BaseURL string
	Model   string
	APIKey  string
	RPM     int
	Timeout time.Duration
}

// HistoryConfig controls history retention.
type HistoryConfig struct {
	RetentionDays int
}

func newCLIConfig() *CLIConfig {
	logCfg := observability.DefaultLogConfig()
	logCfg.Level = defaultCLILogLevel
	return &CLIConfig{
		Endpoint: constants.DefaultEndpoint,
		Format:   render.FormatText,
		Timeouts: map[assessment.Tool]time.Duration{},
		Canvas: diagram.Canvas{
			Width:  constants.DefaultCanvasWidth,
			Height: constants.DefaultCanvasHeight,
		},
		HeaderTimeout: defaultHeaderTimeout,
		Gateway: GatewayConfig{
			Addr:        defaultGatewayAddr,
			RateLimit:   defaultGatewayRPS,
			RateBurst:   defaultGatewayBurst,
			MaxUploadMB: defaultMaxUploadMB,
			JobTimeout:  defaultJobTimeout,
		},
		LLM: LLMConfig{
			BaseURL: defaultLLMBaseURL,
			Model:   defaultLLMModel,
			RPM:     defaultLLMRequestsPM,
			Timeout: constants.DefaultToolTimeout,
		},
		Log:       logCfg,
		History:   HistoryConfig{RetentionDays: defaultRetentionDays},
		Scheduler: scheduleapp.DefaultConfig(),
	}
}

// loadCLIConfig layers defaults, the config file and SECA_* variables, then
// any flag the user set explicitly.
func loadCLIConfig(flags *pflag.FlagSet) (*CLIConfig, error) {
	cfg := newCLIConfig()

	setString(&cfg.Endpoint, "endpoint")
	setString(&cfg.Token, "token")
	setString(&cfg.DataDir, "data_dir")
	setBool(&cfg.DisableFallback, "disable_fallback")
	setStringSlice(&cfg.Frameworks, "frameworks")
	setDuration(&cfg.HeaderTimeout, "header_timeout")
	setFloat(&cfg.Canvas.Width, "canvas.width")
	setFloat(&cfg.Canvas.Height, "canvas.height")

	for _, tool := range assessment.Tools {
		key := "timeouts." + string(tool)
		if viper.IsSet(key) {
			cfg.Timeouts[tool] = viper.GetDuration(key)
		}
	}

	setString(&cfg.Gateway.Addr, "gateway.addr")
	setString(&cfg.Gateway.AuthToken, "gateway.auth_token")
	setStringSlice(&cfg.Gateway.CORSOrigins, "gateway.cors_origins")
	setInt(&cfg.Gateway.RateLimit, "gateway.rate_limit")
	setInt(&cfg.Gateway.RateBurst, "gateway.rate_burst")
	setInt(&cfg.Gateway.MaxUploadMB, "gateway.max_upload_mb")
	setDuration(&cfg.Gateway.JobTimeout, "gateway.job_timeout")

	setBool(&cfg.LLM.Enabled, "llm.enabled")
	setString(&cfg.LLM.BaseURL, "llm.base_url")
	setString(&cfg.LLM.Model, "llm.model")
	setString(&cfg.LLM.APIKey, "llm.api_key")
	setInt(&cfg.LLM.RPM, "llm.requests_per_minute")
	setDuration(&cfg.LLM.Timeout, "llm.timeout")

	setString(&cfg.Log.Level, "log.level")
	setString(&cfg.Log.Format, "log.format")
	setString(&cfg.Log.File, "log.file")
	setInt(&cfg.Log.MaxSizeMB, "log.max_size_mb")
	setInt(&cfg.Log.MaxBackups, "log.max_backups")
	setInt(&cfg.Log.MaxAgeDays, "log.max_age_days")
	setBool(&cfg.Log.Compress, "log.compress")

	setInt(&cfg.History.RetentionDays, "history.retention_days")

	setInt(&cfg.Scheduler.Concurrency, "scheduler.concurrency")
	setFloat(&cfg.Scheduler.RateLimit, "scheduler.rate_limit")
	setDuration(&cfg.Scheduler.Timeout, "scheduler.timeout")
	setDuration(&cfg.Scheduler.PollInterval, "scheduler.poll_interval")

	var format string
	setString(&format, "format")
	applyStringFlag(flags, "endpoint", &cfg.Endpoint)
	applyStringFlag(flags, "data-dir", &cfg.DataDir)
	applyStringFlag(flags, "log-level", &cfg.Log.Level)
	applyStringFlag(flags, "format", &format)
	applyStringFlag(flags, "output", &cfg.Output)
	applyBoolFlag(flags, "force", &cfg.Force)

	offline := viper.GetBool("offline")
	applyBoolFlag(flags, "offline", &offline)
	if offline {
		cfg.Endpoint = ""
	}

	parsed, err := render.ParseFormat(format)
	if err != nil {
		return nil, &InputError{Flag: "format", Reason: err.Error()}
	}
	cfg.Format = parsed

	if cfg.DataDir == "" {
		dir, err := getDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	} else if cfg.DataDir, err = homedir.Expand(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("invalid data directory: %w", err)
	}
	if cfg.Log.File != "" {
		if cfg.Log.File, err = homedir.Expand(cfg.Log.File); err != nil {
			return nil, fmt.Errorf("invalid log file: %w", err)
		}
	}
	return cfg, nil
}

// containerConfig converts the CLI settings into the service wiring.
func (c *CLIConfig) containerConfig() application.Config {
	return application.Config{
		DataDir:         c.DataDir,
		Endpoint:        c.Endpoint,
		Token:           c.Token,
		Timeouts:        c.Timeouts,
		Canvas:          c.Canvas,
		Frameworks:      c.Frameworks,
		DisableFallback: c.DisableFallback,
		HeaderTimeout:   c.HeaderTimeout,
		LLMEnabled:      c.LLM.Enabled,
		LLM: llm.Config{
			BaseURL: c.LLM.BaseURL,
			Model:   c.LLM.Model,
			APIKey:  c.LLM.APIKey,
			Timeout: c.LLM.Timeout,
		},
		LLMRPM:    c.LLM.RPM,
		Scheduler: c.Scheduler,
	}
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = strings.TrimSpace(viper.GetString(key))
	}
}

func setStringSlice(dst *[]string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetStringSlice(key)
	}
}

func setBool(dst *bool, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setFloat(dst *float64, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

func setDuration(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

// applyStringFlag overrides dst only when the user set the flag.
func applyStringFlag(flags *pflag.FlagSet, name string, dst *string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return
	}
	*dst = flag.Value.String()
}

func applyBoolFlag(flags *pflag.FlagSet, name string, dst *bool) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return
	}
	*dst = flag.Value.String() == "true"
}
