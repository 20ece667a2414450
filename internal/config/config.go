// Package config loads cadence settings from cadence.yaml, CADENCE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/learning"
	"github.com/alexanderramin/cadence/internal/llm"
	"github.com/alexanderramin/cadence/internal/monitor"
	"github.com/alexanderramin/cadence/internal/scheduler"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DBPath string
	UserID string

	Planner  PlannerConfig
	Monitor  MonitorConfig
	Learning LearningConfig
	LLM      LLMConfig
	Calendar CalendarConfig
	HTTP     HTTPConfig
	Logger   LoggerConfig
}

type PlannerConfig struct {
	HorizonDays   int
	BiasThreshold float64
}

type MonitorConfig struct {
	Interval  time.Duration
	Grace     time.Duration
	Threshold int
}

type LearningConfig struct {
	Alpha         float64
	GraceMin      int
	PeakTopK      int
	BiasMin       float64
	BiasMax       float64
	FocusWeight   float64
	BufferStepMin int
	BufferMaxMin  int
	OverrunDays   int
}

type LLMConfig struct {
	Enabled       bool
	LogCalls      bool
	Endpoint      string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	RatePerMinute float64
	Burst         int
	CacheSize     int
	CacheTTL      time.Duration

	InterpretTimeout time.Duration
	ReviewTimeout    time.Duration
	ParseTimeout     time.Duration
}

// CalendarConfig controls the Google Calendar export of executed plans.
type CalendarConfig struct {
	Enabled         bool
	CredentialsPath string
	TokenPath       string
	CalendarID      string
}

type HTTPConfig struct {
	Addr string
	Mode string // gin mode: debug, release or test
}

type LoggerConfig struct {
	Level        string
	Encoding     string // console or json
	ColorEnabled bool
}

// Load reads configuration. configFile, when set, replaces the search of
// ./, ./config and ~/.cadence for cadence.yaml. Flags bound here are the
// persistent root flags; unset flags do not override file or env values.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cadence")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".cadence"))
		}
	}

	v.SetEnvPrefix("cadence")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := decode(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings, ignoring files, environment and
// flags.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) *Config {
	return &Config{
		DBPath: expandHome(v.GetString("db.path")),
		UserID: v.GetString("user"),
		Planner: PlannerConfig{
			HorizonDays:   v.GetInt("planner.horizon_days"),
			BiasThreshold: v.GetFloat64("planner.bias_threshold"),
		},
		Monitor: MonitorConfig{
			Interval:  v.GetDuration("monitor.interval"),
			Grace:     v.GetDuration("monitor.grace"),
			Threshold: v.GetInt("monitor.threshold"),
		},
		Learning: LearningConfig{
			Alpha:         v.GetFloat64("learning.alpha"),
			GraceMin:      v.GetInt("learning.grace_min"),
			PeakTopK:      v.GetInt("learning.peak_top_k"),
			BiasMin:       v.GetFloat64("learning.bias_min"),
			BiasMax:       v.GetFloat64("learning.bias_max"),
			FocusWeight:   v.GetFloat64("learning.focus_weight"),
			BufferStepMin: v.GetInt("learning.buffer_step_min"),
			BufferMaxMin:  v.GetInt("learning.buffer_max_min"),
			OverrunDays:   v.GetInt("learning.overrun_days"),
		},
		LLM: LLMConfig{
			Enabled:          v.GetBool("llm.enabled"),
			LogCalls:         v.GetBool("llm.log_calls"),
			Endpoint:         v.GetString("llm.endpoint"),
			Model:            v.GetString("llm.model"),
			Timeout:          v.GetDuration("llm.timeout"),
			MaxRetries:       v.GetInt("llm.max_retries"),
			RatePerMinute:    v.GetFloat64("llm.rate_per_minute"),
			Burst:            v.GetInt("llm.burst"),
			CacheSize:        v.GetInt("llm.cache_size"),
			CacheTTL:         v.GetDuration("llm.cache_ttl"),
			InterpretTimeout: v.GetDuration("llm.timeouts.interpret"),
			ReviewTimeout:    v.GetDuration("llm.timeouts.review"),
			ParseTimeout:     v.GetDuration("llm.timeouts.parse"),
		},
		Calendar: CalendarConfig{
			Enabled:         v.GetBool("calendar.enabled"),
			CredentialsPath: expandHome(v.GetString("calendar.credentials_path")),
			TokenPath:       expandHome(v.GetString("calendar.token_path")),
			CalendarID:      v.GetString("calendar.calendar_id"),
		},
		HTTP: HTTPConfig{
			Addr: v.GetString("http.addr"),
			Mode: v.GetString("http.mode"),
		},
		Logger: LoggerConfig{
			Level:        v.GetString("logger.level"),
			Encoding:     v.GetString("logger.encoding"),
			ColorEnabled: v.GetBool("logger.color_enabled"),
		},
	}
}

// flagKeys maps config keys to the root command's persistent flags.
var flagKeys = map[string]string{
	"db.path": "db",
	"user":    "user",
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("db.path", filepath.Join(home, ".cadence", "cadence.db"))
	v.SetDefault("user", "default")

	v.SetDefault("planner.horizon_days", 7)
	v.SetDefault("planner.bias_threshold", scheduler.DefaultBiasThreshold)

	mon := monitor.DefaultConfig()
	v.SetDefault("monitor.interval", mon.Interval)
	v.SetDefault("monitor.grace", mon.Grace)
	v.SetDefault("monitor.threshold", mon.Threshold)

	lp := learning.DefaultParams()
	v.SetDefault("learning.alpha", lp.Alpha)
	v.SetDefault("learning.grace_min", lp.GraceMin)
	v.SetDefault("learning.peak_top_k", lp.PeakTopK)
	v.SetDefault("learning.bias_min", lp.BiasMin)
	v.SetDefault("learning.bias_max", lp.BiasMax)
	v.SetDefault("learning.focus_weight", lp.FocusWeight)
	v.SetDefault("learning.buffer_step_min", lp.BufferStepMin)
	v.SetDefault("learning.buffer_max_min", lp.BufferMaxMin)
	v.SetDefault("learning.overrun_days", lp.OverrunDays)

	lc := llm.DefaultConfig()
	v.SetDefault("llm.enabled", lc.Enabled)
	v.SetDefault("llm.log_calls", lc.LogCalls)
	v.SetDefault("llm.endpoint", lc.Endpoint)
	v.SetDefault("llm.model", lc.Model)
	v.SetDefault("llm.timeout", time.Duration(lc.TimeoutMs)*time.Millisecond)
	v.SetDefault("llm.max_retries", lc.MaxRetries)
	v.SetDefault("llm.rate_per_minute", lc.RatePerMinute)
	v.SetDefault("llm.burst", lc.Burst)
	v.SetDefault("llm.cache_size", lc.CacheSize)
	v.SetDefault("llm.cache_ttl", time.Duration(lc.CacheTTLSec)*time.Second)
	v.SetDefault("llm.timeouts.interpret", time.Duration(lc.TaskTimeout(llm.TaskInterpretSchedule))*time.Millisecond)
	v.SetDefault("llm.timeouts.review", time.Duration(lc.TaskTimeout(llm.TaskReviewPlan))*time.Millisecond)
	v.SetDefault("llm.timeouts.parse", time.Duration(lc.TaskTimeout(llm.TaskParseReview))*time.Millisecond)

	v.SetDefault("calendar.enabled", false)
	v.SetDefault("calendar.credentials_path", "~/.cadence/credentials.json")
	v.SetDefault("calendar.token_path", "~/.cadence/token.json")
	v.SetDefault("calendar.calendar_id", "primary")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.mode", "release")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.color_enabled", true)
}

// Validate rejects settings that would make a component misbehave rather
// than fail loudly.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if c.Planner.HorizonDays <= 0 {
		errs = append(errs, fmt.Errorf("planner.horizon_days must be positive, got %d", c.Planner.HorizonDays))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval))
	}
	if c.Learning.Alpha <= 0 || c.Learning.Alpha > 1 {
		errs = append(errs, fmt.Errorf("learning.alpha must be in (0, 1], got %g", c.Learning.Alpha))
	}
	if c.Learning.BiasMin <= 0 || c.Learning.BiasMax < c.Learning.BiasMin {
		errs = append(errs, fmt.Errorf("learning bias bounds [%g, %g] are invalid", c.Learning.BiasMin, c.Learning.BiasMax))
	}
	switch c.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.encoding must be console or json, got %q", c.Logger.Encoding))
	}
	if c.Calendar.Enabled && c.Calendar.CredentialsPath == "" {
		errs = append(errs, errors.New("calendar.credentials_path is required when calendar export is enabled"))
	}
	return errors.Join(errs...)
}

// LLMClientConfig converts the model settings for the llm package.
func (c *Config) LLMClientConfig() llm.LLMConfig {
	out := llm.DefaultConfig()
	out.Enabled = c.LLM.Enabled
	out.LogCalls = c.LLM.LogCalls
	out.Endpoint = c.LLM.Endpoint
	out.Model = c.LLM.Model
	out.TimeoutMs = int(c.LLM.Timeout / time.Millisecond)
	out.MaxRetries = c.LLM.MaxRetries
	out.RatePerMinute = c.LLM.RatePerMinute
	out.Burst = c.LLM.Burst
	out.CacheSize = c.LLM.CacheSize
	out.CacheTTLSec = int(c.LLM.CacheTTL / time.Second)
	out = out.WithTaskTimeout(llm.TaskInterpretSchedule, int(c.LLM.InterpretTimeout/time.Millisecond))
	out = out.WithTaskTimeout(llm.TaskReviewPlan, int(c.LLM.ReviewTimeout/time.Millisecond))
	out = out.WithTaskTimeout(llm.TaskParseReview, int(c.LLM.ParseTimeout/time.Millisecond))
	return out
}

func (c *Config) LearningParams() learning.Params {
	p := learning.DefaultParams()
	p.Alpha = c.Learning.Alpha
	p.GraceMin = c.Learning.GraceMin
	p.PeakTopK = c.Learning.PeakTopK
	p.BiasMin = c.Learning.BiasMin
	p.BiasMax = c.Learning.BiasMax
	p.FocusWeight = c.Learning.FocusWeight
	p.BufferStepMin = c.Learning.BufferStepMin
	p.BufferMaxMin = c.Learning.BufferMaxMin
	p.OverrunDays = c.Learning.OverrunDays
	return p
}

func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		Interval:  c.Monitor.Interval,
		Grace:     c.Monitor.Grace,
		Threshold: c.Monitor.Threshold,
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
