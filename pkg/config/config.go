package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	ProviderICloud = "icloud"

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is built once at startup and not modified afterwards.
type Config struct {
	Dida     DidaConfig
	LLM      LLMConfig
	Calendar CalendarConfig
	Report   ReportConfig
	Log      LogConfig

	Timezone string `env:"TIMEZONE" env-default:"Asia/Shanghai" env-description:"zone used for local-day math and the note timestamps"`

	location *time.Location
	excluded ExclusionSet
}

type DidaConfig struct {
	Token           string        `env:"DIDA_TOKEN" env-description:"task service access token"`
	ProjectID       string        `env:"DIDA_PROJECT_ID" env-description:"project receiving the generated note"`
	WeeklyProjectID string        `env:"DIDA_WEEKLY_PROJECT_ID" env-description:"project receiving the weekly report"`
	BaseURL         string        `env:"DIDA_API_URL" env-default:"https://api.dida365.com/open/v1"`
	ClosedURL       string        `env:"DIDA_CLOSED_API_URL" env-default:"https://api.dida365.com/api/v2" env-description:"endpoint serving completed tasks for the weekly report"`
	Cookie          string        `env:"DIDA_COOKIE" env-description:"session cookie sent with completed-task requests"`
	IncludeInbox    bool          `env:"DIDA_INCLUDE_INBOX" env-default:"false"`
	ExcludeProjects string        `env:"EXCLUDE_PROJECT_NAME" env-default:"\"日记\"" env-description:"quoted CSV of project names to skip"`
	ReadTimeout     time.Duration `env:"DIDA_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `env:"DIDA_WRITE_TIMEOUT" env-default:"30s"`
}

type LLMConfig struct {
	APIKey  string        `env:"LLM_API_KEY" env-description:"generation service key"`
	Model   string        `env:"LLM_MODEL" env-default:"deepseek-ai/DeepSeek-V3.1"`
	URL     string        `env:"LLM_API_URL" env-default:"https://api.siliconflow.cn/v1/chat/completions"`
	Persona string        `env:"LLM_PERSONA" env-default:"INTJ"`
	Timeout time.Duration `env:"LLM_TIMEOUT" env-default:"60s"`
}

type CalendarConfig struct {
	Enable        bool          `env:"CAL_ENABLE" env-default:"false"`
	Provider      string        `env:"CAL_PROVIDER" env-default:"icloud"`
	ServerURL     string        `env:"CAL_SERVER_URL" env-default:"https://caldav.icloud.com/"`
	Username      string        `env:"ICLOUD_USERNAME"`
	Password      string        `env:"ICLOUD_APP_PASSWORD"`
	Names         []string      `env:"CALENDAR_NAME" env-separator:"," env-description:"calendar display names, empty means all"`
	LookaheadDays int           `env:"CAL_LOOKAHEAD_DAYS" env-default:"0"`
	MaxEvents     int           `env:"CAL_MAX_EVENTS" env-default:"50"`
	Timeout       time.Duration `env:"CAL_TIMEOUT" env-default:"30s"`
}

// HasCredentials reports whether both CalDAV credentials are set.
func (c CalendarConfig) HasCredentials() bool {
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.Password) != ""
}

type ReportConfig struct {
	InboxName string `env:"REPORT_INBOX_NAME" env-default:"收集箱" env-description:"bucket for tasks whose project is unknown"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"console"`
}

// Options control where Load looks for values besides the process
// environment.
type Options struct {
	// EnvFile is loaded into the environment when it exists. Variables
	// already set take precedence.
	EnvFile string
	// File is an optional config file read by cleanenv. Environment
	// variables override its values.
	File string
}

// Load reads and validates the configuration. Any error it returns is a
// *Error.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Key: opts.EnvFile, Msg: "unreadable env file", Err: err}
		}
	}

	cfg := new(Config)
	var err error
	if opts.File != "" {
		err = cleanenv.ReadConfig(opts.File, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, &Error{Msg: "read configuration", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values every command needs and fills in derived
// values. Credentials only some commands use are checked by RequireTasks,
// RequirePlan and RequireWeekly.
func (c *Config) Validate() error {
	c.trim()

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return &Error{Key: "TIMEZONE", Msg: fmt.Sprintf("unknown zone %q", c.Timezone), Err: err}
	}
	c.location = loc

	excluded, err := ParseExclusionSet(c.Dida.ExcludeProjects)
	if err != nil {
		return &Error{Key: "EXCLUDE_PROJECT_NAME", Msg: "malformed project list", Err: err}
	}
	c.excluded = excluded

	if c.Calendar.LookaheadDays < 0 {
		return &Error{Key: "CAL_LOOKAHEAD_DAYS", Msg: "must not be negative"}
	}
	if c.Calendar.MaxEvents <= 0 {
		return &Error{Key: "CAL_MAX_EVENTS", Msg: "must be positive"}
	}

	timeouts := []struct {
		key string
		d   time.Duration
	}{
		{"DIDA_READ_TIMEOUT", c.Dida.ReadTimeout},
		{"DIDA_WRITE_TIMEOUT", c.Dida.WriteTimeout},
		{"LLM_TIMEOUT", c.LLM.Timeout},
		{"CAL_TIMEOUT", c.Calendar.Timeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return &Error{Key: t.key, Msg: "must be a positive duration"}
		}
	}

	switch c.Log.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		return &Error{Key: "LOG_FORMAT", Msg: fmt.Sprintf("unsupported format %q", c.Log.Format)}
	}
	return nil
}

// RequireTasks checks the settings needed to read the task service.
func (c *Config) RequireTasks() error {
	if c.Dida.Token == "" {
		return missing("DIDA_TOKEN")
	}
	return nil
}

// RequirePlan checks the settings needed to generate and store a plan.
func (c *Config) RequirePlan() error {
	if err := c.RequireTasks(); err != nil {
		return err
	}
	if c.Dida.ProjectID == "" {
		return missing("DIDA_PROJECT_ID")
	}
	if c.LLM.APIKey == "" {
		return missing("LLM_API_KEY")
	}
	return nil
}

// RequireWeekly checks the settings needed to generate and store a weekly
// report.
func (c *Config) RequireWeekly() error {
	if err := c.RequireTasks(); err != nil {
		return err
	}
	if c.Dida.WeeklyProjectID == "" {
		return missing("DIDA_WEEKLY_PROJECT_ID")
	}
	if c.LLM.APIKey == "" {
		return missing("LLM_API_KEY")
	}
	return nil
}

// NoteProjects are the projects receiving generated notes. They are never
// read back as task sources.
func (c *Config) NoteProjects() []string {
	var ids []string
	for _, id := range []string{c.Dida.ProjectID, c.Dida.WeeklyProjectID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Location is the parsed TIMEZONE. It is only set after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Excluded is the parsed EXCLUDE_PROJECT_NAME set.
func (c *Config) Excluded() ExclusionSet {
	return c.excluded
}

func (c *Config) trim() {
	c.Dida.Token = strings.TrimSpace(c.Dida.Token)
	c.Dida.ProjectID = strings.TrimSpace(c.Dida.ProjectID)
	c.Dida.WeeklyProjectID = strings.TrimSpace(c.Dida.WeeklyProjectID)
	c.Dida.Cookie = strings.TrimSpace(c.Dida.Cookie)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Calendar.Provider = strings.ToLower(strings.TrimSpace(c.Calendar.Provider))
	c.Timezone = strings.TrimSpace(c.Timezone)
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	names := c.Calendar.Names[:0]
	for _, n := range c.Calendar.Names {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	c.Calendar.Names = names
}

// Usage describes every supported environment variable.
func Usage() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return text
}
