package config

import (
	"os"
	"strconv"
)

// SettingSource represents where an effective setting came from.
type SettingSource string

const (
	SourceFlag    SettingSource = "flag"
	SourceEnv     SettingSource = "env"
	SourceConfig  SettingSource = "config"
	SourceDefault SettingSource = "default"
)

// SettingStatus describes one effective setting for display.
type SettingStatus struct {
	Name   string        `json:"name"   yaml:"name"`
	Value  string        `json:"value"  yaml:"value"`
	Source SettingSource `json:"source" yaml:"source"`
}

// CheckSettings reports the effective value and origin of the settings that
// decide which API the client talks to and how. flagged names the settings
// that a command-line flag overrode.
func CheckSettings(cfg *Config, flagged ...string) []SettingStatus {
	fromFlag := make(map[string]bool, len(flagged))
	for _, name := range flagged {
		fromFlag[name] = true
	}
	check := func(name, value, def, envVar string) SettingStatus {
		if fromFlag[name] {
			return SettingStatus{Name: name, Value: value, Source: SourceFlag}
		}
		return checkSetting(name, value, def, envVar)
	}
	return []SettingStatus{
		check(KeyBaseURL, cfg.API.BaseURL, DefaultBaseURL, "PIANALYTICS_API_BASE_URL"),
		check(KeyTimeout, strconv.Itoa(cfg.API.TimeoutSec), strconv.Itoa(DefaultTimeoutSec), "PIANALYTICS_API_TIMEOUT_SEC"),
		check(KeyUserAgent, cfg.API.UserAgent, "", "PIANALYTICS_API_USER_AGENT"),
		check(KeyStrictPromptID, strconv.FormatBool(cfg.API.StrictPromptID), "false", "PIANALYTICS_API_STRICT_PROMPT_ID"),
		check(KeyLogLevel, cfg.Logging.Level, "info", "PIANALYTICS_LOGGING_LEVEL"),
		check(KeyOutputFormat, cfg.Output.Format, "text", "PIANALYTICS_OUTPUT_FORMAT"),
	}
}

// Setting names as reported by CheckSettings.
const (
	KeyBaseURL        = "api.base_url"
	KeyTimeout        = "api.timeout_sec"
	KeyUserAgent      = "api.user_agent"
	KeyStrictPromptID = "api.strict_prompt_id"
	KeyLogLevel       = "logging.level"
	KeyOutputFormat   = "output.format"
)

// checkSetting classifies value as coming from env, a config file or the
// built-in default.
func checkSetting(name, value, def, envVar string) SettingStatus {
	status := SettingStatus{Name: name, Value: value}
	switch {
	case os.Getenv(envVar) != "":
		status.Source = SourceEnv
	case value != def:
		status.Source = SourceConfig
	default:
		status.Source = SourceDefault
	}
	return status
}
