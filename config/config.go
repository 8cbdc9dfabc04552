// Package config resolves the credentials and model settings used to
// talk to the completion service.  Values come from the process
// environment, optionally seeded from a dotenv file.  Nothing in this
// package touches the network.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"
)

// DefaultModelName is used when OPENAI_MODEL is not set.
const DefaultModelName = "gpt-4o-mini"

// DefaultTemperature is used when OPENAI_TEMPERATURE is not set.
const DefaultTemperature float32 = 0.7

// EnvFile is the dotenv file loaded before the environment is read.
// SPEAKSTUDIO_ENV_FILE overrides it.
var EnvFile = ".env"

// loadDotenv loads the dotenv file if there is one.  Variables that
// are already set are not overridden, and a missing file is not an
// error.
func loadDotenv() {
	fn := os.Getenv("SPEAKSTUDIO_ENV_FILE")
	if fn == "" {
		fn = EnvFile
	}
	if _, err := os.Stat(fn); err != nil {
		return
	}
	err := godotenv.Load(fn)
	if err != nil {
		Debug("config: ignoring %s: %v", fn, err)
	}
}

// APIKey returns the OpenAI API key and true, or "" and false if no
// key is configured.
func APIKey() (key string, ok bool) {
	loadDotenv()
	key = strings.TrimSpace(envi.String("OPENAI_API_KEY", ""))
	if key == "" {
		return "", false
	}
	return key, true
}

// DefaultModel returns the configured model name, falling back to
// DefaultModelName.
func DefaultModel() string {
	loadDotenv()
	name := strings.TrimSpace(envi.String("OPENAI_MODEL", ""))
	if name == "" {
		return DefaultModelName
	}
	return name
}

// Temperature returns the configured sampling temperature.
func Temperature() float32 {
	loadDotenv()
	s := envi.String("OPENAI_TEMPERATURE", "")
	if s == "" {
		return DefaultTemperature
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		Debug("config: bad OPENAI_TEMPERATURE %q: %v", s, err)
		return DefaultTemperature
	}
	return float32(f)
}

// BaseURL returns OPENAI_BASE_URL, or "" for the library default.
func BaseURL() string {
	loadDotenv()
	return strings.TrimSpace(envi.String("OPENAI_BASE_URL", ""))
}

// Config is a snapshot of the resolved settings, plus the paths used
// by the CLI's collaborators.
type Config struct {
	APIKey      string
	HasKey      bool
	Model       string
	Temperature float32
	BaseURL     string
	DbPath      string
	Transcript  string
	Scenarios   string
}

// Load resolves every setting once and returns the snapshot.
func Load() *Config {
	c := &Config{}
	c.APIKey, c.HasKey = APIKey()
	c.Model = DefaultModel()
	c.Temperature = Temperature()
	c.BaseURL = BaseURL()
	c.DbPath = envi.String("SPEAKSTUDIO_DB", ".speakstudio.db")
	c.Transcript = envi.String("SPEAKSTUDIO_TRANSCRIPT", ".speakstudio.log")
	c.Scenarios = envi.String("SPEAKSTUDIO_SCENARIOS", "")
	return c
}

// MaskedKey returns the API key with all but the last four characters
// hidden, for display.
func (c *Config) MaskedKey() string {
	if !c.HasKey {
		return "(not set)"
	}
	k := c.APIKey
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}
