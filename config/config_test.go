package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/stevegt/goadapt"
)

// unsetenv clears a variable for the duration of the test.
func unsetenv(t *testing.T, name string) {
	t.Setenv(name, "")
	os.Unsetenv(name)
}

// noDotenv points the resolver at a dotenv file that doesn't exist.
func noDotenv(t *testing.T) {
	t.Setenv("SPEAKSTUDIO_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestAPIKey(t *testing.T) {
	noDotenv(t)
	unsetenv(t, "OPENAI_API_KEY")
	key, ok := APIKey()
	Tassert(t, !ok && key == "", "expected no key, got %q", key)

	t.Setenv("OPENAI_API_KEY", "   ")
	_, ok = APIKey()
	Tassert(t, !ok, "blank key should be absent")

	t.Setenv("OPENAI_API_KEY", "sk-test-1234")
	key, ok = APIKey()
	Tassert(t, ok && key == "sk-test-1234", "got %q %v", key, ok)
}

func TestDefaultModel(t *testing.T) {
	noDotenv(t)
	unsetenv(t, "OPENAI_MODEL")
	Tassert(t, DefaultModel() == DefaultModelName, "got %q", DefaultModel())

	t.Setenv("OPENAI_MODEL", "gpt-5-mini")
	Tassert(t, DefaultModel() == "gpt-5-mini", "got %q", DefaultModel())
}

func TestTemperature(t *testing.T) {
	noDotenv(t)
	unsetenv(t, "OPENAI_TEMPERATURE")
	Tassert(t, Temperature() == DefaultTemperature, "got %v", Temperature())

	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	Tassert(t, Temperature() == float32(0.2), "got %v", Temperature())

	t.Setenv("OPENAI_TEMPERATURE", "warm")
	Tassert(t, Temperature() == DefaultTemperature, "got %v", Temperature())
}

func TestDotenv(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "test.env")
	err := os.WriteFile(fn, []byte("OPENAI_API_KEY=sk-from-dotenv\nOPENAI_MODEL=dotenv-model\n"), 0600)
	Ck(err)
	t.Setenv("SPEAKSTUDIO_ENV_FILE", fn)
	unsetenv(t, "OPENAI_API_KEY")
	// variables already in the environment win over the file
	t.Setenv("OPENAI_MODEL", "env-model")

	key, ok := APIKey()
	Tassert(t, ok && key == "sk-from-dotenv", "got %q %v", key, ok)
	Tassert(t, DefaultModel() == "env-model", "got %q", DefaultModel())
}

func TestLoad(t *testing.T) {
	noDotenv(t)
	t.Setenv("OPENAI_API_KEY", "sk-abcdefgh")
	unsetenv(t, "OPENAI_MODEL")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("SPEAKSTUDIO_DB", "/tmp/x.db")

	c := Load()
	Tassert(t, c.HasKey, "expected key")
	Tassert(t, c.Model == DefaultModelName, "got %q", c.Model)
	Tassert(t, c.BaseURL == "http://localhost:8080/v1", "got %q", c.BaseURL)
	Tassert(t, c.DbPath == "/tmp/x.db", "got %q", c.DbPath)
	Tassert(t, c.MaskedKey() == "*******efgh", "got %q", c.MaskedKey())

	unsetenv(t, "OPENAI_API_KEY")
	c = Load()
	Tassert(t, c.MaskedKey() == "(not set)", "got %q", c.MaskedKey())
}
