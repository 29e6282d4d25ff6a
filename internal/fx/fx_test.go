package fx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_ThroughCrossRate(t *testing.T) {
	cfg := Default()
	cfg.Rates["EUR"] = 1.10
	cfg.Rates["GBP"] = 1.25

	assert.InDelta(t, 110.0, cfg.Convert(100, "EUR", "USD"), 1e-9)
	assert.InDelta(t, 100.0, cfg.Convert(110, "USD", "EUR"), 1e-9)
	// EUR -> GBP goes through USD.
	assert.InDelta(t, 88.0, cfg.Convert(100, "EUR", "GBP"), 1e-9)
}

func TestConvert_SymbolsAndIdentity(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 42.0, cfg.Convert(42, "USD", "USD"))
	assert.Equal(t, 42.0, cfg.Convert(42, "$", "USD"))
	assert.InDelta(t, cfg.Convert(10, "EUR", "USD"), cfg.Convert(10, "€", "$"), 1e-12)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fx_config: "1.0"
base_currency: EUR
output_currency: USD
rates:
  EUR: 1.05
as_of: "2026-01-15"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.BaseCurrency)
	assert.Equal(t, "USD", cfg.OutputCurrency)
	assert.Equal(t, 1.05, cfg.Rates["EUR"])
	// Defaults survive the merge.
	assert.Equal(t, 1.0, cfg.Rates["USD"])
	assert.Equal(t, "2026-01-15", cfg.AsOf)
}

func TestLoad_RejectsMissingVersionKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_currency: EUR\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := Normalize(nil)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, "USD", cfg.OutputCurrency)
	assert.NotEmpty(t, cfg.Rates)

	cfg = Normalize(&Config{BaseCurrency: "GBP"})
	assert.Equal(t, "GBP", cfg.OutputCurrency)
}

func TestOutputFactor(t *testing.T) {
	cfg := &Config{BaseCurrency: "USD", OutputCurrency: "EUR", Rates: map[string]float64{"USD": 1.0, "EUR": 1.25}}
	assert.InDelta(t, 0.8, cfg.OutputFactor(), 1e-12)
}
