// Package fx holds currency configuration for the simulation engine. Rates
// are quoted as the value of one unit of each currency in USD, so any pair
// converts through a USD cross rate.
package fx

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultRates is the built-in rate table (value of 1 unit in USD). A loaded
// config overlays these, it never replaces the table wholesale.
var DefaultRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.09,
	"GBP": 1.27,
	"JPY": 0.0067,
	"CHF": 1.13,
	"SEK": 0.095,
	"NOK": 0.094,
	"DKK": 0.146,
	"CAD": 0.73,
	"AUD": 0.66,
	"NZD": 0.61,
	"SGD": 0.75,
}

var symbolToCode = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

var codeToSymbol = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "C$",
	"AUD": "A$",
	"NZD": "NZ$",
	"SGD": "S$",
}

// Config describes the base/output currencies and the rate table used to
// normalize monetary document values.
type Config struct {
	BaseCurrency   string             `yaml:"base_currency" json:"base_currency"`
	OutputCurrency string             `yaml:"output_currency" json:"output_currency"`
	Rates          map[string]float64 `yaml:"rates" json:"rates"`
	AsOf           string             `yaml:"as_of,omitempty" json:"as_of,omitempty"`
}

// configDoc is the on-disk FX document shape. The version key identifies the
// document type; loaders reject files without it.
type configDoc struct {
	Version string `yaml:"fx_config"`
	Config  `yaml:",inline"`
}

// Default returns a USD-only configuration with the built-in rate table.
func Default() *Config {
	return &Config{
		BaseCurrency:   "USD",
		OutputCurrency: "USD",
		Rates:          copyRates(DefaultRates),
	}
}

// Load reads an FX config document from path, merging its rates over the
// defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fx config %s: %w", path, err)
	}

	var doc configDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fx config %s: %w", path, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("fx config %s is missing the 'fx_config' version key", path)
	}

	cfg := Default()
	if doc.BaseCurrency != "" {
		cfg.BaseCurrency = doc.BaseCurrency
	}
	cfg.OutputCurrency = cfg.BaseCurrency
	if doc.OutputCurrency != "" {
		cfg.OutputCurrency = doc.OutputCurrency
	}
	for code, rate := range doc.Rates {
		if rate <= 0 {
			return nil, fmt.Errorf("fx config %s: rate for %s must be positive", path, code)
		}
		cfg.Rates[code] = rate
	}
	cfg.AsOf = doc.AsOf
	return cfg, nil
}

// Normalize fills in defaults for a nil or partially built config.
func Normalize(cfg *Config) *Config {
	if cfg == nil {
		return Default()
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "USD"
	}
	if cfg.OutputCurrency == "" {
		cfg.OutputCurrency = cfg.BaseCurrency
	}
	if cfg.Rates == nil {
		cfg.Rates = copyRates(DefaultRates)
	}
	return cfg
}

// Convert translates an amount between two currencies through the USD cross
// rate. Unknown currencies convert at 1.0.
func (c *Config) Convert(amount float64, from, to string) float64 {
	from = CurrencyCode(from)
	to = CurrencyCode(to)
	if from == to {
		return amount
	}
	fromRate, ok := c.Rates[from]
	if !ok {
		fromRate = 1.0
	}
	toRate, ok := c.Rates[to]
	if !ok {
		toRate = 1.0
	}
	return amount * fromRate / toRate
}

// OutputFactor is the scalar that converts base-currency samples into the
// output currency.
func (c *Config) OutputFactor() float64 {
	return c.Convert(1.0, c.BaseCurrency, c.OutputCurrency)
}

// CurrencyCode maps a display symbol to its ISO code; codes pass through.
func CurrencyCode(currency string) string {
	if code, ok := symbolToCode[currency]; ok {
		return code
	}
	return currency
}

// Symbol returns the display symbol for a currency code, or the code itself
// when no symbol is known.
func Symbol(code string) string {
	if sym, ok := codeToSymbol[code]; ok {
		return sym
	}
	return code
}

func copyRates(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
