package sim

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/riskrun/riskrun/internal/fx"
)

// Severity model names accepted by SampleLosses.
const (
	SevLognormal = "lognormal"
	SevGamma     = "gamma"
	SevMixture   = "mixture"
)

// SeverityParams carries the parameters of a severity model. Pointer fields
// distinguish "absent" from zero. Monetary fields are expressed in Currency
// (defaulting to the FX base currency) and normalized during sampling.
type SeverityParams struct {
	Median       *float64
	Mu           *float64
	Sigma        *float64
	Shape        *float64
	Scale        *float64
	Currency     string
	SingleLosses []float64
}

// MixtureComponent is one component of a mixture severity model.
type MixtureComponent struct {
	Lognormal *SeverityParams
	Gamma     *SeverityParams
}

// CalibrateLognormal fits (mu, sigma) from observed single-event losses:
// mu is the log of the median loss, sigma the population standard deviation
// of the log losses. Losses are normalized to the FX base currency first.
func CalibrateLognormal(losses []float64, currency string, fxCfg *fx.Config) (mu, sigma float64, err error) {
	if len(losses) < 2 {
		return 0, 0, fmt.Errorf("single_losses requires at least 2 values, got %d", len(losses))
	}
	if currency == "" {
		currency = fxCfg.BaseCurrency
	}

	base := make([]float64, len(losses))
	logs := make([]float64, len(losses))
	for i, v := range losses {
		converted := fxCfg.Convert(v, currency, fxCfg.BaseCurrency)
		if converted <= 0 {
			return 0, 0, fmt.Errorf("single_losses values must be positive")
		}
		base[i] = converted
		logs[i] = math.Log(converted)
	}

	sort.Float64s(base)
	mu = math.Log(stat.Quantile(0.5, stat.LinInterp, base, nil))
	sigma = math.Sqrt(stat.PopVariance(logs, nil))
	return mu, sigma, nil
}

// SampleLosses draws totalEvents per-event loss magnitudes in the FX base
// currency. Zero events returns an empty slice without touching any
// distribution.
func SampleLosses(model string, p SeverityParams, components []MixtureComponent, totalEvents int, fxCfg *fx.Config, src rand.Source) ([]float64, error) {
	if totalEvents <= 0 {
		return []float64{}, nil
	}

	switch model {
	case SevLognormal:
		mu, sigma, err := resolveLognormal(p, fxCfg)
		if err != nil {
			return nil, err
		}
		return drawLognormal(mu, sigma, totalEvents, src), nil

	case SevGamma:
		if p.Shape == nil || p.Scale == nil || *p.Shape <= 0 || *p.Scale <= 0 {
			return nil, fmt.Errorf("gamma severity requires positive shape and scale")
		}
		currency := p.Currency
		if currency == "" {
			currency = fxCfg.BaseCurrency
		}
		// The scale parameter carries the monetary unit.
		scale := fxCfg.Convert(*p.Scale, currency, fxCfg.BaseCurrency)
		dist := distuv.Gamma{Alpha: *p.Shape, Beta: 1.0 / scale, Src: src}
		out := make([]float64, totalEvents)
		for i := range out {
			out[i] = dist.Rand()
		}
		return out, nil

	case SevMixture:
		if len(components) == 0 {
			return nil, fmt.Errorf("mixture severity requires at least one component")
		}
		// Only the first listed component is sampled. This mirrors the
		// reference engine; weighted component selection is not implemented.
		first := components[0]
		switch {
		case first.Lognormal != nil:
			return SampleLosses(SevLognormal, *first.Lognormal, nil, totalEvents, fxCfg, src)
		case first.Gamma != nil:
			return SampleLosses(SevGamma, *first.Gamma, nil, totalEvents, fxCfg, src)
		default:
			return nil, fmt.Errorf("mixture component 0 declares no supported distribution")
		}

	default:
		return nil, fmt.Errorf("unsupported severity model %q", model)
	}
}

// resolveLognormal normalizes the three parameterizations (median+sigma,
// mu+sigma, single-loss calibration) into base-currency (mu, sigma).
func resolveLognormal(p SeverityParams, fxCfg *fx.Config) (mu, sigma float64, err error) {
	if p.SingleLosses != nil {
		if p.Median != nil || p.Mu != nil {
			return 0, 0, fmt.Errorf("lognormal severity cannot combine 'single_losses' with 'median' or 'mu'")
		}
		return CalibrateLognormal(p.SingleLosses, p.Currency, fxCfg)
	}

	if p.Median != nil && p.Mu != nil {
		return 0, 0, fmt.Errorf("lognormal severity cannot use both 'median' and 'mu'; choose one")
	}

	currency := p.Currency
	if currency == "" {
		currency = fxCfg.BaseCurrency
	}

	switch {
	case p.Median != nil:
		// Median converts as a plain monetary amount.
		median := fxCfg.Convert(*p.Median, currency, fxCfg.BaseCurrency)
		if median <= 0 {
			return 0, 0, fmt.Errorf("lognormal median must be positive, got %v", median)
		}
		mu = math.Log(median)
	case p.Mu != nil:
		// Mu lives in log space; currency conversion is an additive shift.
		mu = *p.Mu
		if fx.CurrencyCode(currency) != fx.CurrencyCode(fxCfg.BaseCurrency) {
			mu += math.Log(fxCfg.Convert(1.0, currency, fxCfg.BaseCurrency))
		}
	default:
		return 0, 0, fmt.Errorf("lognormal severity requires 'median' or 'mu' (or 'single_losses' for calibration)")
	}

	if p.Sigma == nil || *p.Sigma <= 0 {
		return 0, 0, fmt.Errorf("lognormal severity requires a positive 'sigma'")
	}
	return mu, *p.Sigma, nil
}

func drawLognormal(mu, sigma float64, n int, src rand.Source) []float64 {
	out := make([]float64, n)
	if sigma <= 0 {
		// Degenerate calibration (identical observed losses) collapses to a
		// point mass at the median.
		v := math.Exp(mu)
		for i := range out {
			out[i] = v
		}
		return out
	}
	dist := distuv.LogNormal{Mu: mu, Sigma: sigma, Src: src}
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}
