package plan

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/numparse"
)

// matrixTolerance bounds accepted asymmetry and diagonal deviation in
// explicit correlation matrices.
const matrixTolerance = 1e-9

// largeCardinalityThreshold triggers the linear-scaling caveat warning.
const largeCardinalityThreshold = 100000

// Planner resolves portfolio documents into execution plans. File access
// goes through the injected reader so planning can run against in-memory
// document bundles.
type Planner struct {
	reader document.FileReader
}

func NewPlanner(reader document.FileReader) *Planner {
	if reader == nil {
		reader = document.OSFileReader{}
	}
	return &Planner{reader: reader}
}

// PlanFile reads, parses, and plans the portfolio at path. Referenced
// documents resolve relative to the portfolio file's directory.
func (p *Planner) PlanFile(path string) *Report {
	data, err := p.reader.ReadFile(path)
	if err != nil {
		return failedReport(path, fmt.Sprintf("cannot read portfolio: %v", err))
	}
	doc, issues, err := document.ParsePortfolio(data)
	if err != nil {
		return failedReport(path, err.Error())
	}
	return p.plan(doc, filepath.Dir(path), issues)
}

// PlanDoc plans an already-parsed portfolio document. baseDir anchors
// relative document paths.
func (p *Planner) PlanDoc(doc *document.PortfolioDoc, baseDir string) *Report {
	return p.plan(doc, baseDir, document.ValidatePortfolio(doc))
}

func failedReport(path, msg string) *Report {
	return &Report{
		Errors: []document.Issue{{Level: document.LevelError, Path: path, Message: msg}},
	}
}

func (p *Planner) plan(doc *document.PortfolioDoc, baseDir string, seed []document.Issue) *Report {
	acc := &accumulator{}
	for _, is := range seed {
		acc.add(is)
	}
	pf := &doc.Portfolio

	knownIDs, catalogCount := p.loadCatalogs(pf.ControlCatalogs, baseDir, acc)
	assessed := p.loadAssessments(pf.ControlAssessments, baseDir, acc)

	inventory := map[string]*inventoryPosture{}
	for i, c := range pf.Controls {
		if catalogCount > 0 && !knownIDs[c.ID] {
			acc.errorf(fmt.Sprintf("portfolio.controls[%d].id", i),
				"control id %q is not defined in any loaded control catalog", c.ID)
		}
		if _, dup := inventory[c.ID]; dup {
			continue // duplicate already reported by document validation
		}
		posture := &inventoryPosture{
			Effectiveness: pctValue(c.ImplementationEffectiveness),
			Reliability:   pctValue(c.Reliability),
			Affects:       c.Affects,
		}
		if c.Coverage != nil {
			v := float64(c.Coverage.Value)
			posture.Coverage = &v
			posture.CoverageBasis = c.Coverage.Basis
		}
		inventory[c.ID] = posture
	}
	for id, entry := range assessed {
		if catalogCount > 0 && !knownIDs[id] {
			acc.warnf("portfolio.control_assessments",
				"assessed control id %q is not defined in any loaded control catalog", id)
		}
		if _, fromPortfolio := inventory[id]; fromPortfolio {
			continue // portfolio inventory takes precedence over assessments
		}
		posture := &inventoryPosture{
			Effectiveness: pctValue(entry.ImplementationEffectiveness),
			Reliability:   pctValue(entry.Reliability),
			Affects:       entry.Affects,
		}
		if entry.Coverage != nil {
			v := float64(entry.Coverage.Value)
			posture.Coverage = &v
			posture.CoverageBasis = entry.Coverage.Basis
		}
		inventory[id] = posture
	}

	copula := resolveCopula(pf.Dependency, inventory, acc)

	assetByName := map[string]document.Asset{}
	allAssets := make([]string, 0, len(pf.Assets))
	for _, a := range pf.Assets {
		assetByName[a.Name] = a
		allAssets = append(allAssets, a.Name)
	}

	scenarios := make([]ResolvedScenario, 0, len(pf.Scenarios))
	for i, ref := range pf.Scenarios {
		if rs, ok := p.resolveScenario(i, ref, baseDir, allAssets, assetByName, inventory, acc); ok {
			scenarios = append(scenarios, rs)
		}
	}

	report := &Report{Errors: acc.errors, Warnings: acc.warnings}
	if len(acc.errors) == 0 {
		report.OK = true
		report.Plan = &ExecutionPlan{
			PortfolioName:   doc.Meta.Name,
			SemanticsMethod: pf.Semantics.Method,
			Assets:          pf.Assets,
			Scenarios:       scenarios,
			Copula:          copula,
		}
		log.Debug().
			Str("portfolio", doc.Meta.Name).
			Int("scenarios", len(scenarios)).
			Int("warnings", len(acc.warnings)).
			Msg("execution plan assembled")
	} else {
		log.Debug().
			Str("portfolio", doc.Meta.Name).
			Int("errors", len(acc.errors)).
			Msg("planning failed")
	}
	return report
}

// inventoryPosture normalizes portfolio and assessment control entries into
// one shape for resolution.
type inventoryPosture struct {
	Effectiveness *float64
	Coverage      *float64
	CoverageBasis string
	Reliability   *float64
	Affects       string
}

func (p *Planner) loadCatalogs(paths []string, baseDir string, acc *accumulator) (map[string]bool, int) {
	known := map[string]bool{}
	loaded := 0
	for i, path := range paths {
		at := fmt.Sprintf("portfolio.control_catalogs[%d]", i)
		data, err := p.reader.ReadFile(resolvePath(baseDir, path))
		if err != nil {
			acc.errorf(at, "cannot read control catalog %q: %v", path, err)
			continue
		}
		doc, err := document.ParseCatalog(data)
		if err != nil {
			acc.errorf(at, "%v", err)
			continue
		}
		for _, entry := range doc.Catalog.Controls {
			known[entry.ID] = true
		}
		loaded++
	}
	return known, loaded
}

func (p *Planner) loadAssessments(paths []string, baseDir string, acc *accumulator) map[string]document.AssessmentEntry {
	assessed := map[string]document.AssessmentEntry{}
	source := map[string]string{}
	for i, path := range paths {
		at := fmt.Sprintf("portfolio.control_assessments[%d]", i)
		data, err := p.reader.ReadFile(resolvePath(baseDir, path))
		if err != nil {
			acc.errorf(at, "cannot read control assessment %q: %v", path, err)
			continue
		}
		doc, err := document.ParseAssessment(data)
		if err != nil {
			acc.errorf(at, "%v", err)
			continue
		}
		for _, entry := range doc.Assessment.Assessments {
			if prev, dup := source[entry.ID]; dup {
				acc.warnf(at, "control %q assessed in %q and again in %q; the later entry wins",
					entry.ID, prev, path)
			}
			assessed[entry.ID] = entry
			source[entry.ID] = path
		}
	}
	return assessed
}

func resolveCopula(dep *document.Dependency, inventory map[string]*inventoryPosture, acc *accumulator) *ResolvedCopula {
	if dep == nil || dep.Copula == nil {
		return nil
	}
	c := dep.Copula

	ids := make([]string, 0, len(c.Targets))
	broken := false
	for i, target := range c.Targets {
		at := fmt.Sprintf("portfolio.dependency.copula.targets[%d]", i)
		parts := strings.Split(target, ":")
		if len(parts) != 3 || parts[0] != "control" || parts[1] == "" || parts[2] != "state" {
			acc.errorf(at, "malformed target %q: expected \"control:<id>:state\"", target)
			broken = true
			continue
		}
		id := parts[1]
		if _, ok := inventory[id]; !ok {
			acc.errorf(at, "target references control %q, which is in neither the portfolio inventory nor any assessment pack", id)
			broken = true
			continue
		}
		ids = append(ids, id)
	}
	if broken {
		return nil
	}

	d := len(ids)
	var matrix [][]float64
	switch {
	case c.Structure == "toeplitz":
		if c.Rho == nil {
			acc.errorf("portfolio.dependency.copula", "toeplitz structure requires 'rho'")
			return nil
		}
		rho := *c.Rho
		if rho < -1 || rho > 1 {
			acc.errorf("portfolio.dependency.copula.rho", "rho must be in [-1,1], got %v", rho)
			return nil
		}
		if c.Matrix != nil {
			acc.warnf("portfolio.dependency.copula.matrix",
				"explicit matrix is ignored when structure is \"toeplitz\"")
		}
		matrix = toeplitzMatrix(d, rho)
	case c.Structure != "":
		acc.errorf("portfolio.dependency.copula.structure", "unsupported structure %q (only \"toeplitz\")", c.Structure)
		return nil
	case c.Matrix != nil:
		matrix = c.Matrix
	default:
		acc.errorf("portfolio.dependency.copula", "copula requires either structure \"toeplitz\" with 'rho' or an explicit 'matrix'")
		return nil
	}

	if !validCorrelationMatrix(matrix, d, acc) {
		return nil
	}
	return &ResolvedCopula{Type: c.Type, ControlIDs: ids, Matrix: matrix}
}

// toeplitzMatrix builds the d×d matrix with entries rho^|i-j|.
func toeplitzMatrix(d int, rho float64) [][]float64 {
	m := make([][]float64, d)
	for i := range m {
		m[i] = make([]float64, d)
		for j := range m[i] {
			m[i][j] = math.Pow(rho, math.Abs(float64(i-j)))
		}
	}
	return m
}

func validCorrelationMatrix(m [][]float64, d int, acc *accumulator) bool {
	const at = "portfolio.dependency.copula.matrix"
	if len(m) != d {
		acc.errorf(at, "matrix has %d rows but the copula names %d targets", len(m), d)
		return false
	}
	ok := true
	for i, row := range m {
		if len(row) != d {
			acc.errorf(at, "row %d has %d entries, want %d", i, len(row), d)
			return false
		}
		if math.Abs(row[i]-1.0) > matrixTolerance {
			acc.errorf(at, "diagonal entry [%d][%d] must be 1.0, got %v", i, i, row[i])
			ok = false
		}
		for j, v := range row {
			if v < -1-matrixTolerance || v > 1+matrixTolerance {
				acc.errorf(at, "entry [%d][%d] must be in [-1,1], got %v", i, j, v)
				ok = false
			}
			if j > i && math.Abs(v-m[j][i]) > matrixTolerance {
				acc.errorf(at, "matrix is not symmetric at [%d][%d]", i, j)
				ok = false
			}
		}
	}
	return ok
}

func (p *Planner) resolveScenario(idx int, ref document.ScenarioRef, baseDir string, allAssets []string,
	assetByName map[string]document.Asset, inventory map[string]*inventoryPosture, acc *accumulator) (ResolvedScenario, bool) {

	at := fmt.Sprintf("portfolio.scenarios[%d]", idx)
	resolved := resolvePath(baseDir, ref.Path)

	data, err := p.reader.ReadFile(resolved)
	if err != nil {
		acc.errorf(at+".path", "cannot read scenario %q: %v", ref.Path, err)
		return ResolvedScenario{}, false
	}
	sdoc, err := document.ParseScenario(data)
	if err != nil {
		acc.errorf(at+".path", "%v", err)
		return ResolvedScenario{}, false
	}

	bound := allAssets
	if ref.Binding.AppliesToAssets != nil {
		bound = *ref.Binding.AppliesToAssets
		for _, name := range bound {
			if _, ok := assetByName[name]; !ok {
				acc.errorf(at+".binding", "scenario %q binds unknown asset %q", ref.ID, name)
				return ResolvedScenario{}, false
			}
		}
	}

	cardinality := 0
	switch sdoc.Scenario.Frequency.Basis {
	case document.BasisPerAssetUnit:
		if len(bound) == 0 {
			acc.errorf(at+".binding",
				"scenario %q uses basis %q but binds no assets", ref.ID, document.BasisPerAssetUnit)
			return ResolvedScenario{}, false
		}
		for _, name := range bound {
			cardinality += int(assetByName[name].Cardinality)
		}
	case document.BasisPerOrganization:
		cardinality = 1
		if ref.Binding.AppliesToAssets != nil {
			acc.warnf(at+".binding",
				"scenario %q uses basis %q; the explicit asset binding does not affect cardinality",
				ref.ID, document.BasisPerOrganization)
		}
	default:
		acc.errorf(at, "scenario %q declares unsupported frequency basis %q", ref.ID, sdoc.Scenario.Frequency.Basis)
		return ResolvedScenario{}, false
	}

	if cardinality >= largeCardinalityThreshold {
		acc.warnf(at, "scenario %q has cardinality %d; event rates scale linearly and may dominate the portfolio",
			ref.ID, cardinality)
	}
	warnHeterogeneousAssets(at, ref.ID, bound, assetByName, acc)

	controls := make([]ResolvedScenarioControl, 0, len(sdoc.Scenario.Controls))
	for _, cref := range sdoc.Scenario.Controls {
		if rc, ok := resolveControl(at, ref.ID, cref, inventory, acc); ok {
			controls = append(controls, rc)
		}
	}

	return ResolvedScenario{
		ID:              ref.ID,
		Path:            ref.Path,
		ResolvedPath:    resolved,
		ScenarioName:    sdoc.Meta.Name,
		Weight:          ref.Weight,
		AppliesToAssets: bound,
		Cardinality:     cardinality,
		Controls:        controls,
		Scenario:        sdoc,
	}, true
}

// warnHeterogeneousAssets flags bindings that mix assets with differing tag
// sets or criticality types, where a single summed cardinality may hide
// materially different exposures.
func warnHeterogeneousAssets(at, scenarioID string, bound []string, assetByName map[string]document.Asset, acc *accumulator) {
	if len(bound) < 2 {
		return
	}
	profiles := map[string]bool{}
	for _, name := range bound {
		a := assetByName[name]
		tags := append([]string(nil), a.Tags...)
		sort.Strings(tags)
		critType := ""
		if a.CriticalityIndex != nil {
			critType = a.CriticalityIndex.Type
		}
		profiles[strings.Join(tags, ",")+"|"+critType] = true
	}
	if len(profiles) > 1 {
		acc.warnf(at+".binding",
			"scenario %q binds heterogeneous assets (differing tags or criticality types); summed cardinality treats them as interchangeable",
			scenarioID)
	}
}

func resolveControl(at, scenarioID string, ref document.ControlRef, inventory map[string]*inventoryPosture, acc *accumulator) (ResolvedScenarioControl, bool) {
	posture, ok := inventory[ref.ID]
	if !ok {
		acc.errorf(at+".controls",
			"scenario %q references control %q, which is in neither the portfolio inventory nor any assessment pack",
			scenarioID, ref.ID)
		return ResolvedScenarioControl{}, false
	}
	if posture.Effectiveness == nil && posture.Coverage == nil {
		acc.errorf(at+".controls",
			"control %q defines neither implementation_effectiveness nor coverage; its effect cannot be quantified",
			ref.ID)
		return ResolvedScenarioControl{}, false
	}

	rc := ResolvedScenarioControl{
		ID:                     ref.ID,
		InventoryEffectiveness: posture.Effectiveness,
		InventoryCoverage:      posture.Coverage,
		InventoryCoverageBasis: posture.CoverageBasis,
		InventoryReliability:   posture.Reliability,
		EffectivenessFactor:    pctValue(ref.EffectivenessFactor),
		PotencyFactor:          pctValue(ref.PotencyFactor),
		Affects:                posture.Affects,
	}
	if rc.Affects == "" {
		rc.Affects = "both"
	}

	// A control with no stated effectiveness contributes no reduction; a
	// control with no stated coverage is assumed fully deployed.
	rc.CombinedEffectiveness = clamp01(orDefault(posture.Effectiveness, 0) *
		orDefault(rc.EffectivenessFactor, 1) * orDefault(rc.PotencyFactor, 1))

	coverage := orDefault(posture.Coverage, 1)
	if ref.Coverage != nil {
		v := float64(ref.Coverage.Value)
		rc.CoverageFactor = &v
		rc.CoverageBasis = ref.Coverage.Basis
		coverage *= v
		if posture.CoverageBasis != "" && ref.Coverage.Basis != "" && posture.CoverageBasis != ref.Coverage.Basis {
			acc.warnf(at+".controls",
				"control %q: scenario coverage basis %q does not match inventory basis %q",
				ref.ID, ref.Coverage.Basis, posture.CoverageBasis)
		}
	}
	rc.CombinedCoverage = clamp01(coverage)
	rc.CombinedReliability = clamp01(orDefault(posture.Reliability, 1))

	return rc, true
}

func resolvePath(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func pctValue(p *numparse.Percent) *float64 {
	if p == nil {
		return nil
	}
	v := float64(*p)
	return &v
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// accumulator collects every planning finding; nothing short-circuits.
type accumulator struct {
	errors   []document.Issue
	warnings []document.Issue
}

func (a *accumulator) add(is document.Issue) {
	if is.Level == document.LevelWarning {
		a.warnings = append(a.warnings, is)
		return
	}
	a.errors = append(a.errors, is)
}

func (a *accumulator) errorf(path, format string, args ...any) {
	a.errors = append(a.errors, document.Issue{
		Level: document.LevelError, Path: path, Message: fmt.Sprintf(format, args...),
	})
}

func (a *accumulator) warnf(path, format string, args ...any) {
	a.warnings = append(a.warnings, document.Issue{
		Level: document.LevelWarning, Path: path, Message: fmt.Sprintf(format, args...),
	})
}
