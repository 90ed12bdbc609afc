package optimizer

import (
	"fmt"

	"github.com/c-bata/goptuna"
	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/cora-labs/lendsim/pkg/study"
)

// paramDomain turns one goptuna suggestion into a JSON patch against
// the study configuration.
type paramDomain interface {
	buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error)
}

type paramDomainBase struct {
	label string
	path  string
}

func (d paramDomainBase) patch(value interface{}) (jsonpatch.Patch, error) {
	var literal string
	switch v := value.(type) {
	case string:
		literal = fmt.Sprintf("%q", v)
	default:
		literal = fmt.Sprintf("%v", v)
	}
	op := []byte(fmt.Sprintf(`[{"op": "replace", "path": "%s", "value": %s}]`, d.path, literal))
	return jsonpatch.DecodePatch(op)
}

type floatRangeDomain struct {
	paramDomainBase
	min, max float64
}

func (d *floatRangeDomain) buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error) {
	val, err := trial.SuggestFloat(d.label, d.min, d.max)
	if err != nil {
		return nil, err
	}
	return d.patch(val)
}

type floatDiscreteRangeDomain struct {
	paramDomainBase
	min, max, step float64
}

func (d *floatDiscreteRangeDomain) buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error) {
	val, err := trial.SuggestDiscreteFloat(d.label, d.min, d.max, d.step)
	if err != nil {
		return nil, err
	}
	return d.patch(val)
}

type intRangeDomain struct {
	paramDomainBase
	min, max int
}

func (d *intRangeDomain) buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error) {
	val, err := trial.SuggestInt(d.label, d.min, d.max)
	if err != nil {
		return nil, err
	}
	return d.patch(val)
}

type intStepRangeDomain struct {
	paramDomainBase
	min, max, step int
}

func (d *intStepRangeDomain) buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error) {
	val, err := trial.SuggestStepInt(d.label, d.min, d.max, d.step)
	if err != nil {
		return nil, err
	}
	return d.patch(val)
}

type stringDomain struct {
	paramDomainBase
	options []string
}

func (d *stringDomain) buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error) {
	val, err := trial.SuggestCategorical(d.label, d.options)
	if err != nil {
		return nil, err
	}
	return d.patch(val)
}

type boolDomain struct {
	paramDomainBase
}

func (d *boolDomain) buildPatch(trial *goptuna.Trial) (jsonpatch.Patch, error) {
	val, err := trial.SuggestCategorical(d.label, []string{"false", "true"})
	if err != nil {
		return nil, err
	}
	op := []byte(fmt.Sprintf(`[{"op": "replace", "path": "%s", "value": %s}]`, d.path, val))
	return jsonpatch.DecodePatch(op)
}

// buildParamDomains maps the selector matrix onto suggestion domains.
// Labels default to the JSON path.
func buildParamDomains(matrix []study.Selector) (map[string]string, []paramDomain) {
	labelPaths := make(map[string]string, len(matrix))
	domains := make([]paramDomain, 0, len(matrix))

	for _, selector := range matrix {
		label := selector.Label
		if label == "" {
			label = selector.Path
		}
		base := paramDomainBase{label: label, path: selector.Path}

		var domain paramDomain
		switch selector.Type {
		case "rangeFloat", "range":
			if selector.Step == 0 {
				domain = &floatRangeDomain{paramDomainBase: base, min: selector.Min, max: selector.Max}
			} else {
				domain = &floatDiscreteRangeDomain{paramDomainBase: base, min: selector.Min, max: selector.Max, step: selector.Step}
			}
		case "rangeInt":
			if selector.Step == 0 {
				domain = &intRangeDomain{paramDomainBase: base, min: int(selector.Min), max: int(selector.Max)}
			} else {
				domain = &intStepRangeDomain{paramDomainBase: base, min: int(selector.Min), max: int(selector.Max), step: int(selector.Step)}
			}
		case "string", "iterate":
			domain = &stringDomain{paramDomainBase: base, options: selector.Values}
		case "bool":
			domain = &boolDomain{paramDomainBase: base}
		default:
			log.Warnf("unknown selector type %q, skipping %s", selector.Type, selector.Path)
			continue
		}
		labelPaths[label] = selector.Path
		domains = append(domains, domain)
	}
	return labelPaths, domains
}
