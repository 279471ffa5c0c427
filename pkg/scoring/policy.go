package scoring

import (
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Common errors returned by this package.
var (
	ErrMissingPrinciple = errors.New("missing principle score")
	ErrUnknownPrinciple = errors.New("unknown principle name")
	ErrUnknownPolicy    = errors.New("unknown weight policy")
	ErrScoreOutOfRange  = errors.New("principle score out of range")
	ErrInvalidWeights   = errors.New("invalid policy weights")
)

// weightTolerance is the permitted floating-point slack when checking
// that a policy's weights sum to 1.0.
const weightTolerance = 0.001

// WeightPolicy is a named industry weighting of the six principles.
// Weights are fractions in [0,1] summing to 1.0 (± tolerance); Critical
// names the veto-bearing principles.
type WeightPolicy struct {
	Name     string             `json:"name" yaml:"name"`
	Weights  map[string]float64 `json:"weights" yaml:"weights"`
	Critical []string           `json:"critical" yaml:"critical"`
}

// Validate checks a policy for registration: every principle weighted,
// no unknown names, weights in range and summing to 1.0, critical set a
// subset of the principles. Policies are validated once here, never per
// scoring call.
func (p *WeightPolicy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: policy name is required", ErrInvalidWeights)
	}

	known := make(map[string]bool, len(Principles))
	for _, name := range Principles {
		known[name] = true
	}

	sum := 0.0
	for name, w := range p.Weights {
		if !known[name] {
			return fmt.Errorf("%w: %q in policy %q", ErrUnknownPrinciple, name, p.Name)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: weight for %s must be in [0,1], got %v", ErrInvalidWeights, name, w)
		}
		sum += w
	}
	for _, name := range Principles {
		if _, ok := p.Weights[name]; !ok {
			return fmt.Errorf("%w: policy %q has no weight for %s", ErrInvalidWeights, p.Name, name)
		}
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights of policy %q sum to %v, want 1.0 ±%v", ErrInvalidWeights, p.Name, sum, weightTolerance)
	}

	for _, name := range p.Critical {
		if !known[name] {
			return fmt.Errorf("%w: critical principle %q in policy %q", ErrUnknownPrinciple, name, p.Name)
		}
	}

	return nil
}

// BasisPoints returns the policy's weights as integer basis points
// (weight × 10000). All weighted arithmetic downstream is integral so
// that scores embedded in hashes are bit-identical across platforms.
func (p *WeightPolicy) BasisPoints() map[string]int {
	out := make(map[string]int, len(p.Weights))
	for name, w := range p.Weights {
		out[name] = int(math.Round(w * 10000))
	}
	return out
}

// isCritical reports whether name carries veto power under this policy.
func (p *WeightPolicy) isCritical(name string) bool {
	for _, c := range p.Critical {
		if c == name {
			return true
		}
	}
	return false
}

// DefaultPolicy is the policy used when the caller does not pick one.
const DefaultPolicy = "standard"

// defaultCritical is the baseline veto set shared by every built-in
// policy; some industries extend it.
var defaultCritical = []string{ConsentArchitecture, EthicalOverride}

// builtinPolicies are the industry weight policies registered by every
// new Engine.
var builtinPolicies = []WeightPolicy{
	{
		Name: "standard",
		Weights: map[string]float64{
			ConsentArchitecture:  0.20,
			InspectionMandate:    0.15,
			ContinuousValidation: 0.15,
			EthicalOverride:      0.20,
			RightToDisconnect:    0.15,
			MoralRecognition:     0.15,
		},
		Critical: defaultCritical,
	},
	{
		Name: "healthcare",
		Weights: map[string]float64{
			ConsentArchitecture:  0.35,
			InspectionMandate:    0.15,
			ContinuousValidation: 0.15,
			EthicalOverride:      0.20,
			RightToDisconnect:    0.10,
			MoralRecognition:     0.05,
		},
		Critical: []string{ConsentArchitecture, EthicalOverride, RightToDisconnect},
	},
	{
		Name: "finance",
		Weights: map[string]float64{
			ConsentArchitecture:  0.20,
			InspectionMandate:    0.30,
			ContinuousValidation: 0.20,
			EthicalOverride:      0.15,
			RightToDisconnect:    0.05,
			MoralRecognition:     0.10,
		},
		Critical: defaultCritical,
	},
	{
		Name: "government",
		Weights: map[string]float64{
			ConsentArchitecture:  0.25,
			InspectionMandate:    0.25,
			ContinuousValidation: 0.15,
			EthicalOverride:      0.20,
			RightToDisconnect:    0.05,
			MoralRecognition:     0.10,
		},
		Critical: []string{ConsentArchitecture, EthicalOverride, InspectionMandate},
	},
	{
		Name: "technology",
		Weights: map[string]float64{
			ConsentArchitecture:  0.15,
			InspectionMandate:    0.20,
			ContinuousValidation: 0.25,
			EthicalOverride:      0.15,
			RightToDisconnect:    0.15,
			MoralRecognition:     0.10,
		},
		Critical: defaultCritical,
	},
	{
		Name: "education",
		Weights: map[string]float64{
			ConsentArchitecture:  0.25,
			InspectionMandate:    0.10,
			ContinuousValidation: 0.15,
			EthicalOverride:      0.15,
			RightToDisconnect:    0.15,
			MoralRecognition:     0.20,
		},
		Critical: defaultCritical,
	},
	{
		Name: "legal",
		Weights: map[string]float64{
			ConsentArchitecture:  0.30,
			InspectionMandate:    0.25,
			ContinuousValidation: 0.10,
			EthicalOverride:      0.20,
			RightToDisconnect:    0.05,
			MoralRecognition:     0.10,
		},
		Critical: defaultCritical,
	},
}

// policyFile is the YAML shape for user-supplied policy files:
//
//	policies:
//	  - name: acme-internal
//	    weights:
//	      CONSENT_ARCHITECTURE: 0.30
//	      ...
//	    critical: [CONSENT_ARCHITECTURE]
type policyFile struct {
	Policies []WeightPolicy `yaml:"policies"`
}

// ParsePoliciesYAML parses a YAML policy file. Each policy is validated;
// the first invalid one fails the whole parse.
func ParsePoliciesYAML(data []byte) ([]WeightPolicy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if len(file.Policies) == 0 {
		return nil, fmt.Errorf("%w: policy file defines no policies", ErrInvalidWeights)
	}

	for i := range file.Policies {
		if err := file.Policies[i].Validate(); err != nil {
			return nil, err
		}
	}

	return file.Policies, nil
}
