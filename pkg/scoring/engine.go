package scoring

import (
	"fmt"
	"sort"
	"sync"
)

// Engine evaluates principle scores under registered weight policies.
// An Engine is safe for concurrent use; registration takes the write
// lock, evaluation the read lock.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]WeightPolicy
}

// NewEngine creates an Engine with the built-in industry policies
// registered.
func NewEngine() *Engine {
	e := &Engine{policies: make(map[string]WeightPolicy, len(builtinPolicies))}
	for _, p := range builtinPolicies {
		if err := e.RegisterPolicy(p); err != nil {
			// Built-in policies are fixed at compile time; failing here is
			// a programmer error.
			panic(fmt.Sprintf("invalid built-in policy %q: %v", p.Name, err))
		}
	}
	return e
}

// RegisterPolicy validates and registers (or replaces) a weight policy.
// Weight-closure violations are rejected here, once, not at scoring time.
func (e *Engine) RegisterPolicy(p WeightPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.Name] = p
	return nil
}

// RegisterPoliciesYAML parses a YAML policy file and registers every
// policy in it. Nothing is registered if any policy is invalid.
func (e *Engine) RegisterPoliciesYAML(data []byte) error {
	policies, err := ParsePoliciesYAML(data)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := e.RegisterPolicy(p); err != nil {
			return err
		}
	}
	return nil
}

// Policy returns a registered policy by name.
func (e *Engine) Policy(name string) (WeightPolicy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.policies[name]
	if !ok {
		return WeightPolicy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

// PolicyNames returns the registered policy names, sorted.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluation is the result of scoring one principle set under one policy.
type Evaluation struct {
	// Scores echoes the validated input scores.
	Scores Scores `json:"scores"`

	// OverallScore is the weighted result on the 0-100 scale.
	OverallScore int `json:"overall_score"`

	// Status is the threshold band of OverallScore.
	Status Status `json:"status"`

	// Weights records the applied weights as integer basis points
	// (summing to 10000), for audit.
	Weights map[string]int `json:"weights"`

	// WeightSource names the policy that produced the weights.
	WeightSource string `json:"weight_source"`

	// Vetoed is true when a critical principle scored zero.
	Vetoed bool `json:"vetoed,omitempty"`

	// VetoedBy lists the critical principles that scored zero.
	VetoedBy []string `json:"vetoed_by,omitempty"`
}

// Evaluate scores the six principles under the named policy (empty name
// means DefaultPolicy).
//
// A zero score on any critical principle short-circuits: overall 0,
// status FAIL, no weighting applied. Otherwise the overall score is the
// basis-point weighted sum scaled to 0-100, rounded half-up.
func (e *Engine) Evaluate(scores Scores, policyName string) (*Evaluation, error) {
	if policyName == "" {
		policyName = DefaultPolicy
	}

	policy, err := e.Policy(policyName)
	if err != nil {
		return nil, err
	}

	if err := validateScores(scores); err != nil {
		return nil, err
	}

	weights := policy.BasisPoints()
	result := &Evaluation{
		Scores:       cloneScores(scores),
		Weights:      weights,
		WeightSource: policy.Name,
	}

	// Veto check first: this is a short-circuit, not a penalty.
	for _, name := range Principles {
		if policy.isCritical(name) && scores[name] == 0 {
			result.Vetoed = true
			result.VetoedBy = append(result.VetoedBy, name)
		}
	}
	if result.Vetoed {
		result.OverallScore = 0
		result.Status = StatusFail
		return result, nil
	}

	// score_i in 0..10, weight in basis points summing to 10000:
	// the raw sum tops out at 100000, so +500 then /1000 is a half-up
	// round onto the 0-100 scale.
	sum := 0
	for _, name := range Principles {
		sum += scores[name] * weights[name]
	}
	result.OverallScore = (sum + 500) / 1000
	result.Status = StatusFor(result.OverallScore)

	return result, nil
}

// validateScores checks presence, vocabulary, and range.
func validateScores(scores Scores) error {
	for name := range scores {
		known := false
		for _, p := range Principles {
			if p == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownPrinciple, name)
		}
	}

	for _, name := range Principles {
		score, ok := scores[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingPrinciple, name)
		}
		if score < MinScore || score > MaxScore {
			return fmt.Errorf("%w: %s=%d, want %d..%d", ErrScoreOutOfRange, name, score, MinScore, MaxScore)
		}
	}

	return nil
}

func cloneScores(in Scores) Scores {
	out := make(Scores, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
