package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustrail/trustrail-core/pkg/scoring"
)

func fullScores() scoring.Scores {
	return scoring.Scores{
		scoring.ConsentArchitecture:  9,
		scoring.InspectionMandate:    7,
		scoring.ContinuousValidation: 8,
		scoring.EthicalOverride:      9,
		scoring.RightToDisconnect:    7,
		scoring.MoralRecognition:     6,
	}
}

func TestEvaluate_HealthcareScenario(t *testing.T) {
	// 9×.35 + 7×.15 + 8×.15 + 9×.20 + 7×.10 + 6×.05 = 8.20 → 82, PASS
	engine := scoring.NewEngine()

	eval, err := engine.Evaluate(fullScores(), "healthcare")
	require.NoError(t, err)

	assert.Equal(t, 82, eval.OverallScore)
	assert.Equal(t, scoring.StatusPass, eval.Status)
	assert.Equal(t, "healthcare", eval.WeightSource)
	assert.Equal(t, 3500, eval.Weights[scoring.ConsentArchitecture])
	assert.False(t, eval.Vetoed)
}

func TestEvaluate_VetoDominance(t *testing.T) {
	// Same scores but the critical ETHICAL_OVERRIDE at zero: overall 0,
	// FAIL, regardless of every other score.
	engine := scoring.NewEngine()

	scores := fullScores()
	scores[scoring.EthicalOverride] = 0

	eval, err := engine.Evaluate(scores, "healthcare")
	require.NoError(t, err)

	assert.Equal(t, 0, eval.OverallScore)
	assert.Equal(t, scoring.StatusFail, eval.Status)
	assert.True(t, eval.Vetoed)
	assert.Equal(t, []string{scoring.EthicalOverride}, eval.VetoedBy)
}

func TestEvaluate_VetoEvenWithAllOthersMax(t *testing.T) {
	engine := scoring.NewEngine()

	scores := scoring.Scores{
		scoring.ConsentArchitecture:  0,
		scoring.InspectionMandate:    10,
		scoring.ContinuousValidation: 10,
		scoring.EthicalOverride:      10,
		scoring.RightToDisconnect:    10,
		scoring.MoralRecognition:     10,
	}

	eval, err := engine.Evaluate(scores, "")
	require.NoError(t, err)
	assert.Equal(t, 0, eval.OverallScore)
	assert.Equal(t, scoring.StatusFail, eval.Status)
	assert.True(t, eval.Vetoed)
}

func TestEvaluate_NonCriticalZeroIsNotVeto(t *testing.T) {
	engine := scoring.NewEngine()

	scores := fullScores()
	scores[scoring.MoralRecognition] = 0 // not critical under standard

	eval, err := engine.Evaluate(scores, "standard")
	require.NoError(t, err)
	assert.False(t, eval.Vetoed)
	assert.Greater(t, eval.OverallScore, 0)
}

func TestEvaluate_ThresholdBoundaries(t *testing.T) {
	// Uniform score s under the standard policy gives overall = 10×s,
	// which lets us land exactly on the band boundaries.
	engine := scoring.NewEngine()

	uniform := func(s int) scoring.Scores {
		scores := make(scoring.Scores, len(scoring.Principles))
		for _, name := range scoring.Principles {
			scores[name] = s
		}
		return scores
	}

	tests := []struct {
		score       int
		wantOverall int
		wantStatus  scoring.Status
	}{
		{10, 100, scoring.StatusPass},
		{7, 70, scoring.StatusPass},    // boundary belongs to the higher band
		{6, 60, scoring.StatusPartial},
		{4, 40, scoring.StatusPartial}, // boundary belongs to the higher band
		{3, 30, scoring.StatusFail},
		{1, 10, scoring.StatusFail},
	}

	for _, tc := range tests {
		eval, err := engine.Evaluate(uniform(tc.score), "standard")
		require.NoError(t, err)
		assert.Equal(t, tc.wantOverall, eval.OverallScore, "uniform score %d", tc.score)
		assert.Equal(t, tc.wantStatus, eval.Status, "uniform score %d", tc.score)
	}
}

func TestEvaluate_RoundingHalfUp(t *testing.T) {
	engine := scoring.NewEngine()
	require.NoError(t, engine.RegisterPolicy(scoring.WeightPolicy{
		Name: "rounding",
		Weights: map[string]float64{
			scoring.ConsentArchitecture:  0.15,
			scoring.InspectionMandate:    0.17,
			scoring.ContinuousValidation: 0.17,
			scoring.EthicalOverride:      0.17,
			scoring.RightToDisconnect:    0.17,
			scoring.MoralRecognition:     0.17,
		},
	}))

	// consent 3, rest 7: 3×1500 + 7×1700×5 = 4500 + 59500 = 64000 → 64.0 → 64
	scores := scoring.Scores{
		scoring.ConsentArchitecture:  3,
		scoring.InspectionMandate:    7,
		scoring.ContinuousValidation: 7,
		scoring.EthicalOverride:      7,
		scoring.RightToDisconnect:    7,
		scoring.MoralRecognition:     7,
	}
	eval, err := engine.Evaluate(scores, "rounding")
	require.NoError(t, err)
	assert.Equal(t, 64, eval.OverallScore)

	// consent 4: 6000 + 59500 = 65500 → 65.5 rounds up to 66
	scores[scoring.ConsentArchitecture] = 4
	eval, err = engine.Evaluate(scores, "rounding")
	require.NoError(t, err)
	assert.Equal(t, 66, eval.OverallScore)
}

func TestEvaluate_MissingPrinciple(t *testing.T) {
	engine := scoring.NewEngine()

	scores := fullScores()
	delete(scores, scoring.RightToDisconnect)

	_, err := engine.Evaluate(scores, "")
	assert.ErrorIs(t, err, scoring.ErrMissingPrinciple)
}

func TestEvaluate_UnknownPrincipleRejected(t *testing.T) {
	engine := scoring.NewEngine()

	scores := fullScores()
	scores["VIBES"] = 5

	_, err := engine.Evaluate(scores, "")
	assert.ErrorIs(t, err, scoring.ErrUnknownPrinciple)
}

func TestEvaluate_ScoreOutOfRange(t *testing.T) {
	engine := scoring.NewEngine()

	for _, bad := range []int{-1, 11, 100} {
		scores := fullScores()
		scores[scoring.InspectionMandate] = bad
		_, err := engine.Evaluate(scores, "")
		assert.ErrorIs(t, err, scoring.ErrScoreOutOfRange, "score %d", bad)
	}
}

func TestEvaluate_UnknownPolicy(t *testing.T) {
	engine := scoring.NewEngine()
	_, err := engine.Evaluate(fullScores(), "astrology")
	assert.ErrorIs(t, err, scoring.ErrUnknownPolicy)
}

func TestEvaluate_DefaultPolicy(t *testing.T) {
	engine := scoring.NewEngine()
	eval, err := engine.Evaluate(fullScores(), "")
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultPolicy, eval.WeightSource)
}

func TestBuiltinPolicies_WeightClosure(t *testing.T) {
	engine := scoring.NewEngine()

	names := engine.PolicyNames()
	assert.Contains(t, names, "standard")
	assert.Contains(t, names, "healthcare")
	assert.Contains(t, names, "finance")
	assert.Contains(t, names, "government")
	assert.Contains(t, names, "technology")
	assert.Contains(t, names, "education")
	assert.Contains(t, names, "legal")

	for _, name := range names {
		policy, err := engine.Policy(name)
		require.NoError(t, err)

		sum := 0.0
		for _, w := range policy.Weights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 0.001, "policy %s", name)

		// Every built-in keeps the baseline veto pair
		assert.Contains(t, policy.Critical, scoring.ConsentArchitecture, "policy %s", name)
		assert.Contains(t, policy.Critical, scoring.EthicalOverride, "policy %s", name)

		// Basis points sum to exactly 10000
		bp := 0
		for _, w := range policy.BasisPoints() {
			bp += w
		}
		assert.Equal(t, 10000, bp, "policy %s", name)
	}
}

func TestScoresFromFloats(t *testing.T) {
	scores, err := scoring.ScoresFromFloats(map[string]float64{"CONSENT_ARCHITECTURE": 9})
	require.NoError(t, err)
	assert.Equal(t, 9, scores["CONSENT_ARCHITECTURE"])

	_, err = scoring.ScoresFromFloats(map[string]float64{"CONSENT_ARCHITECTURE": 8.5})
	assert.ErrorIs(t, err, scoring.ErrScoreOutOfRange)

	_, err = scoring.ScoresFromFloats(map[string]float64{"CONSENT_ARCHITECTURE": math.NaN()})
	assert.ErrorIs(t, err, scoring.ErrScoreOutOfRange)
}
