package export

import "github.com/trustrail/trustrail-core/pkg/receipt"

// Filter selects receipts before serialization. Predicates compose with
// AND semantics; a nil Filter selects everything. Filtering never
// mutates the input set.
type Filter struct {
	// SessionID keeps only receipts of one session (exact match).
	SessionID string

	// MinResonanceScore keeps receipts whose telemetry overall score is
	// at least this value. Receipts without telemetry are excluded —
	// a threshold cannot be proven met without a score.
	MinResonanceScore *int

	// MaxTruthDebt keeps receipts whose telemetry truth debt is at most
	// this value. Receipts without a truth-debt reading are excluded.
	MaxTruthDebt *float64
}

// MinScore is a convenience constructor for threshold pointers.
func MinScore(n int) *int { return &n }

// MaxDebt is a convenience constructor for threshold pointers.
func MaxDebt(v float64) *float64 { return &v }

// Apply returns the receipts matching every predicate, in input order.
func (f *Filter) Apply(receipts []*receipt.TrustReceipt) []*receipt.TrustReceipt {
	if f == nil {
		return receipts
	}

	out := make([]*receipt.TrustReceipt, 0, len(receipts))
	for _, r := range receipts {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *Filter) matches(r *receipt.TrustReceipt) bool {
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if f.MinResonanceScore != nil {
		if r.Telemetry == nil || r.Telemetry.OverallScore < *f.MinResonanceScore {
			return false
		}
	}
	if f.MaxTruthDebt != nil {
		if r.Telemetry == nil || r.Telemetry.TruthDebt == nil || *r.Telemetry.TruthDebt > *f.MaxTruthDebt {
			return false
		}
	}
	return true
}
