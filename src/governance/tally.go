package governance

import (
	"math"
	"math/bits"
)

// Outcome is the result of tallying a closed proposal.
type Outcome struct {
	ParticipationBp uint64
	ApprovalBp      uint64
	QuorumReached   bool
	Approved        bool
}

// Evaluate tallies t against the unit's reference power and thresholds.
// Both ratios are floored; a zero reference power yields zero participation.
func Evaluate(t Tally, referencePower uint64, p Params) Outcome {
	var o Outcome
	if referencePower > 0 {
		o.ParticipationBp = mulDiv(t.Total, MaxBasisPoints, referencePower)
	}
	if t.Total > 0 {
		o.ApprovalBp = mulDiv(t.Yes, MaxBasisPoints, t.Total)
	}
	o.QuorumReached = o.ParticipationBp >= p.QuorumThresholdBp
	o.Approved = o.QuorumReached && o.ApprovalBp >= p.ApprovalThresholdBp
	return o
}

// mulDiv returns floor(a*b/c) using a 128-bit intermediate, saturating
// when the quotient does not fit in 64 bits. c must be non-zero.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

func satMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// add credits power to the tally bucket for kind.
func (t Tally) add(kind VoteKind, power uint64) (Tally, error) {
	if !kind.Valid() {
		return t, errorf(CodeInvalidParameter, "unknown vote kind %q", kind)
	}
	total, carry := bits.Add64(t.Total, power, 0)
	if carry != 0 {
		return t, errorf(CodeTallyOverflow, "tally total overflows")
	}
	out := t
	out.Total = total
	// Buckets are bounded by Total.
	switch kind {
	case VoteYes:
		out.Yes += power
	case VoteNo:
		out.No += power
	case VoteAbstain:
		out.Abstain += power
	}
	return out, nil
}
