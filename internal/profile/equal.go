package profile

import (
	"slices"
)

// Equal reports whether two profiles describe the same policy, so that
// identical scenario configurations can share one profile.
//
// Stage profiles compare their completion mode and stages but not the
// deadline fixed at start. UserDefined profiles compare their callbacks
// by identity.
func Equal(a, b ExecutionProfile) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch pa := a.(type) {
	case *Immediate:
		return true
	case *Regular:
		return *pa == *b.(*Regular)
	case *Accelerating:
		return *pa == *b.(*Accelerating)
	case *ProgressiveVolume:
		return *pa == *b.(*ProgressiveVolume)
	case *TimeFrame:
		return *pa == *b.(*TimeFrame)
	case *Stages:
		pb := b.(*Stages)
		return pa.completion == pb.completion && slices.Equal(pa.stages, pb.stages)
	case *UserDefined:
		return sameRampUp(pa.rampUp, b.(*UserDefined).rampUp)
	default:
		return false
	}
}
