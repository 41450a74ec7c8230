package profile

// Regular starts MinionsCountProLaunch minions every PeriodMs.
type Regular struct {
	base

	PeriodMs              int64 `json:"periodMs"`
	MinionsCountProLaunch int   `json:"minionsCountProLaunch"`
}

// NewRegular creates a Regular profile.
func NewRegular(periodMs int64, minionsCountProLaunch int) (*Regular, error) {
	if periodMs < 0 {
		return nil, invalidParameter(KindRegular, "periodMs", "must not be negative")
	}
	if minionsCountProLaunch <= 0 {
		return nil, invalidParameter(KindRegular, "minionsCountProLaunch", "must be greater than 0")
	}
	return &Regular{PeriodMs: periodMs, MinionsCountProLaunch: minionsCountProLaunch}, nil
}

// Kind returns KindRegular.
func (p *Regular) Kind() Kind {
	return KindRegular
}

// Iterator returns an iterator emitting a constant batch at a constant period.
// The last batch is truncated to the minions left.
func (p *Regular) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)
	return &regularIterator{
		remaining: totalMinionsCount,
		perLaunch: p.MinionsCountProLaunch,
		periodMs:  scaledMs(p.PeriodMs, speedFactor),
	}
}

type regularIterator struct {
	remaining int
	perLaunch int
	periodMs  int64
}

func (it *regularIterator) HasNext() bool {
	return it.remaining > 0
}

func (it *regularIterator) Next() StartingLine {
	count := min(it.perLaunch, it.remaining)
	it.remaining -= count
	return StartingLine{Count: count, OffsetMs: it.periodMs}
}
