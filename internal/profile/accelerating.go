package profile

// Accelerating starts MinionsCountProLaunch minions at a period that is
// divided by Accelerator after each launch, never going below MinPeriodMs.
//
// An accelerator greater than 1 ramps faster over time, one between 0 and 1
// slows the ramp down.
type Accelerating struct {
	base

	StartPeriodMs         int64   `json:"startPeriodMs"`
	Accelerator           float64 `json:"accelerator"`
	MinPeriodMs           int64   `json:"minPeriodMs"`
	MinionsCountProLaunch int     `json:"minionsCountProLaunch"`
}

// NewAccelerating creates an Accelerating profile.
func NewAccelerating(startPeriodMs int64, accelerator float64, minPeriodMs int64, minionsCountProLaunch int) (*Accelerating, error) {
	if startPeriodMs < 0 {
		return nil, invalidParameter(KindAccelerating, "startPeriodMs", "must not be negative")
	}
	if !(accelerator > 0) {
		return nil, invalidParameter(KindAccelerating, "accelerator", "must be greater than 0")
	}
	if minPeriodMs < 0 {
		return nil, invalidParameter(KindAccelerating, "minPeriodMs", "must not be negative")
	}
	if minionsCountProLaunch <= 0 {
		return nil, invalidParameter(KindAccelerating, "minionsCountProLaunch", "must be greater than 0")
	}
	return &Accelerating{
		StartPeriodMs:         startPeriodMs,
		Accelerator:           accelerator,
		MinPeriodMs:           minPeriodMs,
		MinionsCountProLaunch: minionsCountProLaunch,
	}, nil
}

// Kind returns KindAccelerating.
func (p *Accelerating) Kind() Kind {
	return KindAccelerating
}

// Iterator returns an iterator whose delays evolve geometrically.
func (p *Accelerating) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)
	return &acceleratingIterator{
		remaining:   totalMinionsCount,
		perLaunch:   p.MinionsCountProLaunch,
		accelerator: p.Accelerator,
		startPeriod: float64(p.StartPeriodMs) / speedFactor,
		minPeriod:   float64(p.MinPeriodMs) / speedFactor,
	}
}

type acceleratingIterator struct {
	remaining   int
	perLaunch   int
	accelerator float64
	startPeriod float64
	minPeriod   float64

	// period is the delay of the previous line, 0 before the first one.
	period  float64
	started bool
}

func (it *acceleratingIterator) HasNext() bool {
	return it.remaining > 0
}

func (it *acceleratingIterator) Next() StartingLine {
	if !it.started {
		it.period = it.startPeriod
		it.started = true
	} else {
		it.period = max(it.period/it.accelerator, it.minPeriod)
	}

	count := min(it.perLaunch, it.remaining)
	it.remaining -= count
	return StartingLine{Count: count, OffsetMs: int64(it.period)}
}
