package profile

// TimeFrame spreads all the minions evenly over TimeFrameInMs, one line
// every PeriodInMs.
type TimeFrame struct {
	base

	PeriodInMs    int64 `json:"periodInMs"`
	TimeFrameInMs int64 `json:"timeFrameInMs"`
}

// NewTimeFrame creates a TimeFrame profile.
func NewTimeFrame(periodInMs, timeFrameInMs int64) (*TimeFrame, error) {
	if periodInMs <= 0 {
		return nil, invalidParameter(KindTimeFrame, "periodInMs", "must be greater than 0")
	}
	if timeFrameInMs <= 0 {
		return nil, invalidParameter(KindTimeFrame, "timeFrameInMs", "must be greater than 0")
	}
	return &TimeFrame{PeriodInMs: periodInMs, TimeFrameInMs: timeFrameInMs}, nil
}

// Kind returns KindTimeFrame.
func (p *TimeFrame) Kind() Kind {
	return KindTimeFrame
}

// LinesCount returns the number of lines the time frame holds, at least 1.
func (p *TimeFrame) LinesCount() int64 {
	if p.PeriodInMs <= 0 {
		return 1
	}
	return max(p.TimeFrameInMs/p.PeriodInMs, 1)
}

// Iterator returns an iterator starting ceil(total/lines) minions per line.
func (p *TimeFrame) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)

	lines := p.LinesCount()
	perLine := int((int64(totalMinionsCount) + lines - 1) / lines)
	return &regularIterator{
		remaining: totalMinionsCount,
		perLaunch: max(perLine, 1),
		periodMs:  scaledMs(p.PeriodInMs, speedFactor),
	}
}
