package profile

// ProgressiveVolume starts minions at a constant period, multiplying the
// volume of each launch by Multiplier up to MaxMinionsCountProLaunch.
type ProgressiveVolume struct {
	base

	PeriodMs                     int64   `json:"periodMs"`
	MinionsCountProLaunchAtStart int     `json:"minionsCountProLaunchAtStart"`
	Multiplier                   float64 `json:"multiplier"`
	MaxMinionsCountProLaunch     int     `json:"maxMinionsCountProLaunch"`
}

// NewProgressiveVolume creates a ProgressiveVolume profile.
func NewProgressiveVolume(periodMs int64, minionsCountProLaunchAtStart int, multiplier float64, maxMinionsCountProLaunch int) (*ProgressiveVolume, error) {
	if periodMs < 0 {
		return nil, invalidParameter(KindProgressiveVolume, "periodMs", "must not be negative")
	}
	if minionsCountProLaunchAtStart <= 0 {
		return nil, invalidParameter(KindProgressiveVolume, "minionsCountProLaunchAtStart", "must be greater than 0")
	}
	if !(multiplier > 0) {
		return nil, invalidParameter(KindProgressiveVolume, "multiplier", "must be greater than 0")
	}
	if maxMinionsCountProLaunch <= 0 {
		return nil, invalidParameter(KindProgressiveVolume, "maxMinionsCountProLaunch", "must be greater than 0")
	}
	return &ProgressiveVolume{
		PeriodMs:                     periodMs,
		MinionsCountProLaunchAtStart: minionsCountProLaunchAtStart,
		Multiplier:                   multiplier,
		MaxMinionsCountProLaunch:     maxMinionsCountProLaunch,
	}, nil
}

// Kind returns KindProgressiveVolume.
func (p *ProgressiveVolume) Kind() Kind {
	return KindProgressiveVolume
}

// Iterator returns an iterator with a growing volume per line.
func (p *ProgressiveVolume) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)
	return &progressiveVolumeIterator{
		remaining:  totalMinionsCount,
		periodMs:   scaledMs(p.PeriodMs, speedFactor),
		volume:     float64(min(p.MinionsCountProLaunchAtStart, p.MaxMinionsCountProLaunch)),
		multiplier: p.Multiplier,
		maxVolume:  float64(p.MaxMinionsCountProLaunch),
	}
}

type progressiveVolumeIterator struct {
	remaining  int
	periodMs   int64
	volume     float64
	multiplier float64
	maxVolume  float64
}

func (it *progressiveVolumeIterator) HasNext() bool {
	return it.remaining > 0
}

func (it *progressiveVolumeIterator) Next() StartingLine {
	// A multiplier below 1 must not shrink the volume to nothing.
	count := min(max(int(it.volume), 1), it.remaining)
	it.remaining -= count
	it.volume = min(it.volume*it.multiplier, it.maxVolume)
	return StartingLine{Count: count, OffsetMs: it.periodMs}
}
