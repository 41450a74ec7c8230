package profile

// Immediate starts all the minions in a single line, without delay.
// It is the profile used when a scenario configures none.
type Immediate struct {
	base
}

// NewImmediate creates an Immediate profile.
func NewImmediate() *Immediate {
	return &Immediate{}
}

// Kind returns KindImmediate.
func (p *Immediate) Kind() Kind {
	return KindImmediate
}

// Iterator returns an iterator yielding one line with every minion.
func (p *Immediate) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)
	return &immediateIterator{remaining: totalMinionsCount}
}

type immediateIterator struct {
	remaining int
}

func (it *immediateIterator) HasNext() bool {
	return it.remaining > 0
}

func (it *immediateIterator) Next() StartingLine {
	line := StartingLine{Count: it.remaining}
	it.remaining = 0
	return line
}
