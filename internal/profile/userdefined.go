package profile

import (
	"reflect"
)

// RampUp computes the next starting line of a UserDefined profile.
type RampUp interface {
	// NextStartingLine receives the offset of the previous line (0 for the
	// first one), the total minions count and the speed factor.
	NextStartingLine(pastPeriodMs int64, totalMinionsCount int, speedFactor float64) StartingLine
}

// RampUpFunc adapts a function to the RampUp interface.
type RampUpFunc func(pastPeriodMs int64, totalMinionsCount int, speedFactor float64) StartingLine

// NextStartingLine calls f.
func (f RampUpFunc) NextStartingLine(pastPeriodMs int64, totalMinionsCount int, speedFactor float64) StartingLine {
	return f(pastPeriodMs, totalMinionsCount, speedFactor)
}

// UserDefined delegates every starting line to a RampUp callback.
//
// The iterator only stops when all the minions are started: a callback that
// keeps returning a zero count never ends.
type UserDefined struct {
	base

	rampUp RampUp
}

// NewUserDefined creates a UserDefined profile.
func NewUserDefined(rampUp RampUp) (*UserDefined, error) {
	if rampUp == nil || isNilFunc(rampUp) {
		return nil, invalidParameter(KindUserDefined, "rampUp", "a ramp-up callback is required")
	}
	return &UserDefined{rampUp: rampUp}, nil
}

// Kind returns KindUserDefined.
func (p *UserDefined) Kind() Kind {
	return KindUserDefined
}

// RampUp returns the callback of the profile.
func (p *UserDefined) RampUp() RampUp {
	return p.rampUp
}

// Iterator returns an iterator calling the callback for each line.
func (p *UserDefined) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)
	return &userDefinedIterator{
		rampUp:            p.rampUp,
		totalMinionsCount: totalMinionsCount,
		speedFactor:       speedFactor,
		remaining:         totalMinionsCount,
	}
}

type userDefinedIterator struct {
	rampUp            RampUp
	totalMinionsCount int
	speedFactor       float64

	pastPeriodMs int64
	remaining    int
}

func (it *userDefinedIterator) HasNext() bool {
	return it.remaining > 0
}

func (it *userDefinedIterator) Next() StartingLine {
	line := it.rampUp.NextStartingLine(it.pastPeriodMs, it.totalMinionsCount, it.speedFactor)
	it.pastPeriodMs = line.OffsetMs

	count := min(max(line.Count, 0), it.remaining)
	it.remaining -= count
	return StartingLine{Count: count, OffsetMs: line.OffsetMs}
}

func isNilFunc(r RampUp) bool {
	f, ok := r.(RampUpFunc)
	return ok && f == nil
}

// sameRampUp compares two callbacks by identity. Functions are compared by
// their code pointer, other comparable values with ==.
func sameRampUp(a, b RampUp) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
