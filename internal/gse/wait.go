package gse

import "time"

// pollInterval is the delay between condition evaluations in Wait. Tests
// shorten it.
var pollInterval = time.Second

// Forever disables the iteration budget of Wait.
const Forever = -1

// Wait blocks until cond is satisfied and reports whether it was.
//
// Numeric conditions are plain delays: a time.Duration, or an int/float64
// number of seconds, sleeps for that long and returns true. A func() bool is
// evaluated once per poll interval until it returns true; a bool is treated
// as a constant predicate. With a non-negative timeoutIterations the
// condition is evaluated that many times before giving up and returning
// false; pass Forever to poll indefinitely.
//
// Any other condition type reports false immediately.
func Wait(cond any, timeoutIterations int) bool {
	switch c := cond.(type) {
	case time.Duration:
		time.Sleep(c)
		return true
	case int:
		time.Sleep(time.Duration(c) * time.Second)
		return true
	case float64:
		time.Sleep(time.Duration(c * float64(time.Second)))
		return true
	}

	eval := func() bool { return false }
	switch c := cond.(type) {
	case func() bool:
		eval = c
	case bool:
		eval = func() bool { return c }
	default:
		return false
	}

	for n := 0; ; n++ {
		if timeoutIterations >= 0 && n == timeoutIterations {
			return false
		}
		if eval() {
			return true
		}
		time.Sleep(pollInterval)
	}
}
