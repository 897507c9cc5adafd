package engine

import (
	"os"
	"strconv"
)

// Default scheduler ceilings.
const (
	DefaultMaxIterations = 1000
	DefaultMaxLoopCount  = 10
)

// Limits bounds one flow execution: total scheduler iterations and
// iterations per loop node. Exceeding MaxIterations produces an ERROR
// terminal state; a loop node that reaches its ceiling stops re-enqueueing
// its target and the run continues.
type Limits struct {
	MaxIterations int
	MaxLoopCount  int
}

// withDefaults fills zero fields with the defaults.
func (l Limits) withDefaults() Limits {
	if l.MaxIterations <= 0 {
		l.MaxIterations = DefaultMaxIterations
	}
	if l.MaxLoopCount <= 0 {
		l.MaxLoopCount = DefaultMaxLoopCount
	}
	return l
}

// LimitsFromEnv reads MAX_ITERATIONS and MAX_LOOP_COUNT, falling back to
// the defaults on absent or malformed values.
func LimitsFromEnv() Limits {
	return Limits{
		MaxIterations: envInt("MAX_ITERATIONS", DefaultMaxIterations),
		MaxLoopCount:  envInt("MAX_LOOP_COUNT", DefaultMaxLoopCount),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
