package replay

import "fmt"

// Mode selects how many times a worker walks the log.
type Mode int

const (
	// AllOnce sends every record exactly once.
	AllOnce Mode = iota
	// Finite sends Count records, wrapping to the start of the log as needed.
	Finite
	// Infinite wraps forever; only cancellation stops it.
	Infinite
)

func (m Mode) String() string {
	switch m {
	case AllOnce:
		return "all-once"
	case Finite:
		return "finite"
	case Infinite:
		return "infinite"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Policy is a job's repeat policy.
type Policy struct {
	Mode  Mode
	Count int
}

// PolicyFromN maps the --n flag: 0 replays the log once, a positive n sends
// n messages, -1 loops forever.
func PolicyFromN(n int) (Policy, error) {
	switch {
	case n == 0:
		return Policy{Mode: AllOnce}, nil
	case n > 0:
		return Policy{Mode: Finite, Count: n}, nil
	case n == -1:
		return Policy{Mode: Infinite}, nil
	default:
		return Policy{}, fmt.Errorf("n must be -1, 0 or positive, got %d", n)
	}
}

// Sends returns how many records the policy sends over a log of n records,
// or -1 for an infinite policy.
func (p Policy) Sends(n int) int64 {
	switch p.Mode {
	case Finite:
		return int64(p.Count)
	case Infinite:
		return -1
	default:
		return int64(n)
	}
}

func (p Policy) String() string {
	if p.Mode == Finite {
		return fmt.Sprintf("finite(%d)", p.Count)
	}
	return p.Mode.String()
}
