package engine

import "time"

type Rules struct {
	MaxPlayers    int
	MinPlayers    int
	MaxRounds     int
	RoundDuration time.Duration
	HintInterval  time.Duration
	RoundEndDelay time.Duration
	ResultsDelay  time.Duration
}

func DefaultRules() Rules {
	return Rules{
		MaxPlayers:    8,
		MinPlayers:    2,
		MaxRounds:     5,
		RoundDuration: 60 * time.Second,
		HintInterval:  15 * time.Second,
		RoundEndDelay: 3 * time.Second,
		ResultsDelay:  10 * time.Second,
	}
}

func (r Rules) roundSeconds() int { return int(r.RoundDuration / time.Second) }

// Points awards a correct guess by seconds elapsed since the round started.
func Points(elapsed int) int {
	switch {
	case elapsed <= 15:
		return 100
	case elapsed <= 30:
		return 75
	case elapsed <= 45:
		return 50
	default:
		return 25
	}
}
