package engine

import (
	"cmp"
	"slices"
)

// Snapshot is a deep copy of a lobby's state; nothing in it aliases the engine.
type Snapshot struct {
	Phase     Phase
	Players   []Player // registration order
	Round     *Round   // nil outside PLAYING and ROUND_END
	MaxRounds int
	CanStart  bool
}

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Phase:     e.phase,
		Players:   make([]Player, 0, len(e.players)),
		MaxRounds: e.rules.MaxRounds,
		CanStart:  e.CanStart(),
	}
	for _, p := range e.players {
		s.Players = append(s.Players, *p)
	}
	if e.round != nil {
		r := *e.round
		r.Hints = append([]string(nil), e.round.Hints...)
		s.Round = &r
	}
	return s
}

// Standings orders players by score, highest first. Equal scores keep
// registration order.
func (s Snapshot) Standings() []Player {
	out := slices.Clone(s.Players)
	slices.SortStableFunc(out, func(a, b Player) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Winner is the top scorer, the earliest registered one on a tie.
func (s Snapshot) Winner() (Player, bool) {
	st := s.Standings()
	if len(st) == 0 {
		return Player{}, false
	}
	return st[0], true
}

func (s Snapshot) VisibleHints() []string {
	if s.Round == nil {
		return []string{}
	}
	return slices.Clone(s.Round.Hints[:s.Round.Revealed])
}

// RevealedWord is empty while the round is still being guessed.
func (s Snapshot) RevealedWord() string {
	if s.Round == nil || s.Phase == PhasePlaying {
		return ""
	}
	return s.Round.Word
}

func (s Snapshot) TimeLeft() int {
	if s.Round == nil {
		return 0
	}
	return s.Round.SecondsLeft
}

func (s Snapshot) RoundIndex() int {
	if s.Round == nil {
		return 0
	}
	return s.Round.Index
}
