package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/DoyleJ11/word-guess-backend/internal/clock"
	"github.com/DoyleJ11/word-guess-backend/internal/words"
)

var ErrLobbyFull = errors.New("lobby is full")
var ErrDuplicatePlayer = errors.New("player already in lobby")
var ErrNotPlaying = errors.New("no round in progress")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrAlreadyGuessed = errors.New("player already guessed this round")

type Phase string

const (
	PhaseLobby        Phase = "LOBBY"
	PhasePlaying      Phase = "PLAYING"
	PhaseRoundEnd     Phase = "ROUND_END"
	PhaseFinalResults Phase = "FINAL_RESULTS"
)

type Player struct {
	ID         string
	Name       string
	Score      int
	HasGuessed bool
	Connected  bool
}

type Round struct {
	Word        string
	Hints       []string
	Revealed    int
	SecondsLeft int
	Index       int
}

type EventType string

const (
	EvtGameUpdate   EventType = "gameUpdate"
	EvtHintRevealed EventType = "hintRevealed"
	EvtRoundEnd     EventType = "roundEnd"
	EvtNewRound     EventType = "newRound"
	EvtFinalResults EventType = "finalResults"
	EvtGameReset    EventType = "gameReset"
)

// Event carries the state as it was when the event was produced.
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

type GuessResult struct {
	Correct bool
	Points  int
}

type WordBank interface {
	Draw() words.Entry
}

// Engine is one lobby's round state machine. It is not safe for concurrent
// use: every method, and every callback it schedules on its clock, must run
// on the goroutine that owns the lobby.
type Engine struct {
	rules   Rules
	bank    WordBank
	clock   clock.Clock
	phase   Phase
	players []*Player
	round   *Round
	epoch   uint64
	events  []Event

	countdown clock.Timer
	hintTimer clock.Timer
	delayed   clock.Timer
}

func New(bank WordBank, clk clock.Clock, rules Rules) *Engine {
	return &Engine{
		rules: rules,
		bank:  bank,
		clock: clk,
		phase: PhaseLobby,
	}
}

func (e *Engine) Phase() Phase  { return e.phase }
func (e *Engine) Len() int      { return len(e.players) }
func (e *Engine) Epoch() uint64 { return e.epoch }
func (e *Engine) Rules() Rules  { return e.rules }
func (e *Engine) IsFull() bool  { return len(e.players) >= e.rules.MaxPlayers }
func (e *Engine) CanStart() bool {
	return e.phase == PhaseLobby && len(e.players) >= e.rules.MinPlayers
}

func (e *Engine) AddPlayer(id, name string) error {
	if e.IsFull() {
		return ErrLobbyFull
	}
	if e.player(id) != nil {
		return ErrDuplicatePlayer
	}
	e.players = append(e.players, &Player{ID: id, Name: name, Connected: true})
	return nil
}

// RemovePlayer drops the player in any phase. It never ends the round early;
// the caller disposes the lobby when the roster is empty.
func (e *Engine) RemovePlayer(id string) bool {
	for i, p := range e.players {
		if p.ID == id {
			e.players = append(e.players[:i], e.players[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) Start() bool {
	if !e.CanStart() {
		return false
	}
	for _, p := range e.players {
		p.Score = 0
	}
	e.phase = PhasePlaying
	e.round = &Round{Index: 1}
	e.beginRound()
	return true
}

func (e *Engine) beginRound() {
	entry := e.bank.Draw()

	e.round.Word = strings.ToUpper(strings.TrimSpace(entry.Word))
	e.round.Hints = append([]string(nil), entry.Hints...)
	e.round.Revealed = min(1, len(e.round.Hints))
	e.round.SecondsLeft = e.rules.roundSeconds()

	for _, p := range e.players {
		p.HasGuessed = false
	}

	e.cancelTimers()
	e.epoch++

	e.countdown = e.after(time.Second, e.tick)
	if e.round.Revealed < len(e.round.Hints) {
		e.hintTimer = e.after(e.rules.HintInterval, e.revealHint)
	}
}

func (e *Engine) tick() {
	if e.phase != PhasePlaying {
		return
	}

	e.round.SecondsLeft--
	if e.round.SecondsLeft <= 0 {
		e.round.SecondsLeft = 0
		e.countdown = nil
		e.EndRound()
		return
	}

	e.emit(EvtGameUpdate)
	e.countdown = e.after(time.Second, e.tick)
}

func (e *Engine) revealHint() {
	if e.phase != PhasePlaying {
		return
	}

	if e.round.Revealed < len(e.round.Hints) {
		e.round.Revealed++
		e.emit(EvtHintRevealed)
	}

	if e.round.Revealed < len(e.round.Hints) {
		e.hintTimer = e.after(e.rules.HintInterval, e.revealHint)
	} else {
		e.hintTimer = nil
	}
}

// SubmitGuess adjudicates a guess. A wrong word yields a zero result and a nil
// error; guesses that are not allowed at all return one of ErrNotPlaying,
// ErrUnknownPlayer or ErrAlreadyGuessed.
func (e *Engine) SubmitGuess(id, text string) (GuessResult, error) {
	if e.phase != PhasePlaying || e.round == nil {
		return GuessResult{}, ErrNotPlaying
	}
	p := e.player(id)
	if p == nil {
		return GuessResult{}, ErrUnknownPlayer
	}
	if p.HasGuessed {
		return GuessResult{}, ErrAlreadyGuessed
	}

	if !strings.EqualFold(strings.TrimSpace(text), e.round.Word) {
		return GuessResult{}, nil
	}

	p.HasGuessed = true
	points := Points(e.rules.roundSeconds() - e.round.SecondsLeft)
	p.Score += points

	if e.allGuessed() {
		e.EndRound()
	}
	return GuessResult{Correct: true, Points: points}, nil
}

func (e *Engine) EndRound() {
	if e.phase != PhasePlaying {
		return
	}

	e.phase = PhaseRoundEnd
	e.cancelTimers()
	e.epoch++
	e.emit(EvtRoundEnd)

	if e.round.Index >= e.rules.MaxRounds {
		e.delayed = e.after(e.rules.RoundEndDelay, e.finalize)
	} else {
		e.delayed = e.after(e.rules.RoundEndDelay, e.advanceRound)
	}
}

func (e *Engine) advanceRound() {
	if e.phase != PhaseRoundEnd {
		return
	}
	e.delayed = nil

	e.round.Index++
	e.phase = PhasePlaying
	e.beginRound()
	e.emit(EvtNewRound)
}

func (e *Engine) finalize() {
	if e.phase != PhaseRoundEnd {
		return
	}

	e.phase = PhaseFinalResults
	e.round = nil
	e.cancelTimers()
	e.epoch++
	e.emit(EvtFinalResults)

	e.delayed = e.after(e.rules.ResultsDelay, e.Reset)
}

func (e *Engine) Reset() {
	e.phase = PhaseLobby
	e.round = nil
	for _, p := range e.players {
		p.Score = 0
		p.HasGuessed = false
	}
	e.cancelTimers()
	e.epoch++
	e.emit(EvtGameReset)
}

// Close cancels every pending timer and invalidates callbacks that already
// fired but have not run yet.
func (e *Engine) Close() {
	e.cancelTimers()
	e.epoch++
}

// Drain hands over the events produced since the last call.
func (e *Engine) Drain() []Event {
	evs := e.events
	e.events = nil
	return evs
}

func (e *Engine) emit(t EventType) {
	e.events = append(e.events, Event{Type: t, Snapshot: e.Snapshot()})
}

// after schedules f stamped with the current epoch.
func (e *Engine) after(d time.Duration, f func()) clock.Timer {
	epoch := e.epoch
	return e.clock.AfterFunc(d, func() {
		if e.epoch != epoch {
			return
		}
		f()
	})
}

func (e *Engine) cancelTimers() {
	for _, t := range []*clock.Timer{&e.countdown, &e.hintTimer, &e.delayed} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (e *Engine) allGuessed() bool {
	for _, p := range e.players {
		if !p.HasGuessed {
			return false
		}
	}
	return len(e.players) > 0
}

func (e *Engine) player(id string) *Player {
	for _, p := range e.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
