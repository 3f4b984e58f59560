package types

import "github.com/DoyleJ11/word-guess-backend/internal/engine"

func players(ps []engine.Player) []Player {
	out := make([]Player, 0, len(ps))
	for _, p := range ps {
		out = append(out, Player{
			ID:          p.ID,
			Name:        p.Name,
			Score:       p.Score,
			HasGuessed:  p.HasGuessed,
			IsConnected: p.Connected,
		})
	}
	return out
}

func NewLobbyState(s engine.Snapshot) LobbyState {
	return LobbyState{
		Players:  players(s.Players),
		CanStart: s.CanStart,
		Status:   string(s.Phase),
	}
}

func NewGameState(s engine.Snapshot) GameState {
	return GameState{
		Status:       string(s.Phase),
		Round:        s.RoundIndex(),
		MaxRounds:    s.MaxRounds,
		TimeLeft:     s.TimeLeft(),
		CurrentHints: s.VisibleHints(),
		Players:      players(s.Standings()),
		CurrentWord:  s.RevealedWord(),
	}
}

func NewFinalResults(s engine.Snapshot) FinalResults {
	res := FinalResults{Players: players(s.Standings())}
	if len(res.Players) > 0 {
		w := res.Players[0]
		res.Winner = &w
	}
	return res
}

func LobbyUpdate(s engine.Snapshot) ServerMessage {
	return ServerMessage{Type: TypeLobbyUpdate, Payload: NewLobbyState(s)}
}

func GameMessage(msgType string, s engine.Snapshot) ServerMessage {
	return ServerMessage{Type: msgType, Payload: NewGameState(s)}
}

func Error(code, message string) ServerMessage {
	return ServerMessage{Type: TypeError, Payload: ErrorPayload{Code: code, Message: message}}
}

// FromEvent maps an engine event onto the message broadcast for it.
func FromEvent(ev engine.Event) (ServerMessage, bool) {
	switch ev.Type {
	case engine.EvtGameUpdate, engine.EvtHintRevealed:
		return GameMessage(TypeGameUpdate, ev.Snapshot), true
	case engine.EvtRoundEnd:
		return GameMessage(TypeRoundEnd, ev.Snapshot), true
	case engine.EvtNewRound:
		return GameMessage(TypeNewRound, ev.Snapshot), true
	case engine.EvtFinalResults:
		return ServerMessage{Type: TypeFinalResults, Payload: NewFinalResults(ev.Snapshot)}, true
	case engine.EvtGameReset:
		return ServerMessage{Type: TypeGameReset, Payload: NewLobbyState(ev.Snapshot)}, true
	default:
		return ServerMessage{}, false
	}
}
