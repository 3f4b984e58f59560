package types

import "encoding/json"

// Client -> Server
const (
	TypeCreateLobby = "CREATE_LOBBY"
	TypeJoinLobby   = "JOIN_LOBBY"
	TypeStartGame   = "START_GAME"
	TypeSubmitGuess = "SUBMIT_GUESS"
)

// Server -> Client
const (
	TypeLobbyCreated  = "LOBBY_CREATED"
	TypeLobbyJoined   = "LOBBY_JOINED"
	TypeError         = "ERROR"
	TypeLobbyUpdate   = "LOBBY_UPDATE"
	TypeGameStart     = "GAME_START"
	TypeGameUpdate    = "GAME_UPDATE"
	TypeRoundEnd      = "ROUND_END"
	TypeNewRound      = "NEW_ROUND"
	TypeFinalResults  = "FINAL_RESULTS"
	TypeGameReset     = "GAME_RESET"
	TypeCorrectGuess  = "CORRECT_GUESS"
	TypeGuessFeedback = "GUESS_FEEDBACK"
)

// Error codes carried in ERROR payloads.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeLobbyNotFound  = "LOBBY_NOT_FOUND"
	ErrCodeLobbyFull      = "LOBBY_FULL"
	ErrCodeGameInProgress = "GAME_IN_PROGRESS"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreateLobbyPayload struct {
	PlayerName string `json:"playerName"`
}

type JoinLobbyPayload struct {
	LobbyCode  string `json:"lobbyCode"`
	PlayerName string `json:"playerName"`
}

type SubmitGuessPayload struct {
	Guess string `json:"guess"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type LobbyCodePayload struct {
	LobbyCode string `json:"lobbyCode"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	HasGuessed  bool   `json:"hasGuessed"`
	IsConnected bool   `json:"isConnected"`
}

type LobbyState struct {
	Players  []Player `json:"players"`
	CanStart bool     `json:"canStart"`
	Status   string   `json:"status"`
}

type GameState struct {
	Status       string   `json:"status"`
	Round        int      `json:"round"`
	MaxRounds    int      `json:"maxRounds"`
	TimeLeft     int      `json:"timeLeft"`
	CurrentHints []string `json:"currentHints"`
	Players      []Player `json:"players"` // highest score first
	CurrentWord  string   `json:"currentWord,omitempty"`
}

type FinalResults struct {
	Players []Player `json:"players"`
	Winner  *Player  `json:"winner"`
}

type CorrectGuess struct {
	PlayerID  string    `json:"playerId"`
	Guess     string    `json:"guess"`
	Points    int       `json:"points"`
	GameState GameState `json:"gameState"`
}

type GuessFeedback struct {
	Correct bool   `json:"correct"`
	Guess   string `json:"guess"`
}
