package types

// Frames are JSON {"type": ..., "payload": {...}}.
//
// Client -> Server
// CREATE_LOBBY:
//   playerName: string
//
// JOIN_LOBBY:
//   lobbyCode: string // case-insensitive
//   playerName: string
//
// START_GAME: {}
//
// SUBMIT_GUESS:
//   guess: string
//
// Server -> Client
// LOBBY_CREATED | LOBBY_JOINED (private):
//   lobbyCode: string
//
// ERROR (private):
//   code: "VALIDATION_ERROR" | "LOBBY_NOT_FOUND" | "LOBBY_FULL" | "GAME_IN_PROGRESS" | "INTERNAL_ERROR"
//   message: string
//
// LOBBY_UPDATE | GAME_RESET:
//   players: Player[] // id|name|score|hasGuessed|isConnected, join order
//   canStart: boolean
//   status: "LOBBY" | "PLAYING" | "ROUND_END" | "FINAL_RESULTS"
//
// GAME_START | GAME_UPDATE | ROUND_END | NEW_ROUND:
//   status, round, maxRounds, timeLeft: number
//   currentHints: string[]
//   players: Player[] // highest score first
//   currentWord: string // omitted while the round is being guessed
//
// FINAL_RESULTS:
//   players: Player[]
//   winner: Player | null
//
// CORRECT_GUESS:
//   playerId: string
//   guess: string
//   points: number
//   gameState: GAME_UPDATE payload
//
// GUESS_FEEDBACK (private):
//   correct: false
//   guess: string
