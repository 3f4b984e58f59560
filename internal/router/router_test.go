package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/word-guess-backend/internal/clock"
	"github.com/DoyleJ11/word-guess-backend/internal/hub"
	"github.com/DoyleJ11/word-guess-backend/internal/lobby"
	"github.com/DoyleJ11/word-guess-backend/internal/types"
	"github.com/DoyleJ11/word-guess-backend/internal/words"
)

type stubBank struct{}

func (stubBank) Draw() words.Entry {
	return words.Entry{Word: "PIZZA", Hints: []string{"Italian", "Round", "Cheese", "Delivery"}}
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	clk *clock.Manual
	hub *hub.Hub
	r   *Router
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"ABC123"}
	}
	i := 0
	gen := func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}

	clk := clock.NewManual(time.Unix(0, 0))
	log := zaptest.NewLogger(t)
	h := hub.NewHub(context.Background(),
		hub.WithCodeGenerator(gen),
		hub.WithLogger(log),
		hub.WithLobbyOptions(lobby.WithClock(clk), lobby.WithWordBank(stubBank{}), lobby.WithLogger(log)),
	)
	t.Cleanup(h.Shutdown)

	return &fixture{t: t, ctx: context.Background(), clk: clk, hub: h, r: New(h, log, WithOutboxSize(256))}
}

func (f *fixture) send(id, msgType string, payload any) error {
	f.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(f.t, err)
	return f.r.Handle(f.ctx, id, types.ClientMessage{Type: msgType, Payload: raw})
}

func (f *fixture) create(id, name string) {
	f.t.Helper()
	require.NoError(f.t, f.send(id, types.TypeCreateLobby, types.CreateLobbyPayload{PlayerName: name}))
}

func (f *fixture) join(id, code, name string) {
	f.t.Helper()
	require.NoError(f.t, f.send(id, types.TypeJoinLobby, types.JoinLobbyPayload{LobbyCode: code, PlayerName: name}))
}

func (f *fixture) guess(id, text string) {
	f.t.Helper()
	require.NoError(f.t, f.send(id, types.TypeSubmitGuess, types.SubmitGuessPayload{Guess: text}))
}

// sync waits until the lobby has applied everything queued so far.
func (f *fixture) sync(code string) {
	f.t.Helper()
	lb, err := f.hub.Lookup(f.ctx, code)
	require.NoError(f.t, err)
	require.NotNil(f.t, lb, "lobby %s", code)
	_, err = lb.View(f.ctx)
	require.NoError(f.t, err)
}

// elapse advances simulated time one second at a time.
func (f *fixture) elapse(code string, seconds int) {
	f.t.Helper()
	for range seconds {
		f.clk.Advance(time.Second)
		f.sync(code)
	}
}

func recv(t *testing.T, c *lobby.Client) types.ServerMessage {
	t.Helper()
	select {
	case msg := <-c.Outbox():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s: timed out waiting for message", c.ID)
		return types.ServerMessage{}
	}
}

// next skips frames until one of type want arrives.
func next(t *testing.T, c *lobby.Client, want string) types.ServerMessage {
	t.Helper()
	for {
		msg := recv(t, c)
		if msg.Type == want {
			return msg
		}
	}
}

func drain(c *lobby.Client) []types.ServerMessage {
	var out []types.ServerMessage
	for {
		select {
		case msg := <-c.Outbox():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func requireError(t *testing.T, c *lobby.Client, code string) {
	t.Helper()
	msg := recv(t, c)
	require.Equal(t, types.TypeError, msg.Type, "payload: %+v", msg.Payload)
	assert.Equal(t, code, msg.Payload.(types.ErrorPayload).Code)
}

func TestCreateLobby_RepliesWithCodeThenUpdate(t *testing.T) {
	f := newFixture(t)
	a := f.r.Connect("a")

	f.create("a", "  Ann ")

	msg := recv(t, a)
	require.Equal(t, types.TypeLobbyCreated, msg.Type)
	assert.Equal(t, "ABC123", msg.Payload.(types.LobbyCodePayload).LobbyCode)

	upd := recv(t, a)
	require.Equal(t, types.TypeLobbyUpdate, upd.Type)
	state := upd.Payload.(types.LobbyState)
	require.Len(t, state.Players, 1)
	assert.Equal(t, "Ann", state.Players[0].Name)
	assert.False(t, state.CanStart)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		msgType string
		payload any
	}{
		{"create with empty name", types.TypeCreateLobby, types.CreateLobbyPayload{PlayerName: "  "}},
		{"create with long name", types.TypeCreateLobby, types.CreateLobbyPayload{PlayerName: strings.Repeat("x", MaxNameLength+1)}},
		{"join with missing name", types.TypeJoinLobby, types.JoinLobbyPayload{LobbyCode: "ABC123"}},
		{"join with missing code", types.TypeJoinLobby, types.JoinLobbyPayload{PlayerName: "Bo"}},
		{"empty guess", types.TypeSubmitGuess, types.SubmitGuessPayload{Guess: " "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.r.Connect("c")

			require.NoError(t, f.send("c", tc.msgType, tc.payload))
			requireError(t, c, types.ErrCodeValidation)
			assert.Empty(t, drain(c))

			n, err := f.hub.Count(f.ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestJoinLobby_NotFound(t *testing.T) {
	f := newFixture(t)
	b := f.r.Connect("b")

	f.join("b", "NOPE00", "Bo")
	msg := recv(t, b)
	require.Equal(t, types.TypeError, msg.Type)
	assert.Equal(t, types.ErrorPayload{Code: types.ErrCodeLobbyNotFound, Message: "Lobby not found"}, msg.Payload)
}

func TestJoinLobby_CodeIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	a, b := f.r.Connect("a"), f.r.Connect("b")
	f.create("a", "Ann")
	drain(a)

	f.join("b", " abc123 ", "Bo")
	msg := recv(t, b)
	require.Equal(t, types.TypeLobbyJoined, msg.Type)
	assert.Equal(t, "ABC123", msg.Payload.(types.LobbyCodePayload).LobbyCode)

	upd := next(t, a, types.TypeLobbyUpdate).Payload.(types.LobbyState)
	assert.Len(t, upd.Players, 2)
	assert.True(t, upd.CanStart)
}

func TestJoinLobby_Full(t *testing.T) {
	f := newFixture(t)
	f.r.Connect("p0")
	f.create("p0", "P0")
	for i := 1; i < 8; i++ {
		id := fmt.Sprint("p", i)
		f.r.Connect(id)
		f.join(id, "ABC123", id)
	}

	late := f.r.Connect("late")
	f.join("late", "ABC123", "Late")
	msg := recv(t, late)
	assert.Equal(t, types.ErrorPayload{Code: types.ErrCodeLobbyFull, Message: "Lobby is full"}, msg.Payload)
}

func TestJoinLobby_GameInProgress(t *testing.T) {
	f := newFixture(t)
	f.r.Connect("a")
	f.r.Connect("b")
	f.create("a", "Ann")
	f.join("b", "ABC123", "Bo")
	require.NoError(t, f.send("a", types.TypeStartGame, struct{}{}))
	f.sync("ABC123")

	c := f.r.Connect("c")
	f.join("c", "ABC123", "Cy")
	msg := recv(t, c)
	assert.Equal(t, types.ErrorPayload{Code: types.ErrCodeGameInProgress, Message: "Game is already in progress"}, msg.Payload)
}

func TestStartAndGuess_UnboundAreSilent(t *testing.T) {
	f := newFixture(t)
	c := f.r.Connect("c")

	require.NoError(t, f.send("c", types.TypeStartGame, nil))
	f.guess("c", "pizza")
	assert.Empty(t, drain(c))
}

func TestStart_TooFewPlayersIsSilent(t *testing.T) {
	f := newFixture(t)
	a := f.r.Connect("a")
	f.create("a", "Ann")
	drain(a)

	require.NoError(t, f.send("a", types.TypeStartGame, struct{}{}))
	f.sync("ABC123")
	assert.Empty(t, drain(a))
}

func TestScenario_BothGuessEarly_RoundEndsImmediately(t *testing.T) {
	f := newFixture(t)
	a, b := f.r.Connect("A"), f.r.Connect("B")
	f.create("A", "Ann")
	f.join("B", "ABC123", "Bo")
	require.NoError(t, f.send("A", types.TypeStartGame, struct{}{}))

	gs := next(t, b, types.TypeGameStart).Payload.(types.GameState)
	assert.Equal(t, 60, gs.TimeLeft)
	assert.Equal(t, []string{"Italian"}, gs.CurrentHints)

	f.elapse("ABC123", 4)
	f.guess("A", "pizza")
	f.elapse("ABC123", 5)
	f.guess("B", " PIZZA")
	f.sync("ABC123")

	msgs := drain(b)
	var points []int
	var end *types.GameState
	for _, m := range msgs {
		switch m.Type {
		case types.TypeCorrectGuess:
			points = append(points, m.Payload.(types.CorrectGuess).Points)
		case types.TypeRoundEnd:
			gs := m.Payload.(types.GameState)
			end = &gs
		}
	}
	assert.Equal(t, []int{100, 100}, points)
	require.NotNil(t, end, "round ended without waiting for the timer")
	assert.Equal(t, "ROUND_END", end.Status)
	assert.Equal(t, "PIZZA", end.CurrentWord)
	assert.Equal(t, 51, end.TimeLeft)
	for _, p := range end.Players {
		assert.Equal(t, 100, p.Score, p.ID)
	}
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, types.TypeRoundEnd, msgs[len(msgs)-2].Type)
	assert.Equal(t, types.TypeCorrectGuess, msgs[len(msgs)-1].Type, "closing guess follows ROUND_END")
	drain(a)

	f.clk.Advance(3 * time.Second)
	nr := next(t, a, types.TypeNewRound).Payload.(types.GameState)
	assert.Equal(t, 2, nr.Round)
	for _, p := range nr.Players {
		assert.False(t, p.HasGuessed)
	}
}

func TestScenario_SingleGuessAt40s_RoundRunsToZero(t *testing.T) {
	f := newFixture(t)
	a := f.r.Connect("A")
	f.r.Connect("B")
	f.create("A", "Ann")
	f.join("B", "ABC123", "Bo")
	require.NoError(t, f.send("A", types.TypeStartGame, struct{}{}))

	f.elapse("ABC123", 40)
	f.guess("A", "Pizza")
	cg := next(t, a, types.TypeCorrectGuess).Payload.(types.CorrectGuess)
	assert.Equal(t, 50, cg.Points)
	assert.Equal(t, "A", cg.PlayerID)
	assert.Empty(t, cg.GameState.CurrentWord)

	f.elapse("ABC123", 19)
	for _, m := range drain(a) {
		assert.NotEqual(t, types.TypeRoundEnd, m.Type)
	}

	f.elapse("ABC123", 1)
	end := next(t, a, types.TypeRoundEnd).Payload.(types.GameState)
	assert.Equal(t, 0, end.TimeLeft)
	assert.Equal(t, 50, end.Players[0].Score)
	assert.Equal(t, "A", end.Players[0].ID)
}

func TestWrongGuess_PrivateFeedback(t *testing.T) {
	f := newFixture(t)
	a, b := f.r.Connect("a"), f.r.Connect("b")
	f.create("a", "Ann")
	f.join("b", "ABC123", "Bo")
	require.NoError(t, f.send("a", types.TypeStartGame, struct{}{}))
	f.sync("ABC123")
	drain(a)
	drain(b)

	f.guess("a", "pasta")
	f.sync("ABC123")
	msg := recv(t, a)
	assert.Equal(t, types.ServerMessage{Type: types.TypeGuessFeedback, Payload: types.GuessFeedback{Correct: false, Guess: "pasta"}}, msg)
	assert.Empty(t, drain(b))
}

func TestDisconnect_LastPlayerDisposesLobby(t *testing.T) {
	f := newFixture(t)
	a, b := f.r.Connect("a"), f.r.Connect("b")
	f.create("a", "Ann")
	f.join("b", "ABC123", "Bo")
	drain(a)

	f.r.Disconnect(f.ctx, "b")
	upd := next(t, a, types.TypeLobbyUpdate).Payload.(types.LobbyState)
	assert.Len(t, upd.Players, 1)
	_, open := <-b.Done()
	assert.False(t, open)

	f.r.Disconnect(f.ctx, "a")
	require.Eventually(t, func() bool {
		n, err := f.hub.Count(f.ctx)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)

	c := f.r.Connect("c")
	f.join("c", "ABC123", "Cy")
	requireError(t, c, types.ErrCodeLobbyNotFound)
	assert.Equal(t, 1, f.r.Connections())
}

func TestDisconnect_MidRoundStopsTimers(t *testing.T) {
	f := newFixture(t)
	f.r.Connect("a")
	f.r.Connect("b")
	f.create("a", "Ann")
	f.join("b", "ABC123", "Bo")
	require.NoError(t, f.send("a", types.TypeStartGame, struct{}{}))
	f.sync("ABC123")

	f.r.Disconnect(f.ctx, "a")
	f.r.Disconnect(f.ctx, "b")
	require.Eventually(t, func() bool { return f.clk.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCreateWhileBound_LeavesPreviousLobby(t *testing.T) {
	f := newFixture(t, "ABC123", "XYZ789")
	a, b := f.r.Connect("a"), f.r.Connect("b")
	f.create("a", "Ann")
	f.join("b", "ABC123", "Bo")
	drain(b)

	f.create("a", "Ann")
	msg := next(t, a, types.TypeLobbyCreated)
	assert.Equal(t, "XYZ789", msg.Payload.(types.LobbyCodePayload).LobbyCode)

	upd := next(t, b, types.TypeLobbyUpdate).Payload.(types.LobbyState)
	require.Len(t, upd.Players, 1)
	assert.Equal(t, "b", upd.Players[0].ID)
}

func TestLobbiesAreIsolated(t *testing.T) {
	f := newFixture(t, "ABC123", "XYZ789")
	a1, a2 := f.r.Connect("a1"), f.r.Connect("a2")
	b1, b2 := f.r.Connect("b1"), f.r.Connect("b2")
	f.create("a1", "A1")
	f.join("a2", "ABC123", "A2")
	f.create("b1", "B1")
	f.join("b2", "XYZ789", "B2")
	drain(b1)
	drain(b2)

	require.NoError(t, f.send("a1", types.TypeStartGame, struct{}{}))
	f.elapse("ABC123", 3)
	f.guess("a1", "pizza")
	f.sync("ABC123")

	assert.NotEmpty(t, drain(a1))
	assert.NotEmpty(t, drain(a2))
	assert.Empty(t, drain(b1))
	assert.Empty(t, drain(b2))

	f.sync("XYZ789")
	lb, err := f.hub.Lookup(f.ctx, "XYZ789")
	require.NoError(t, err)
	v, err := lb.View(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "LOBBY", string(v.State.Phase))
}

func TestHandle_BadInput(t *testing.T) {
	f := newFixture(t)
	c := f.r.Connect("c")

	err := f.r.Handle(f.ctx, "c", types.ClientMessage{Type: "DANCE"})
	require.ErrorIs(t, err, ErrUnknownType)

	err = f.r.Handle(f.ctx, "c", types.ClientMessage{Type: types.TypeJoinLobby, Payload: json.RawMessage(`{"lobbyCode":42}`)})
	require.ErrorIs(t, err, ErrBadPayload)

	err = f.r.Handle(f.ctx, "ghost", types.ClientMessage{Type: types.TypeStartGame})
	require.ErrorIs(t, err, ErrUnknownConnection)

	assert.Empty(t, drain(c))
}
