package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/word-guess-backend/internal/clock"
	"github.com/DoyleJ11/word-guess-backend/internal/engine"
	"github.com/DoyleJ11/word-guess-backend/internal/types"
	"github.com/DoyleJ11/word-guess-backend/internal/words"
)

var ErrClosed = errors.New("lobby closed")
var ErrGameInProgress = errors.New("game already in progress")

const recordTimeout = 10 * time.Second

type Msg interface{ isLobbyMsg() }

type Join struct {
	Client  *Client
	Name    string
	Created bool // first player, replies LOBBY_CREATED instead of LOBBY_JOINED
	Reply   chan error
}

func (Join) isLobbyMsg() {}

type Leave struct {
	ClientID string
	Reply    chan int // players left
}

func (Leave) isLobbyMsg() {}

type StartGame struct{}

func (StartGame) isLobbyMsg() {}

type Guess struct {
	ClientID string
	Text     string
}

func (Guess) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type timerFired struct{ fire func() }

func (timerFired) isLobbyMsg() {}

type View struct {
	Code       string
	Closed     bool
	NumClients int
	Epoch      uint64
	State      engine.Snapshot
}

// Recorder archives finished games.
type Recorder interface {
	RecordResults(ctx context.Context, code string, snap engine.Snapshot) error
}

type Lobby struct {
	code     string
	inbox    chan Msg
	engine   *engine.Engine
	clients  map[string]*Client
	closed   bool
	log      *zap.Logger
	recorder Recorder
	ctx      context.Context
	cancel   context.CancelFunc
}

type options struct {
	clock    clock.Clock
	bank     engine.WordBank
	rules    engine.Rules
	log      *zap.Logger
	recorder Recorder
}

type Option func(*options)

func WithClock(c clock.Clock) Option        { return func(o *options) { o.clock = c } }
func WithWordBank(b engine.WordBank) Option { return func(o *options) { o.bank = b } }
func WithRules(r engine.Rules) Option       { return func(o *options) { o.rules = r } }
func WithLogger(l *zap.Logger) Option       { return func(o *options) { o.log = l } }
func WithRecorder(r Recorder) Option        { return func(o *options) { o.recorder = r } }

func NewLobby(parent context.Context, code string, opts ...Option) *Lobby {
	o := options{
		clock: clock.Real{},
		rules: engine.DefaultRules(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bank == nil {
		o.bank = words.NewDefaultBank()
	}

	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		code:     code,
		inbox:    make(chan Msg, 64), // Small buffer
		clients:  make(map[string]*Client),
		log:      o.log.With(zap.String("lobby", code)),
		recorder: o.recorder,
		ctx:      ctx,
		cancel:   cancel,
	}
	l.engine = engine.New(o.bank, inboxClock{Clock: o.clock, l: l}, o.rules)

	go l.loop()
	return l
}

// inboxClock turns timer firings into inbox messages so they are applied on
// the lobby goroutine like any client action.
type inboxClock struct {
	clock.Clock
	l *Lobby
}

func (c inboxClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.Clock.AfterFunc(d, func() { c.l.post(timerFired{fire: f}) })
}

func (l *Lobby) Code() string          { return l.code }
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
func (l *Lobby) Inbox() chan<- Msg     { return l.inbox }

// Close stops the lobby goroutine and cancels its timers.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			if l.ctx.Err() != nil {
				l.shutdown()
				return
			}
			switch msg := m.(type) {
			case Join:
				msg.Reply <- l.handleJoin(msg)

			case Leave:
				msg.Reply <- l.handleLeave(msg.ClientID)

			case StartGame:
				l.handleStart()

			case Guess:
				l.handleGuess(msg)

			case timerFired:
				msg.fire()

			case GetState:
				msg.Reply <- View{
					Code:       l.code,
					Closed:     l.closed,
					NumClients: len(l.clients),
					Epoch:      l.engine.Epoch(),
					State:      l.engine.Snapshot(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
			l.flush()
		}
	}
}

func (l *Lobby) handleJoin(msg Join) error {
	if l.closed {
		return ErrClosed
	}
	if l.engine.IsFull() {
		return engine.ErrLobbyFull
	}
	if l.engine.Phase() != engine.PhaseLobby {
		return ErrGameInProgress
	}
	if err := l.engine.AddPlayer(msg.Client.ID, msg.Name); err != nil {
		return err
	}
	l.clients[msg.Client.ID] = msg.Client

	reply := types.TypeLobbyJoined
	if msg.Created {
		reply = types.TypeLobbyCreated
	}
	msg.Client.Deliver(types.ServerMessage{Type: reply, Payload: types.LobbyCodePayload{LobbyCode: l.code}})
	l.broadcast(types.LobbyUpdate(l.engine.Snapshot()))

	l.log.Info("player joined",
		zap.String("conn", msg.Client.ID),
		zap.String("name", msg.Name),
		zap.Int("players", l.engine.Len()))
	return nil
}

func (l *Lobby) handleLeave(id string) int {
	delete(l.clients, id)
	removed := l.engine.RemovePlayer(id)
	n := l.engine.Len()

	if n == 0 {
		l.closed = true
		l.engine.Close()
		l.log.Info("lobby empty")
		return 0
	}
	if removed {
		l.broadcast(types.LobbyUpdate(l.engine.Snapshot()))
		l.log.Info("player left", zap.String("conn", id), zap.Int("players", n))
	}
	return n
}

func (l *Lobby) handleStart() {
	if !l.engine.Start() {
		l.log.Debug("start ignored",
			zap.String("phase", string(l.engine.Phase())),
			zap.Int("players", l.engine.Len()))
		return
	}
	l.broadcast(types.GameMessage(types.TypeGameStart, l.engine.Snapshot()))
	l.log.Info("game started", zap.Int("players", l.engine.Len()))
}

func (l *Lobby) handleGuess(msg Guess) {
	res, err := l.engine.SubmitGuess(msg.ClientID, msg.Text)
	switch {
	case err != nil:
		l.log.Debug("guess ignored", zap.String("conn", msg.ClientID), zap.Error(err))

	case res.Correct:
		// A guess that closes the round announces ROUND_END first.
		l.flush()
		l.broadcast(types.ServerMessage{Type: types.TypeCorrectGuess, Payload: types.CorrectGuess{
			PlayerID:  msg.ClientID,
			Guess:     msg.Text,
			Points:    res.Points,
			GameState: types.NewGameState(l.engine.Snapshot()),
		}})

	default:
		if c, ok := l.clients[msg.ClientID]; ok {
			c.Deliver(types.ServerMessage{Type: types.TypeGuessFeedback, Payload: types.GuessFeedback{Correct: false, Guess: msg.Text}})
		}
	}
}

// flush broadcasts whatever the engine produced while handling the last message.
func (l *Lobby) flush() {
	for _, ev := range l.engine.Drain() {
		if msg, ok := types.FromEvent(ev); ok {
			l.broadcast(msg)
		}
		if ev.Type == engine.EvtFinalResults {
			l.record(ev.Snapshot)
		}
	}
}

func (l *Lobby) record(snap engine.Snapshot) {
	if l.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := l.recorder.RecordResults(ctx, l.code, snap); err != nil {
			l.log.Warn("record results failed", zap.Error(err))
		}
	}()
}

func (l *Lobby) shutdown() {
	l.closed = true
	l.engine.Close()
	clear(l.clients)
	l.cancel()
}

func (l *Lobby) broadcast(msg types.ServerMessage) {
	for id, c := range l.clients {
		if !c.Deliver(msg) {
			// Closed or backed up; it catches up on the next snapshot.
			l.log.Debug("skipped delivery", zap.String("conn", id), zap.String("type", msg.Type))
		}
	}
}

func (l *Lobby) post(m Msg) {
	if l.ctx.Err() != nil {
		return
	}
	select {
	case l.inbox <- m:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, l *Lobby, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (l *Lobby) Join(ctx context.Context, c *Client, name string, created bool) error {
	reply := make(chan error, 1)
	if err := l.send(ctx, Join{Client: c, Name: name, Created: created, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, l, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (l *Lobby) Leave(ctx context.Context, clientID string) (int, error) {
	reply := make(chan int, 1)
	if err := l.send(ctx, Leave{ClientID: clientID, Reply: reply}); err != nil {
		return 0, err
	}
	return await(ctx, l, reply)
}

func (l *Lobby) Start(ctx context.Context) error {
	return l.send(ctx, StartGame{})
}

func (l *Lobby) Guess(ctx context.Context, clientID, text string) error {
	return l.send(ctx, Guess{ClientID: clientID, Text: text})
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, l, reply)
}
