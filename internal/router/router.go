package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DoyleJ11/word-guess-backend/internal/engine"
	"github.com/DoyleJ11/word-guess-backend/internal/hub"
	"github.com/DoyleJ11/word-guess-backend/internal/lobby"
	"github.com/DoyleJ11/word-guess-backend/internal/types"
)

var ErrUnknownConnection = errors.New("unknown connection")
var ErrUnknownType = errors.New("unknown message type")
var ErrBadPayload = errors.New("malformed payload")

const (
	MaxNameLength     = 20
	DefaultOutboxSize = 32
)

// Registry is the slice of the hub the router needs.
type Registry interface {
	Create(ctx context.Context) (*lobby.Lobby, error)
	Lookup(ctx context.Context, code string) (*lobby.Lobby, error)
	Dispose(ctx context.Context, lb *lobby.Lobby) error
}

var _ Registry = (*hub.Hub)(nil)

type binding struct {
	client *lobby.Client
	lobby  *lobby.Lobby // nil while not in a lobby
}

// Router tracks which lobby each connection is playing in. Calls for one
// connection id must not overlap; different connections may call concurrently.
type Router struct {
	reg        Registry
	log        *zap.Logger
	outboxSize int

	mu    sync.Mutex
	conns map[string]*binding
}

type Option func(*Router)

// WithOutboxSize sets how many frames a connection may fall behind before
// broadcasts to it are skipped.
func WithOutboxSize(n int) Option { return func(r *Router) { r.outboxSize = n } }

func New(reg Registry, log *zap.Logger, opts ...Option) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		reg:        reg,
		log:        log,
		outboxSize: DefaultOutboxSize,
		conns:      make(map[string]*binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers id and returns the client whose outbox the transport drains.
func (r *Router) Connect(id string) *lobby.Client {
	c := lobby.NewClient(id, r.outboxSize)

	r.mu.Lock()
	r.conns[id] = &binding{client: c}
	r.mu.Unlock()
	return c
}

// Disconnect removes the player from its lobby and disposes the lobby once
// nobody is left in it.
func (r *Router) Disconnect(ctx context.Context, id string) {
	r.mu.Lock()
	b := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if b == nil {
		return
	}
	b.client.Close()
	r.leaveCurrent(ctx, b)
}

func (r *Router) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Handle applies one inbound message. Errors are for the transport's logs;
// anything the player should see has already been queued on its outbox.
func (r *Router) Handle(ctx context.Context, id string, msg types.ClientMessage) error {
	r.mu.Lock()
	b := r.conns[id]
	r.mu.Unlock()
	if b == nil {
		return ErrUnknownConnection
	}

	switch msg.Type {
	case types.TypeCreateLobby:
		var p types.CreateLobbyPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return r.createLobby(ctx, b, p)

	case types.TypeJoinLobby:
		var p types.JoinLobbyPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return r.joinLobby(ctx, b, p)

	case types.TypeStartGame:
		if b.lobby == nil {
			return nil
		}
		return ignoreClosed(b.lobby.Start(ctx))

	case types.TypeSubmitGuess:
		var p types.SubmitGuessPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Guess) == "" {
			b.client.Deliver(types.Error(types.ErrCodeValidation, "Guess cannot be empty"))
			return nil
		}
		if b.lobby == nil {
			return nil
		}
		return ignoreClosed(b.lobby.Guess(ctx, b.client.ID, p.Guess))

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

func (r *Router) createLobby(ctx context.Context, b *binding, p types.CreateLobbyPayload) error {
	name, ok := r.validName(b, p.PlayerName)
	if !ok {
		return nil
	}
	r.leaveCurrent(ctx, b)

	lb, err := r.reg.Create(ctx)
	if err != nil {
		b.client.Deliver(types.Error(types.ErrCodeInternal, "Could not create lobby"))
		return fmt.Errorf("create lobby: %w", err)
	}
	if err := lb.Join(ctx, b.client, name, true); err != nil {
		_ = r.reg.Dispose(ctx, lb)
		b.client.Deliver(types.Error(types.ErrCodeInternal, "Could not create lobby"))
		return fmt.Errorf("join created lobby %s: %w", lb.Code(), err)
	}
	b.lobby = lb
	return nil
}

func (r *Router) joinLobby(ctx context.Context, b *binding, p types.JoinLobbyPayload) error {
	name, ok := r.validName(b, p.PlayerName)
	if !ok {
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(p.LobbyCode))
	if code == "" {
		b.client.Deliver(types.Error(types.ErrCodeValidation, "Lobby code is required"))
		return nil
	}
	if b.lobby != nil && b.lobby.Code() == code {
		return nil
	}

	lb, err := r.reg.Lookup(ctx, code)
	if err != nil {
		return fmt.Errorf("lookup lobby %s: %w", code, err)
	}
	if lb == nil {
		b.client.Deliver(types.Error(types.ErrCodeLobbyNotFound, "Lobby not found"))
		return nil
	}

	r.leaveCurrent(ctx, b)
	err = lb.Join(ctx, b.client, name, false)
	switch {
	case err == nil:
		b.lobby = lb
	case errors.Is(err, lobby.ErrClosed):
		b.client.Deliver(types.Error(types.ErrCodeLobbyNotFound, "Lobby not found"))
	case errors.Is(err, engine.ErrLobbyFull):
		b.client.Deliver(types.Error(types.ErrCodeLobbyFull, "Lobby is full"))
	case errors.Is(err, lobby.ErrGameInProgress):
		b.client.Deliver(types.Error(types.ErrCodeGameInProgress, "Game is already in progress"))
	default:
		b.client.Deliver(types.Error(types.ErrCodeInternal, "Could not join lobby"))
		return fmt.Errorf("join lobby %s: %w", code, err)
	}
	return nil
}

func (r *Router) validName(b *binding, raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		b.client.Deliver(types.Error(types.ErrCodeValidation, "Player name is required"))
		return "", false
	case utf8.RuneCountInString(name) > MaxNameLength:
		b.client.Deliver(types.Error(types.ErrCodeValidation, fmt.Sprintf("Player name must be at most %d characters", MaxNameLength)))
		return "", false
	}
	return name, true
}

// leaveCurrent unbinds b and disposes its lobby if b was the last player.
func (r *Router) leaveCurrent(ctx context.Context, b *binding) {
	lb := b.lobby
	if lb == nil {
		return
	}
	b.lobby = nil

	left, err := lb.Leave(ctx, b.client.ID)
	if err != nil {
		if !errors.Is(err, lobby.ErrClosed) {
			r.log.Warn("leave failed", zap.String("lobby", lb.Code()), zap.String("conn", b.client.ID), zap.Error(err))
		}
		return
	}
	if left > 0 {
		return
	}
	if err := r.reg.Dispose(ctx, lb); err != nil {
		r.log.Warn("dispose failed", zap.String("lobby", lb.Code()), zap.Error(err))
	}
}

func decode(msg types.ClientMessage, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, msg.Type, err)
	}
	return nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, lobby.ErrClosed) {
		return nil
	}
	return err
}
