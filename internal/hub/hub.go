package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/DoyleJ11/word-guess-backend/internal/lobby"
)

var ErrClosed = errors.New("hub closed")
var ErrCodeSpaceExhausted = errors.New("could not generate a free lobby code")

const (
	codeCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	codeAttempts = 32
)

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Reply chan created
}

type created struct {
	lobby *lobby.Lobby
	err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby drops Code only while it still maps to Lobby.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type CountLobbies struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()  {}
func (GetLobby) isHubMsg()     {}
func (RemoveLobby) isHubMsg()  {}
func (CountLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Hub struct {
	inbox    chan HubMsg
	lobbies  map[string]*lobby.Lobby
	generate func() (string, error)
	lobbyOpt []lobby.Option
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

type Option func(*Hub)

func WithCodeGenerator(f func() (string, error)) Option { return func(h *Hub) { h.generate = f } }
func WithLobbyOptions(opts ...lobby.Option) Option      { return func(h *Hub) { h.lobbyOpt = opts } }
func WithLogger(l *zap.Logger) Option                   { return func(h *Hub) { h.log = l } }

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		lobbies:  make(map[string]*lobby.Lobby),
		generate: GenerateCode,
		log:      zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg  { return h.inbox }
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				lb, err := h.create()
				msg.Reply <- created{lobby: lb, err: err}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil && lb == msg.Lobby {
					delete(h.lobbies, msg.Code)
					lb.Close()
					h.log.Info("lobby removed", zap.String("lobby", msg.Code), zap.Int("lobbies", len(h.lobbies)))
				}

			case CountLobbies:
				msg.Reply <- len(h.lobbies)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create() (*lobby.Lobby, error) {
	for range codeAttempts {
		code, err := h.generate()
		if err != nil {
			return nil, err
		}
		if _, taken := h.lobbies[code]; taken {
			h.log.Debug("collision on code, regenerating", zap.String("lobby", code))
			continue
		}

		lb := lobby.NewLobby(h.ctx, code, h.lobbyOpt...)
		h.lobbies[code] = lb
		h.log.Info("lobby created", zap.String("lobby", code), zap.Int("lobbies", len(h.lobbies)))
		return lb, nil
	}
	return nil, ErrCodeSpaceExhausted
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	h.cancel()
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Create registers a lobby under a fresh code.
func (h *Hub) Create(ctx context.Context) (*lobby.Lobby, error) {
	reply := make(chan created, 1)
	if err := h.send(ctx, CreateLobby{Reply: reply}); err != nil {
		return nil, err
	}
	res, err := recv(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	return res.lobby, res.err
}

// Lookup returns nil when no lobby is registered under code.
func (h *Hub) Lookup(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

func (h *Hub) Dispose(ctx context.Context, lb *lobby.Lobby) error {
	return h.send(ctx, RemoveLobby{Code: lb.Code(), Lobby: lb})
}

func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := h.send(ctx, CountLobbies{Reply: reply}); err != nil {
		return 0, err
	}
	return recv(ctx, h, reply)
}

// Shutdown closes every lobby and stops the hub.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
	<-h.ctx.Done()
}
