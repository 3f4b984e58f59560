package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/word-guess-backend/internal/router"
	"github.com/DoyleJ11/word-guess-backend/internal/types"
)

type Options struct {
	OriginPatterns []string
	PingInterval   time.Duration
	PingTimeout    time.Duration // connection is dropped when a pong takes longer
	WriteTimeout   time.Duration
	Rate           rate.Limit // inbound frames per second
	Burst          int
}

func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		PingTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,
		Rate:         10,
		Burst:        20,
	}
}

const disconnectTimeout = 5 * time.Second

func Handler(rt *router.Router, log *zap.Logger, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := uuid.NewString()
		clog := log.With(zap.String("conn", id))
		client := rt.Connect(id)
		clog.Info("client connected", zap.String("remote", r.RemoteAddr))

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			defer cancel()
			rt.Disconnect(ctx, id)
			clog.Info("client disconnected")
		}()

		// Writer goroutine, also owns the keepalive pings. Pongs are
		// consumed by the reader loop below.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			ping := time.NewTicker(opts.PingInterval)
			defer ping.Stop()
			for {
				select {
				case <-writeCtx.Done():
					return
				case <-client.Done():
					return
				case <-ping.C:
					ctx, cancel := context.WithTimeout(writeCtx, opts.PingTimeout)
					err := conn.Ping(ctx)
					cancel()
					if err != nil {
						if writeCtx.Err() == nil {
							clog.Info("ping failed, dropping connection", zap.Error(err))
						}
						_ = conn.CloseNow()
						return
					}
				case msg := <-client.Outbox():
					ctx, cancel := context.WithTimeout(writeCtx, opts.WriteTimeout)
					err := wsjson.Write(ctx, conn, msg)
					cancel()
					if err != nil {
						clog.Debug("write failed", zap.String("type", msg.Type), zap.Error(err))
						_ = conn.Close(websocket.StatusInternalError, "write failed")
						return
					}
				}
			}
		}()

		limiter := rate.NewLimiter(opts.Rate, opts.Burst)

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						clog.Debug("read ended", zap.Error(err))
					}
				}
				return
			}

			if !limiter.Allow() {
				clog.Warn("rate limited, frame dropped")
				continue
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				clog.Warn("malformed frame dropped", zap.Error(err))
				continue
			}
			if err := rt.Handle(r.Context(), id, cm); err != nil {
				clog.Warn("message rejected", zap.String("type", cm.Type), zap.Error(err))
			}
		}
	}
}
