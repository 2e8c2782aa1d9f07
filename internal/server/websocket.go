package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 16 << 10
)

// handleWebSocket serves a stream of resolution requests. Every message is
// resolved asynchronously, bounded by MaxInFlight, and answered as soon as
// it completes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.logger.Debug(ctx, "WebSocket client connected", "remote", r.RemoteAddr)

	var wg sync.WaitGroup
	slots := make(chan struct{}, s.cfg.MaxInFlight)
	for {
		var in ResolveRequest
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Warn(ctx, err, "WebSocket read failed")
			}
			break
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		s.resolveAsync(ctx, in, func(out ResolveResponse) {
			defer wg.Done()
			defer func() { <-slots }()

			writeCtx, writeCancel := context.WithTimeout(ctx, writeWait)
			defer writeCancel()
			if err := wsjson.Write(writeCtx, conn, out); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, err, "WebSocket write failed", "id", out.ID)
				cancel()
			}
		})
	}

	wg.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
}
