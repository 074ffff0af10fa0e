package server

import (
	"context"
	"encoding/json"
	"time"

	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum search request size allowed from peer.
	maxSearchMessageSize = 4096
)

// liveSearchGate rejects plain HTTP requests and connections for which the
// live_search flag is off.
func (s *Server) liveSearchGate(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	userID := uuid.Nil
	if sess, ok := middleware.CurrentSession(c); ok {
		userID = sess.UserID
	}
	if !s.featureFlags.Enabled(featureflags.LiveSearch, userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Feature", featureflags.LiveSearch))
	}
	return c.Next()
}

// LiveSearchHandler handles GET /ws/search. Clients send
// {"seq":n,"search":"...","page":p}; every reply carries the seq it answers
// and replies for superseded requests are never sent.
func (s *Server) LiveSearchHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.LiveSearchConnections.Inc()
		defer observability.LiveSearchConnections.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		send := make(chan service.SearchResponse, 8)
		done := make(chan struct{})
		go func() {
			defer close(done)
			liveSearchWritePump(conn, send)
		}()

		live := service.NewLiveSearch(s.feedService.Search)
		deliver := func(resp service.SearchResponse) {
			outcome := "served"
			if resp.Error != "" {
				outcome = "failed"
			}
			observability.LiveSearchQueries.WithLabelValues(outcome).Inc()
			select {
			case send <- resp:
			default:
				middleware.Logger.Warn("live search response dropped", "seq", resp.Seq)
			}
		}

		conn.SetReadLimit(maxSearchMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					middleware.Logger.Debug("live search read failed", "error", err)
				}
				break
			}

			var req service.SearchRequest
			if err := json.Unmarshal(message, &req); err != nil {
				deliver(service.SearchResponse{Error: "Invalid search request"})
				continue
			}
			if !live.Submit(ctx, req, deliver) {
				observability.LiveSearchQueries.WithLabelValues("superseded").Inc()
			}
		}

		cancel()
		live.Close()
		close(send)
		<-done
	})
}

// liveSearchWritePump writes responses and keeps the connection alive with
// pings until send is closed or a write fails.
func liveSearchWritePump(conn *websocket.Conn, send <-chan service.SearchResponse) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case resp, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
