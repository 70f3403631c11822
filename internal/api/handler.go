package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/matheodrd/httphelper/handler"
)

func (s *Server) wsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("missing session_id"))
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("websocket accept: %w", err))
		}

		s.WebsocketManager.HandleNewConnection(sessionID, conn)
		return nil
	})
}

type clearCacheResponse struct {
	Cleared bool `json:"cleared"`
}

func (s *Server) clearCacheHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if s.RouteCache == nil {
			return handler.NewErrWithStatus(http.StatusServiceUnavailable, errors.New("route cache is not configured"))
		}
		if err := s.RouteCache.Clear(r.Context()); err != nil {
			s.logger.Error("failed to clear route cache", "error", err)
			return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("clearing route cache: %w", err))
		}
		s.logger.Info("route cache cleared")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(clearCacheResponse{Cleared: true}); err != nil {
			s.logger.Error("Error writing response", "error", err)
		}
		return nil
	})
}
