package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"supmap-navigation/internal/config"
	"supmap-navigation/internal/gis/routing"
)

type ConnectionHandler interface {
	HandleNewConnection(id string, conn *websocket.Conn)
}

type Server struct {
	Config           *config.Config
	WebsocketManager ConnectionHandler
	RouteCache       routing.RouteCache
	logger           *slog.Logger
	originPatterns   []string
}

func NewServer(conf *config.Config, wsManager ConnectionHandler, routeCache routing.RouteCache, logger *slog.Logger) *Server {
	s := &Server{
		Config:           conf,
		WebsocketManager: wsManager,
		RouteCache:       routeCache,
		logger:           logger,
	}
	if conf.Env == config.EnvDev {
		s.originPatterns = []string{"*"}
	}
	return s
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate;")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("API server is started.")); err != nil {
		s.logger.Error(fmt.Sprintf("Error writing response: %v", err))
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /navigation", s.wsHandler())
	mux.HandleFunc("POST /admin/cache/clear", s.clearCacheHandler())
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    net.JoinHostPort(s.Config.APIServerHost, s.Config.APIServerPort),
		Handler: s.Routes(),
	}

	go func() {
		s.logger.Info("API server is running", "port", s.Config.APIServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed to listen and serve", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server failed to shutdown", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
