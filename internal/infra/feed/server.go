// Package feed serves read-only market data over HTTP and websocket.
// There is no order entry over the network.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"market_sim/internal/domain"
	"market_sim/internal/event"
	"market_sim/internal/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
	requestTimeout   = 3 * time.Second
)

// MarketReader is the read side of the market service.
type MarketReader interface {
	MarketState() domain.MarketSnapshot
	Depth(side domain.Side) []domain.PriceLevel
	RestingOrders(side domain.Side) []domain.Order
	Activity() []domain.ActivityEntry
	History() domain.History
}

// Server is the read-only feed.
type Server struct {
	market   MarketReader
	events   *Events
	metrics  *infra.Metrics
	upgrader websocket.Upgrader

	closing   chan struct{}
	closeOnce sync.Once
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer creates a feed over market. events may be nil, in which case
// the websocket stream only ever idles.
func NewServer(market MarketReader, events *Events, metrics *infra.Metrics) *Server {
	if events == nil {
		events = NewEvents()
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Server{
		market:   market,
		events:   events,
		metrics:  metrics,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		closing:  make(chan struct{}),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/market", s.handleMarket)
		r.Get("/depth/{side}", s.handleDepth)
		r.Get("/orders/{side}", s.handleOrders)
		r.Get("/activity", s.handleActivity)
		r.Get("/history", s.handleHistory)
		r.Get("/metrics", s.handleMetrics)
	})

	r.Get("/ws/activity", s.handleStream)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Feed listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.market.MarketState())
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	side, ok := parseSide(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, s.market.Depth(side))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	side, ok := parseSide(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, s.market.RestingOrders(side))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.market.Activity())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.market.History())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.IncrementConnections()
	defer s.metrics.DecrementConnections()

	sub := s.events.hub.Subscribe(subscriberBuffer)
	defer s.events.hub.Unsubscribe(sub)

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		case ev, ok := <-sub.ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toMessage(ev)); err != nil {
				return
			}
		}
	}
}

func toMessage(ev event.Event) outboundMessage {
	return outboundMessage{Type: ev.GetType().String(), Data: ev}
}

func parseSide(w http.ResponseWriter, r *http.Request) (domain.Side, bool) {
	side, err := domain.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return "", false
	}
	return side, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}

// requestLogger logs each request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("Feed request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
