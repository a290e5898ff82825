// Package api exposes the HTTP surface: chat turns, wallet lookups and
// health. Pipeline failures never leak machine detail to callers; the chat
// endpoint answers with a generic natural-language error instead.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ChainPilot/internal/orchestrator"
	"ChainPilot/internal/wallet"
	"ChainPilot/pkg/logger"
)

const genericErrorReply = "Sorry, something went wrong processing your request. Please try again."

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
	Network  string `json:"network,omitempty"`
}

// ChatResponse carries the assistant's natural-language reply.
type ChatResponse struct {
	Content string `json:"content"`
}

// WalletResponse is the public view of a custodial wallet. Key material is
// never serialised.
type WalletResponse struct {
	Address   string `json:"address"`
	CreatedAt int64  `json:"created_at"`
}

// Server wires the orchestrator and wallet resolver behind REST endpoints.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	turns           *orchestrator.Orchestrator
	wallets         *wallet.Resolver
	log             *slog.Logger
}

// NewServer constructs the API server.
func NewServer(addr string, shutdownTimeout time.Duration, turns *orchestrator.Orchestrator, wallets *wallet.Resolver) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		turns:           turns,
		wallets:         wallets,
		log:             logger.Named("api"),
	}
}

// Handler returns the routed HTTP handler; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", s.handleChat)
	mux.HandleFunc("/api/v1/wallets/", s.handleWallet)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ThreadID) == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "thread_id and message are required", http.StatusBadRequest)
		return
	}

	content, err := s.turns.SubmitTurn(r.Context(), req.ThreadID, req.Message, orchestrator.TurnContext{
		Network:      req.Network,
		UserIdentity: req.ThreadID,
	})
	if err != nil {
		s.log.Error("turn failed", slog.String("thread", req.ThreadID), slog.Any("error", err))
		content = genericErrorReply
	}

	writeJSON(w, http.StatusOK, ChatResponse{Content: content})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity := strings.TrimPrefix(r.URL.Path, "/api/v1/wallets/")
	if identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}

	record, err := s.wallets.Lookup(r.Context(), identity)
	if err != nil {
		http.Error(w, "wallet not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, WalletResponse{
		Address:   record.Address,
		CreatedAt: record.CreatedAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
