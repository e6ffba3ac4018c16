// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/tmc/langchaingo/prompts"

	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/classifier"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/conversation"
	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
	"github.com/Azure-Samples/infra-support-copilot/internal/retriever"
	"github.com/Azure-Samples/infra-support-copilot/internal/sqlquery"
)

type Server struct {
	router     chi.Router
	provider   llm.Provider
	flow       *sqlquery.Flow
	classifier *classifier.Classifier
	retriever  *retriever.Retriever
	catalog    *catalog.Catalog
	carrier    *conversation.Carrier
	answer     prompts.PromptTemplate
}

func NewServer(
	provider llm.Provider,
	flow *sqlquery.Flow,
	cls *classifier.Classifier,
	retr *retriever.Retriever,
	cat *catalog.Catalog,
	systemPrompt string,
) (*Server, error) {
	logger := common.Logger()
	if provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	if flow == nil || cls == nil || retr == nil || cat == nil {
		return nil, fmt.Errorf("flow, classifier, retriever and catalog required")
	}
	srv := &Server{
		router:     chi.NewRouter(),
		provider:   provider,
		flow:       flow,
		classifier: cls,
		retriever:  retr,
		catalog:    cat,
		carrier:    conversation.NewCarrier(),
		answer:     prompts.NewPromptTemplate(systemPrompt, []string{"query", "sources"}),
	}
	srv.routes()
	logger.Info("api: server ready", "provider", provider.Name(), "tables", len(cat.Tables()))
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat/completion", s.handleCompletion)
	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Provider: s.provider.Name(),
		Tables:   len(s.catalog.Tables()),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := common.LogEntries()
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
