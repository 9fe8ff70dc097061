package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
)

// Maximum size of an HTTP request body
const maxBodySize = 16 << 10

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /games", s.handleCreateGame)
	mux.HandleFunc("POST /games/{id}/actions", s.handleAction)
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("POST /validate", s.handleValidateHands)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameData
	if err := s.decodeBody(w, r, SchemaCreateGame, &req); err != nil {
		s.writeError(w, err)
		return
	}

	identity, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	owner, err := claimOwner(identity, req.OwnerID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	deal, err := s.manager.CreateGame(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, deal)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionData
	if err := s.decodeBody(w, r, SchemaAction, &req); err != nil {
		s.writeError(w, err)
		return
	}

	update, err := s.act(r.Context(), r.PathValue("id"), req.Action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewHandUpdate(update))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyData
	if err := s.decodeBody(w, r, SchemaVerify, &req); err != nil {
		s.writeError(w, err)
		return
	}

	seed, err := deck.ParseSeed(req.Seed)
	if err != nil {
		s.writeError(w, requestError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, VerifyResponse{Valid: deck.Verify(seed, req.Hash)})
}

func (s *Server) handleValidateHands(w http.ResponseWriter, r *http.Request) {
	var req ValidateHandsData
	if err := s.decodeBody(w, r, SchemaValidate, &req); err != nil {
		s.writeError(w, err)
		return
	}

	// Submitted hands are client input; any violation is the caller's.
	result, err := blackjack.ValidateSubmittedHands(req.PlayerHand, req.DealerHand, req.Surrendered)
	if err != nil {
		if blackjack.KindOf(err) == blackjack.KindIntegrity {
			s.logger.Warn().
				Err(err).
				Bool("security_event", true).
				Str("kind", blackjack.KindIntegrity.String()).
				Str("remote", r.RemoteAddr).
				Msg("Submitted hands failed integrity check")
		}
		s.writeError(w, requestError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, out interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return requestError(err)
	}
	if err := s.validator.Decode(schema, body, out); err != nil {
		return requestError(err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		s.logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	s.writeJSON(w, status, struct {
		Error ErrorData `json:"error"`
	}{NewErrorData(err)})
}
