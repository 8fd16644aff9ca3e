package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/choice"
	"github.com/lojasmm/choicebot/internal/store"
)

const maxBodySize = 1 << 20

var errBadRequest = errors.New("bad request")

type server struct {
	registry *block.Registry
	bot      *bot.Handler
	blocks   store.BlockStore
	vars     store.VariableStore
	log      zerolog.Logger
}

type blockResponse struct {
	Block   block.CanonicalBlock  `json:"block"`
	Options block.ResolvedOptions `json:"resolvedOptions"`
}

func (s *server) listBlocks(w http.ResponseWriter, r *http.Request) {
	ids, err := s.blocks.ListBlocks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"blocks": ids})
}

func (s *server) putBlock(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "blockID")
	raw, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	b, err := s.registry.Load(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if b.ID != blockID {
		s.writeError(w, fmt.Errorf("%w: block id %q does not match path %q", errBadRequest, b.ID, blockID))
		return
	}
	if err := s.blocks.SaveBlock(r.Context(), blockID, raw); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blockResponse{Block: b, Options: b.Resolved()})
}

func (s *server) getBlock(w http.ResponseWriter, r *http.Request) {
	b, err := s.bot.LoadBlock(r.Context(), chi.URLParam(r, "blockID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blockResponse{Block: b, Options: b.Resolved()})
}

func (s *server) deleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := s.blocks.DeleteBlock(r.Context(), chi.URLParam(r, "blockID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"versions": s.registry.Versions(),
		"latest":   block.Latest,
	})
}

func (s *server) getSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.registry.JSONSchema(block.Version(chi.URLParam(r, "version")))
	if err != nil {
		// An unknown version here is a missing resource, not bad block data.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *server) startTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BlockID string `json:"blockId"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.BlockID == "" {
		s.writeError(w, fmt.Errorf("%w: blockId is required", errBadRequest))
		return
	}

	res, err := s.bot.StartTurn(r.Context(), chi.URLParam(r, "conversationID"), req.BlockID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *server) currentTurn(w http.ResponseWriter, r *http.Request) {
	res, err := s.bot.CurrentTurn(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) postEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ev, err := choice.DecodeEvent(raw)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	res, err := s.bot.HandleEvent(r.Context(), chi.URLParam(r, "conversationID"), ev, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) putVariable(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !json.Valid(raw) {
		s.writeError(w, fmt.Errorf("%w: variable value must be JSON", errBadRequest))
		return
	}
	err = s.vars.SetVariable(r.Context(), chi.URLParam(r, "conversationID"), chi.URLParam(r, "variableID"), raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getVariable(w http.ResponseWriter, r *http.Request) {
	v, err := s.vars.GetVariable(r.Context(), chi.URLParam(r, "conversationID"), chi.URLParam(r, "variableID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(v)
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, block.ErrUnknownVersion), errors.Is(err, block.ErrMalformedBlock):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound), errors.Is(err, bot.ErrNoActiveTurn):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return data, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
