package api

import (
	"net/http"
	"strings"

	"github.com/natalis/natalis/internal/config"
	"github.com/natalis/natalis/internal/nl2sql"
)

type translateRequest struct {
	Question string `json:"question"`
}

func handleTranslate(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Models == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	var req translateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	key := modelKey(cfg, r)
	if strings.TrimSpace(key) == "" {
		writeError(r.Context(), w, http.StatusUnauthorized, "MODEL_API_KEY_REQUIRED", "a model api key is required", false, map[string]any{"header": ModelKeyHeader})
		return
	}

	generator, err := deps.Models.New(key)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "MODEL_INIT_FAILED", "failed to initialize the language model", false, map[string]any{"details": err.Error()})
		return
	}
	var translator nl2sql.Translator = nl2sql.NewSynthesizer(generator, deps.Decoding, deps.Logger)
	result, err := translator.Translate(r.Context(), nl2sql.Request{
		Question:      req.Question,
		Tables:        deps.Tables,
		SchemaContext: deps.SchemaContext,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate question", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sql": result.SQL, "model": result.Model})
}
