package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/reconquery/reconquery/internal/llm"
	"github.com/reconquery/reconquery/internal/observability"
	"github.com/reconquery/reconquery/internal/pipeline"
)

type askTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type askRequest struct {
	Question string    `json:"question"`
	History  []askTurn `json:"history"`
	UserName string    `json:"user_name"`
}

type askResponse struct {
	Answer      string `json:"answer"`
	Category    string `json:"category"`
	SQL         string `json:"sql,omitempty"`
	RowCount    int    `json:"row_count"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	Degraded    bool   `json:"degraded,omitempty"`
	TraceID     string `json:"trace_id"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "pipeline dependencies are not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	history := make([]llm.Turn, 0, len(request.History))
	for _, turn := range request.History {
		history = append(history, llm.Turn{Question: turn.Question, Answer: turn.Answer})
	}

	response, err := deps.Pipeline.Run(r.Context(), pipeline.Request{
		Question: request.Question,
		History:  history,
		UserName: request.UserName,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "PIPELINE_ERROR", "failed to answer the question", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:      response.Answer,
		Category:    string(response.Category),
		SQL:         response.SQL,
		RowCount:    response.RowCount,
		ArtifactURL: response.ArtifactURL,
		Degraded:    response.Degraded,
		TraceID:     observability.TraceIDFromContext(r.Context()),
	})
}
