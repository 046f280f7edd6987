package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seenimoa/pianalytics/pkg/models"
)

// Canned series, one sample per day starting here.
var sampleTimes = []string{"2024-12-16T00:00:00Z", "2024-12-17T00:00:00Z"}

var (
	sampleScores      = []float64{0.45, 0.47}
	sampleRecordVals  = []float64{0.52, 0.50}
	sampleAnnounceIDs = []string{"ann123", "ann124"}
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit accepts {"prompt": ...} and returns {"prompt_id": ...}.
func (s *Server) handleSubmit(kind promptKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		id := s.store(req.Prompt, kind)
		s.logger.Info("prompt accepted",
			zap.String("prompt_id", id.String()),
			zap.Bool("broadcast", kind == kindBroadcast),
		)
		writeJSON(w, http.StatusOK, models.PromptResponse{PromptID: id})
	}
}

// handleScores returns the score series of any known prompt.
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	id := models.PromptID(chi.URLParam(r, "prompt_id"))
	if _, ok := s.lookup(id); !ok {
		writeError(w, http.StatusNotFound, "unknown prompt_id: "+id.String())
		return
	}
	series := models.ScoreSeries{PromptID: id, Scores: make([]models.ScorePoint, len(sampleTimes))}
	for i, ts := range sampleTimes {
		series.Scores[i] = models.ScorePoint{Time: ts, Value: sampleScores[i]}
	}
	writeJSON(w, http.StatusOK, series)
}

// handleResults returns analysis records and tickers. Only broadcast prompts
// have results.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := models.PromptID(chi.URLParam(r, "prompt_id"))
	entry, ok := s.lookup(id)
	if !ok || entry.kind != kindBroadcast {
		writeError(w, http.StatusNotFound, "no results for prompt_id: "+id.String())
		return
	}
	res := models.AnalysisResult{
		PromptID:           id,
		Records:            make([]models.AnalysisRecord, len(sampleTimes)),
		RecommendedTickers: append([]string(nil), DefaultTickers...),
	}
	for i, ts := range sampleTimes {
		res.Records[i] = models.AnalysisRecord{
			Time:       ts,
			PromptID:   id,
			Value:      sampleRecordVals[i],
			AnnounceID: sampleAnnounceIDs[i],
		}
	}
	writeJSON(w, http.StatusOK, res)
}
