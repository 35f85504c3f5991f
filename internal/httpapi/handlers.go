package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
	"github.com/MimeLyc/twitch-chat-translator/internal/translator"
	"github.com/MimeLyc/twitch-chat-translator/pkg/icron"
)

const (
	defaultTranscriptLimit = 50
	maxTranscriptLimit     = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type reloadInfo struct {
	Expression    string    `json:"expression"`
	Next          time.Time `json:"next"`
	SecondsToNext float64   `json:"seconds_to_next"`
}

type statsResponse struct {
	Translator *translator.Stats     `json:"translator,omitempty"`
	Pools      map[string]jobs.Stats `json:"pools"`
	Reload     *reloadInfo           `json:"reload,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := statsResponse{
		Pools: make(map[string]jobs.Stats, len(s.pools)),
	}
	if s.translator != nil {
		st := s.translator.Stats()
		resp.Translator = &st
	}
	for name, p := range s.pools {
		resp.Pools[name] = p.Stats()
	}
	if s.reloadExpr != "" {
		info, err := icron.GetTriggerInfo(s.reloadExpr, time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Reload = &reloadInfo{
			Expression:    info.Expression,
			Next:          info.Next,
			SecondsToNext: info.TimeUntilNext.Seconds(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.transcript == nil {
		writeError(w, http.StatusNotImplemented, "transcript store is not configured")
		return
	}

	limit := defaultTranscriptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTranscriptLimit)
	}

	raw := r.URL.Query().Get("lang")
	if raw == "" && s.settings != nil {
		if current, err := s.settings.GetRuntimeSettings(); err == nil {
			raw = current.TargetLanguage
		}
	}
	var lang string
	if raw != "" {
		parsed, err := config.ParseLanguage(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		lang = parsed.Code()
	}

	events, err := s.transcript.RecentEvents(r.Context(), lang, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"events":   events,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
