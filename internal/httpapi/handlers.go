package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
	"github.com/zxq-mioya/jp-tutor-ai/internal/service"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	// 空请求体表示全部使用默认设定。
	var update service.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("createSession decode error: %v", err)
		writeError(w, http.StatusBadRequest, "请求体格式不正确")
		return
	}

	session, err := h.svc.CreateSession(update)
	if err != nil {
		if errors.Is(err, service.ErrInvalidConfig) {
			log.Printf("createSession bad request: err=%v", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("createSession internal error: err=%v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) sessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	detail, err := h.svc.SessionDetail(sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			log.Printf("sessionDetail not found: session_id=%s", sessionID)
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("sessionDetail internal error: session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var update service.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("updateConfig decode error: session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusBadRequest, "请求体格式不正确")
		return
	}

	session, err := h.svc.UpdateConfig(sessionID, update)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			log.Printf("updateConfig not found: session_id=%s", sessionID)
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidConfig):
			log.Printf("updateConfig bad request: session_id=%s err=%v", sessionID, err)
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("updateConfig internal error: session_id=%s err=%v", sessionID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) exchange(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req service.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("exchange decode error: session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusBadRequest, "请求体格式不正确")
		return
	}
	req.SessionID = sessionID

	resp, err := h.svc.Exchange(req)
	if err != nil {
		var vErr *model.ValidationError
		switch {
		case errors.Is(err, service.ErrUserTextEmpty):
			log.Printf("exchange bad request: session_id=%s err=%v", sessionID, err)
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSessionNotFound):
			log.Printf("exchange not found: session_id=%s", sessionID)
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrLLMUnavailable):
			log.Printf("exchange unavailable: session_id=%s err=%v", sessionID, err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &vErr):
			log.Printf("exchange invalid model output: session_id=%s err=%v", sessionID, err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":      "模型输出不符合约定的结构",
				"violations": vErr.Violations,
			})
		case errors.Is(err, service.ErrMalformedResponse), errors.Is(err, service.ErrModelCall):
			log.Printf("exchange upstream failure: session_id=%s err=%v", sessionID, err)
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			log.Printf("exchange internal error: session_id=%s err=%v", sessionID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) mistakes(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Printf("mistakes bad request: session_id=%s limit=%s", sessionID, raw)
			writeError(w, http.StatusBadRequest, "limit 必须是整数")
			return
		}
		limit = parsed
	}

	entries, err := h.svc.Mistakes(sessionID, limit)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			log.Printf("mistakes not found: session_id=%s", sessionID)
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("mistakes internal error: session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"mistakes":   entries,
	})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := h.svc.ResetSession(sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			log.Printf("reset not found: session_id=%s", sessionID)
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("reset internal error: session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
