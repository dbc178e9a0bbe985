package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"notifyhub/internal/repository"
	"notifyhub/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

type HttpHandler struct {
	notificationUc usecase.NotificationUsecase
	logger         zerolog.Logger
}

func NewHttpHandler(notificationUc usecase.NotificationUsecase, logger zerolog.Logger) *HttpHandler {
	return &HttpHandler{
		notificationUc: notificationUc,
		logger:         logger,
	}
}

// Method Get /healthz
func (h *HttpHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Message: "ok"})
}

// Method Get /notifications?limit=
func (h *HttpHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Message: "limit must be an integer"})
			return
		}
		limit = n
	}

	notifications, err := h.notificationUc.ListRecent(r.Context(), claims.UserId, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("userId", claims.UserId).Msg("List notifications error")
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: notifications})
}

// Method Get /notifications/unread-count
func (h *HttpHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	count, err := h.notificationUc.GetUnreadCount(r.Context(), claims.UserId)
	if err != nil {
		h.logger.Error().Err(err).Str("userId", claims.UserId).Msg("Unread count error")
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]int64{"unreadCount": count}})
}

// Method Post /notifications/{id}/read
func (h *HttpHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	notificationId := chi.URLParam(r, "id")

	err := h.notificationUc.MarkAsRead(r.Context(), claims.UserId, notificationId)
	if errors.Is(err, repository.ErrNotificationNotFound) {
		writeJSON(w, http.StatusNotFound, Response{Message: "notification not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("userId", claims.UserId).Msg("Mark as read error")
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /notifications/read-all
func (h *HttpHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	n, err := h.notificationUc.MarkAllAsRead(r.Context(), claims.UserId)
	if err != nil {
		h.logger.Error().Err(err).Str("userId", claims.UserId).Msg("Mark all as read error")
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]int64{"updated": n}})
}
