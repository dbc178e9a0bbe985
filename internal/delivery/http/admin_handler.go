package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"notifyhub/infrastructure/ws"
	"notifyhub/internal/entity"
	"notifyhub/internal/repository"
	"notifyhub/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler exposes the hub's control surface and the producer entry
// points to operators.
type AdminHandler struct {
	admin          *ws.Admin
	dispatcher     ws.IDispatcher
	notificationUc usecase.NotificationUsecase
	jobUc          usecase.JobUsecase
	userUc         usecase.UserUsecase
	logger         zerolog.Logger
}

func NewAdminHandler(admin *ws.Admin, dispatcher ws.IDispatcher, notificationUc usecase.NotificationUsecase, jobUc usecase.JobUsecase, userUc usecase.UserUsecase, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:          admin,
		dispatcher:     dispatcher,
		notificationUc: notificationUc,
		jobUc:          jobUc,
		userUc:         userUc,
		logger:         logger,
	}
}

// Method Get /admin/ws/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: h.admin.Stats()})
}

// Method Get /admin/ws/connections
func (h *AdminHandler) Connections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: h.admin.Connections()})
}

// Method Delete /admin/ws/users/{userId}
func (h *AdminHandler) DisconnectUser(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	n := h.admin.DisconnectUser(userId)
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]int{"disconnected": n}})
}

// Method Delete /admin/ws/users/{userId}/connections/{connectionId}
func (h *AdminHandler) DisconnectConnection(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	connectionId := chi.URLParam(r, "connectionId")

	if !h.admin.DisconnectConnection(userId, connectionId) {
		writeJSON(w, http.StatusNotFound, Response{Message: "connection not found"})
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Delete /admin/ws/connections
func (h *AdminHandler) DisconnectAll(w http.ResponseWriter, r *http.Request) {
	n := h.admin.DisconnectAll()
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]int{"disconnected": n}})
}

// Method Post /admin/notifications
func (h *AdminHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	notification, err := h.notificationUc.Create(r.Context(), req)
	if errors.Is(err, usecase.ErrInvalidNotification) {
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("userId", req.UserId).Msg("Create notification error")
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, Response{Message: "success", Data: notification})
}

// Method Post /admin/broadcast
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var payload ws.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	if t, _ := payload["type"].(string); t == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "type is required"})
		return
	}

	h.dispatcher.Broadcast(payload)
	writeJSON(w, http.StatusAccepted, Response{Message: "success"})
}

// Method Post /admin/jobs/update
func (h *AdminHandler) JobUpdate(w http.ResponseWriter, r *http.Request) {
	var update entity.JobUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	if err := h.jobUc.PublishUpdate(update); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, Response{Message: "success"})
}

// Method Post /admin/jobs/stats
func (h *AdminHandler) JobStats(w http.ResponseWriter, r *http.Request) {
	var stats entity.JobStats
	if err := json.NewDecoder(r.Body).Decode(&stats); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	h.jobUc.PublishStats(stats)
	writeJSON(w, http.StatusAccepted, Response{Message: "success"})
}

type setRoleRequest struct {
	Role entity.Role `json:"role"`
}

// Method Put /admin/users/{userId}/role
// Live sockets of the user are closed so they re-authenticate under the new role.
func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	err := h.userUc.SetRole(r.Context(), userId, req.Role)
	if errors.Is(err, usecase.ErrInvalidRole) {
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
		return
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		writeJSON(w, http.StatusNotFound, Response{Message: "user not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("userId", userId).Msg("Set role error")
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	n := h.admin.DisconnectUser(userId)
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: map[string]any{
		"userId":       userId,
		"role":         req.Role,
		"disconnected": n,
	}})
}
