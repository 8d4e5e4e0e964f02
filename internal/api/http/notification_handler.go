package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stakelend-backend/internal/domain"
)

type notificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int32                 `json:"total"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := int32(20)
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			respondBadRequest(w, "invalid limit")
			return
		}
		limit = int32(n)
	}
	offset := int32(0)
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			respondBadRequest(w, "invalid offset")
			return
		}
		offset = int32(n)
	}

	notifications, total, err := s.notifications.List(r.Context(), callerID(r), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, notificationListResponse{Notifications: notifications, Total: total})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondBadRequest(w, "invalid notification id")
		return
	}
	if err := s.notifications.MarkAsRead(r.Context(), id, callerID(r)); err != nil {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "notification not found"})
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
