package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cwrk-planet/messaging-service/internal/service"
	httpmw "github.com/cwrk-planet/messaging-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/messaging-service/pkg/errs"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"
)

type OnlineLister interface {
	OnlineUserIDs() []string
}

type Handler struct {
	chatSvc    *service.ChatService
	sidebarSvc *service.SidebarService
	online     OnlineLister
}

func NewHandler(chat *service.ChatService, sidebar *service.SidebarService, online OnlineLister) *Handler {
	return &Handler{
		chatSvc:    chat,
		sidebarSvc: sidebar,
		online:     online,
	}
}

func (h *Handler) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, ok := httpmw.UserFromCtx(r.Context())
	if !ok {
		httputil.Error(r.Context(), w, errs.ErrUnauthorized)
		return "", false
	}
	return u.ID, true
}

// GET /sidebar-users
func (h *Handler) SidebarUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	users, err := h.sidebarSvc.List(r.Context(), userID)
	if err != nil {
		httputil.Error(r.Context(), w, err)
		return
	}
	httputil.OK(w, users, "Users fetched successfully")
}

// GET /messages?id=<peer>
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	msgs, err := h.chatSvc.Conversation(r.Context(), userID, r.URL.Query().Get("id"))
	if err != nil {
		httputil.Error(r.Context(), w, err)
		return
	}
	httputil.OK(w, msgs, "Messages fetched successfully")
}

// POST /send-message?id=<peer>
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		httputil.Error(r.Context(), w, fmt.Errorf("%w: invalid json", errs.ErrInvalidInput))
		return
	}

	msg, err := h.chatSvc.SendMessage(r.Context(), userID, strings.TrimSpace(r.URL.Query().Get("id")), req.Text)
	if err != nil {
		httputil.Error(r.Context(), w, err)
		return
	}
	httputil.OK(w, msg, "Message sent successfully")
}

// PUT /mark-read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	n, err := h.chatSvc.MarkRead(r.Context(), userID)
	if err != nil {
		httputil.Error(r.Context(), w, err)
		return
	}
	httputil.OK(w, MarkReadResponse{Updated: n}, "Message read status updated successfully")
}

// GET /online-users
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUserID(w, r); !ok {
		return
	}
	httputil.OK(w, h.online.OnlineUserIDs(), "Online users fetched successfully")
}
