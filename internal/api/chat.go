package api

import (
	"net/http"
	"strconv"
	"time"

	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/session"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	gw       *messaging.Gateway
	sessions *session.Registry
}

func NewChatHandler(gw *messaging.Gateway, sessions *session.Registry) *ChatHandler {
	return &ChatHandler{gw: gw, sessions: sessions}
}

func (h *ChatHandler) GetMessageTypes(c *gin.Context) {
	out, err := h.gw.ListMessageTypes(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load message types")
		return
	}
	c.JSON(http.StatusOK, out)
}

func queryInt(c *gin.Context, key string) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return 0, false
	}
	return n, true
}

// GetConversation returns one page of the conversation with another user.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}

	page, err := h.gw.ListConversation(c.Request.Context(), c.GetString("user_id"), c.Param("otherUserId"), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetNewer answers whether the pair exchanged anything after since_id.
func (h *ChatHandler) GetNewer(c *gin.Context) {
	other := c.Query("other_user_id")
	if other == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "other_user_id is required"})
		return
	}

	newer, err := h.gw.HasNewerMessages(c.Request.Context(), c.GetString("user_id"), other, c.Query("since_id"))
	if err != nil {
		respondError(c, err, "Failed to check messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_newer": newer})
}

// Dashboard Handlers
func (h *ChatHandler) GetDashboardPatients(c *gin.Context) {
	out, err := h.gw.ListPatientsWithLastMessage(c.Request.Context(), c.GetString("doctor_id"))
	if err != nil {
		respondError(c, err, "Failed to load patients")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) GetUnread(c *gin.Context) {
	list, err := h.gw.ListPatientsWithLastMessage(c.Request.Context(), c.GetString("doctor_id"))
	if err != nil {
		respondError(c, err, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": messaging.UnreadConversations(list),
		"total_unread":  messaging.TotalUnread(list),
	})
}

// GetNewMessages reports whether any assigned patient wrote after since
// (RFC 3339). Without since any message counts.
func (h *ChatHandler) GetNewMessages(c *gin.Context) {
	var since *time.Time
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		since = &t
	}

	newer, err := h.gw.HasNewerMessagesFromPatients(c.Request.Context(), c.GetString("doctor_id"), since)
	if err != nil {
		respondError(c, err, "Failed to check messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_new": newer})
}

// Active conversation Handlers
func (h *ChatHandler) session(c *gin.Context) *session.Session {
	return h.sessions.Get(c.GetString("user_id"))
}

func (h *ChatHandler) OpenConversation(c *gin.Context) {
	var req models.OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.session(c).Open(c.Request.Context(), req.PatientUserID)
	if err != nil {
		respondError(c, err, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ChatHandler) GetActive(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Snapshot())
}

func (h *ChatHandler) CloseActive(c *gin.Context) {
	h.session(c).Close()
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must have content"})
		return
	}

	s := h.session(c)
	bubble, err := s.Send(c.Request.Context(), req.Content, req.MessageTypeID)
	if err != nil {
		respondError(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      bubble,
		"conversation": s.Snapshot(),
	})
}

// Focus is sent by the client whenever the chat screen regains focus.
func (h *ChatHandler) Focus(c *gin.Context) {
	snap, err := h.session(c).Focus(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to refresh messages")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ChatHandler) ClearError(c *gin.Context) {
	s := h.session(c)
	s.ClearError()
	c.JSON(http.StatusOK, s.Snapshot())
}
