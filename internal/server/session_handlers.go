package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/mentor"
)

type errorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type stateView struct {
	Messages []chat.Message `json:"messages"`
	Status   mentor.Status  `json:"status"`
	Error    *errorView     `json:"error"`
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Outcome mentor.Outcome `json:"outcome"`
	Reason  mentor.Reason  `json:"reason,omitempty"`
	Message *chat.Message  `json:"message,omitempty"`
	Reply   *chat.Message  `json:"reply,omitempty"`
	State   stateView      `json:"state"`
}

func newStateView(st mentor.State, category chat.Category) stateView {
	view := stateView{
		Messages: chat.Filter(st.Messages, string(category)),
		Status:   st.Status,
	}
	if st.Err != nil {
		view.Error = &errorView{
			Kind:    string(chat.KindOf(st.Err)),
			Message: st.Err.Error(),
		}
	}
	return view
}

// SessionHandler serves the per-user conversation routes.
type SessionHandler struct {
	sessions *Sessions
	stop     <-chan struct{}
}

// NewSessionHandler creates a handler. Event streams end when stop is
// closed.
func NewSessionHandler(sessions *Sessions, stop <-chan struct{}) *SessionHandler {
	return &SessionHandler{sessions: sessions, stop: stop}
}

// Register mounts the routes under rg.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.POST("/messages", h.Submit)
	rg.DELETE("/messages", h.Clear)
	rg.POST("/cancel", h.Cancel)
	rg.GET("/events", h.Events)
}

func (h *SessionHandler) controller(c *gin.Context) (*mentor.Controller, bool) {
	ctl, err := h.sessions.Get(c.Request.Context(), c.Param("user"))
	switch {
	case err == nil:
		return ctl, true
	case errors.Is(err, ErrInvalidUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
	}
	return nil, false
}

func categoryParam(c *gin.Context) (chat.Category, bool) {
	raw := c.Query("category")
	if raw == "" || raw == "all" {
		return "", true
	}
	category, err := chat.ParseCategory(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return category, true
}

// Get returns the conversation, optionally filtered by ?category=.
func (h *SessionHandler) Get(c *gin.Context) {
	category, ok := categoryParam(c)
	if !ok {
		return
	}
	ctl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newStateView(ctl.State(), category))
}

// Submit sends {"text": "..."} and waits for the outcome.
func (h *SessionHandler) Submit(c *gin.Context) {
	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctl, ok := h.controller(c)
	if !ok {
		return
	}

	// A client disconnect cancels the request; the user message stays
	// unanswered and the outcome is canceled.
	res := ctl.Submit(c.Request.Context(), body.Text)

	out := submitResponse{
		Outcome: res.Outcome,
		Reason:  res.Reason,
		State:   newStateView(ctl.State(), ""),
	}
	if res.User.ID != "" {
		out.Message = &res.User
	}
	if res.Reply.ID != "" {
		out.Reply = &res.Reply
	}

	status := http.StatusOK
	switch {
	case res.Reason == mentor.ReasonEmpty:
		status = http.StatusBadRequest
	case res.Reason == mentor.ReasonBusy:
		status = http.StatusConflict
	case res.Outcome == mentor.OutcomeFailed:
		_ = c.Error(res.Err)
		status, _ = errorBody(chat.AsGatewayError("submit", res.Err))
	}

	c.JSON(status, out)
}

// Clear empties the local conversation.
func (h *SessionHandler) Clear(c *gin.Context) {
	ctl, ok := h.controller(c)
	if !ok {
		return
	}
	ctl.Clear()
	c.JSON(http.StatusOK, newStateView(ctl.State(), ""))
}

// Cancel aborts the in-flight request, if any.
func (h *SessionHandler) Cancel(c *gin.Context) {
	ctl, ok := h.controller(c)
	if !ok {
		return
	}
	canceled := ctl.Cancel()
	c.JSON(http.StatusOK, gin.H{"canceled": canceled})
}

// Events streams every state change as a server-sent "state" event until
// the client disconnects.
func (h *SessionHandler) Events(c *gin.Context) {
	category, ok := categoryParam(c)
	if !ok {
		return
	}
	ctl, ok := h.controller(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	states := ctl.Watch(ctx)

	c.Stream(func(w io.Writer) bool {
		select {
		case st, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("state", newStateView(st, category))
			return true
		case <-ctx.Done():
			return false
		case <-h.stop:
			return false
		}
	})
}
