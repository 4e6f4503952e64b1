package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/gateway/remote"
	"github.com/hay-kot/mentor/internal/metrics"
)

// ReplyHandler serves the single-message reply contract used by the web
// client and by the remote gateway.
type ReplyHandler struct {
	gateway chat.Gateway
	timeout time.Duration
	log     zerolog.Logger
}

func NewReplyHandler(gateway chat.Gateway, timeout time.Duration, log zerolog.Logger) *ReplyHandler {
	return &ReplyHandler{
		gateway: gateway,
		timeout: timeout,
		log:     log.With().Str("component", "reply").Logger(),
	}
}

// Reply handles POST {"message": "..."}.
func (h *ReplyHandler) Reply(c *gin.Context) {
	var body remote.ReplyRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		c.JSON(http.StatusBadRequest, remote.ErrorResponse{
			Error: remote.MsgMessageRequired,
			Code:  string(chat.KindInvalidInput),
		})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	query := strings.TrimSpace(body.Message)
	category := chat.Classify(query)

	started := time.Now()
	reply, err := h.gateway.Complete(ctx, chat.Request{Query: query, Category: category})
	metrics.GatewayDuration.Observe(time.Since(started).Seconds())

	if err == nil && strings.TrimSpace(reply) == "" {
		err = chat.Upstream("reply", errors.New("empty reply"))
	}
	if err != nil {
		ge := chat.AsGatewayError("reply", err)
		metrics.GatewayErrorsTotal.WithLabelValues(string(ge.Kind)).Inc()
		h.log.Error().
			Err(err).
			Str("request_id", c.GetString(keyRequestID)).
			Str("category", string(category)).
			Msg("reply failed")

		_ = c.Error(err)
		status, body := errorBody(ge)
		c.JSON(status, body)
		return
	}

	h.log.Debug().
		Str("category", string(category)).
		Dur("latency", time.Since(started)).
		Msg("reply sent")

	c.JSON(http.StatusOK, remote.ReplyResponse{Response: reply})
}

// errorBody maps a gateway error to the status and body of the reply
// contract.
func errorBody(ge *chat.GatewayError) (int, remote.ErrorResponse) {
	body := remote.ErrorResponse{Code: string(ge.Kind)}

	switch ge.Kind {
	case chat.KindUnconfigured:
		body.Error = remote.MsgUnconfigured
		return http.StatusInternalServerError, body
	case chat.KindInvalidInput:
		body.Error = remote.MsgFailed
		if ge.Err != nil {
			body.Details = ge.Err.Error()
		}
		return http.StatusBadRequest, body
	default:
		body.Error = remote.MsgFailed
		if ge.Err != nil {
			body.Details = ge.Err.Error()
		}
		return http.StatusInternalServerError, body
	}
}
