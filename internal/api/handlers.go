package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dayahead/internal/fetcher"
	"dayahead/internal/model"
	"dayahead/internal/service"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type syncRequest struct {
	Start     string `json:"start" binding:"required"`
	Stop      string `json:"stop" binding:"required"`
	InDomain  string `json:"in_domain"`
	OutDomain string `json:"out_domain"`
}

type backendStatus struct {
	Backend string `json:"backend"`
	Written int    `json:"written"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

type chunkStatus struct {
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Records  int             `json:"records"`
	Error    string          `json:"error,omitempty"`
	Backends []backendStatus `json:"backends,omitempty"`
}

type syncResponse struct {
	Status  string        `json:"status"`
	PassID  string        `json:"pass_id"`
	Records int           `json:"records"`
	Chunks  []chunkStatus `json:"chunks"`
}

type handlers struct {
	sync        Synchronizer
	defaultPair model.DomainPair
	logger      zerolog.Logger
}

// synchronize handles POST /dayahead
func (h *handlers) synchronize(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: errorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
		})
		return
	}
	start, err := fetcher.ParseInstant(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: errorDetail{Code: "INVALID_RANGE", Message: "start: " + err.Error()},
		})
		return
	}
	stop, err := fetcher.ParseInstant(req.Stop)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: errorDetail{Code: "INVALID_RANGE", Message: "stop: " + err.Error()},
		})
		return
	}

	pair := h.defaultPair
	if d := strings.TrimSpace(req.InDomain); d != "" {
		pair.In = d
	}
	if d := strings.TrimSpace(req.OutDomain); d != "" {
		pair.Out = d
	}

	result, err := h.sync.Synchronize(c.Request.Context(), start, stop, pair)
	switch {
	case errors.Is(err, service.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: errorDetail{Code: "INVALID_RANGE", Message: err.Error()},
		})
		return
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, errorResponse{
			Error: errorDetail{Code: "BUSY", Message: err.Error()},
		})
		return
	case err != nil:
		h.logger.Error().Err(err).Str("pair", pair.String()).Msg("on-demand synchronization failed")
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error: errorDetail{Code: "SYNC_FAILED", Message: err.Error()},
		})
		return
	}

	resp := syncResponse{Status: "ok", PassID: result.PassID, Records: result.Records()}
	status := http.StatusOK
	if result.Failed() {
		resp.Status = "partial"
		status = http.StatusMultiStatus
	}
	for _, chunk := range result.Chunks {
		cs := chunkStatus{Start: chunk.Window.Start, End: chunk.Window.End, Records: chunk.Records}
		if chunk.Err != nil {
			cs.Error = chunk.Err.Error()
		}
		for _, b := range chunk.Backends {
			bs := backendStatus{Backend: b.Backend, Written: b.Summary.Written, Failed: len(b.Summary.Failed)}
			if b.Err != nil {
				bs.Error = b.Err.Error()
			}
			cs.Backends = append(cs.Backends, bs)
		}
		resp.Chunks = append(resp.Chunks, cs)
	}

	c.JSON(status, resp)
}
