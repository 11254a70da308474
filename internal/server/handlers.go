package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
	"github.com/naka-gawa/git-line-diffs/internal/gateway"
	"github.com/naka-gawa/git-line-diffs/internal/report"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status      string    `json:"status"`
	InFlight    bool      `json:"inFlight"`
	PassID      string    `json:"passId,omitempty"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// RefreshResponse is the body of POST /api/refresh. When the source is not
// available the previous report is returned with SourceUnavailable set.
type RefreshResponse struct {
	report.PresentationModel
	SourceUnavailable bool `json:"sourceUnavailable"`
}

// OpenResponse is the body of a successful POST /api/open.
type OpenResponse struct {
	Path   string `json:"path"`
	Opened bool   `json:"opened"`
}

type handler struct {
	refresher Refresher
	formatter *report.Formatter
	root      string
	opener    Opener
	logger    *zap.Logger
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *handler) Status(c *gin.Context) {
	s := h.refresher.Current()
	RespondOK(c, StatusResponse{
		Status:      domain.StatusLine(s),
		InFlight:    h.refresher.InFlight(),
		PassID:      s.PassID,
		RefreshedAt: s.RefreshedAt,
	})
}

func (h *handler) Snapshot(c *gin.Context) {
	RespondOK(c, h.refresher.Current())
}

func (h *handler) Report(c *gin.Context) {
	RespondOK(c, h.formatter.Format(h.refresher.Current()))
}

func (h *handler) Refresh(c *gin.Context) {
	s, err := h.refresher.Refresh(c.Request.Context(), "api")
	switch {
	case err == nil:
		RespondOK(c, RefreshResponse{PresentationModel: h.formatter.Format(s)})
	case errors.Is(err, gateway.ErrSourceUnavailable):
		h.logger.Info("refresh skipped, source unavailable", zap.Error(err))
		RespondOK(c, RefreshResponse{PresentationModel: h.formatter.Format(s), SourceUnavailable: true})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RespondError(c, http.StatusRequestTimeout, "cancelled", err)
	default:
		RespondError(c, http.StatusInternalServerError, "refresh_failed", err)
	}
}

func (h *handler) Open(c *gin.Context) {
	var req domain.OpenFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Command != domain.OpenFileCommand {
		RespondError(c, http.StatusBadRequest, "unknown_command", fmt.Errorf("unsupported command %q", req.Command))
		return
	}

	abs, err := ResolveWithinRoot(h.root, req.FilePath)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_path", err)
		return
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("file %q does not exist", req.FilePath))
			return
		}
		RespondError(c, http.StatusInternalServerError, "stat_failed", err)
		return
	}

	if h.opener == nil {
		RespondOK(c, OpenResponse{Path: abs})
		return
	}
	if err := h.opener(c.Request.Context(), abs); err != nil {
		h.logger.Warn("failed to open file", zap.String("path", abs), zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "open_failed", err)
		return
	}
	RespondOK(c, OpenResponse{Path: abs, Opened: true})
}
