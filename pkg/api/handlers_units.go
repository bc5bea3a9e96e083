package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"unitlens/pkg/api/middleware"
	"unitlens/pkg/executor/runner"
)

const (
	textPlain = "text/plain; charset=utf-8"
	// ExitStatusHeader carries the exit code or signal of a failed command.
	ExitStatusHeader = "X-Exit-Status"
)

// systemSummary handles GET /summary
func (s *Server) systemSummary(c *gin.Context) {
	out, err := s.inspector.SystemSummary(c.Request.Context())
	s.render(c, out, err)
}

// unitStatus handles GET /status/:unit
func (s *Server) unitStatus(c *gin.Context) {
	unit := c.Param("unit")
	if err := s.limits.ValidateUnit(unit); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.inspector.UnitStatus(c.Request.Context(), unit)
	s.render(c, out, err)
}

// unitLogs handles GET /logs/:unit?since=
func (s *Server) unitLogs(c *gin.Context) {
	unit := c.Param("unit")
	if err := s.limits.ValidateUnit(unit); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	// An empty since is the same as no since.
	since := c.Query("since")
	if err := s.limits.ValidateSince(since); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.inspector.UnitLogs(c.Request.Context(), unit, since)
	s.render(c, out, err)
}

// render maps a command result onto the response. Command failures relay
// the tool's own output; IO failures stay server-side.
func (s *Server) render(c *gin.Context, out string, err error) {
	if err == nil {
		c.Data(http.StatusOK, textPlain, []byte(out))
		return
	}

	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		c.Header(ExitStatusHeader, cmdErr.Status())
		c.Data(http.StatusBadGateway, textPlain, []byte(cmdErr.Output))
		return
	}

	_ = c.Error(err)
	if runner.IsCanceled(err) {
		s.log.Info("request canceled before command finished",
			zap.String("request_id", middleware.GetRequestID(c)),
		)
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	s.log.Error("command could not be run",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Stringer("kind", runner.KindOf(err)),
		zap.Error(err),
	)
	c.String(http.StatusInternalServerError, "internal server error")
}
