package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neuroflash/internal/middleware"
	"neuroflash/internal/services"
	"neuroflash/internal/store"
)

// writeError maps service and store errors onto HTTP responses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validationErr *services.ValidationError
		upstreamErr   *services.UpstreamError
		malformedErr  *services.MalformedOutputError
		persistErr    *services.PersistError
	)

	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &upstreamErr):
		s.logFailure(c, "model call failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           upstreamErr.Err.Message,
			"code":            upstreamErr.Err.Code,
			"details":         upstreamErr.Err.Details,
			"processing_time": upstreamErr.Err.ProcessingTime.Seconds(),
		})
	case errors.As(err, &malformedErr):
		s.logFailure(c, "model output could not be parsed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to parse model response",
			"details": malformedErr.Reason,
		})
	case errors.As(err, &persistErr):
		s.logFailure(c, "generated flashcards partially saved", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to save generated flashcards",
			"created": persistErr.Created,
		})
	default:
		s.logFailure(c, "request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (s *Server) writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
}

func (s *Server) writeUploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
}

func (s *Server) logFailure(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.String("request_id", middleware.CurrentRequestID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
}
