package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/verch-scan/images"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is allowed on top of the image limit for form boundaries and headers.
const multipartOverhead = 1 << 20

// HealthResponse is returned by GET /.
type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Traceback string `json:"traceback,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Message:     s.cfg.Message,
		ModelLoaded: s.engine != nil,
	})
}

func (s *Server) detect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	data, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp, err := s.DetectBytes(c.Request.Context(), data)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// readUpload buffers the "image" form file once so decoding never consumes
// the request stream.
func (s *Server) readUpload(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.Wrapf(images.ErrInvalidImage, "upload exceeds %d bytes", s.cfg.MaxUploadBytes)
		}
		return nil, errors.WithStack(ErrMissingImageField)
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return nil, errors.Wrapf(images.ErrInvalidImage, "upload of %d bytes exceeds %d bytes", fh.Size, s.cfg.MaxUploadBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(images.ErrInvalidImage, "open upload: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(images.ErrInvalidImage, "read upload: %v", err)
	}
	return data, nil
}

// fail writes the JSON error envelope for err.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)

	entry := s.log.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("detect failed")
	} else {
		entry.Info("detect rejected")
	}

	c.AbortWithStatusJSON(status, s.errorBody(err, status))
}

func (s *Server) errorBody(err error, status int) ErrorResponse {
	body := ErrorResponse{Error: err.Error()}
	if errors.Is(err, ErrMissingImageField) {
		body.Error = missingImageMessage
	}
	if s.cfg.Debug && status >= http.StatusInternalServerError {
		body.Traceback = fmt.Sprintf("%+v", err)
	}
	return body
}

// handlePanic turns a handler panic into a 500 response.
func (s *Server) handlePanic(c *gin.Context, recovered any) {
	err := errors.Errorf("panic: %v", recovered)
	s.log.WithFields(logrus.Fields{"path": c.Request.URL.Path}).WithError(err).Error("recovered from panic")
	c.AbortWithStatusJSON(http.StatusInternalServerError, s.errorBody(err, http.StatusInternalServerError))
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingImageField), errors.Is(err, images.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
