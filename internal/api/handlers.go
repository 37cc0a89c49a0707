package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/entities"
	"github.com/satriahrh/audioscribe/internal/export"
	"github.com/satriahrh/audioscribe/usecase"
)

const uploadField = "files"

func (h *handlers) createSession(c echo.Context) error {
	session := entities.NewSession(h.SessionTTL)
	if err := h.Sessions.Create(c.Request().Context(), session); err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create session",
		})
	}

	token, expiresAt, err := h.Tokens.GenerateSessionToken(session.ID)
	if err != nil {
		h.logger.Error("Failed to generate session token",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.logger.Info("Session created", zap.String("session_id", session.ID))

	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (h *handlers) createTranscriptions(c echo.Context) error {
	session := sessionFrom(c)

	if err := h.Batch.Ready(); err != nil {
		return missingPrerequisite(c, err)
	}

	if h.MaxUploadBytes > 0 {
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "upload_too_large",
				Message: fmt.Sprintf("Uploads are limited to %d bytes per request", h.MaxUploadBytes),
			})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Expected a multipart form with audio files",
		})
	}

	files := form.File[uploadField]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "no_files",
			Message: "Upload at least one audio file in the \"files\" field",
		})
	}

	uploads := make([]entities.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: fmt.Sprintf("Could not read %s", fh.Filename),
			})
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: fmt.Sprintf("Could not read %s", fh.Filename),
			})
		}
		uploads = append(uploads, entities.Upload{Name: fh.Filename, Data: data})
	}

	var observe usecase.Observer
	if h.Hub != nil {
		observe = h.Hub.Observer(session.ID)
	}

	session.ResetResults()
	results, err := h.Batch.ProcessWithObserver(c.Request().Context(), uploads, observe)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return missingPrerequisite(c, err)
		}
		h.logger.Error("Batch failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to process uploads",
		})
	}
	session.ReplaceResults(results)

	return c.JSON(http.StatusOK, newTranscriptionsResponse(results))
}

func (h *handlers) listTranscriptions(c echo.Context) error {
	return c.JSON(http.StatusOK, newTranscriptionsResponse(sessionFrom(c).Results()))
}

func (h *handlers) downloadTranscription(c echo.Context) error {
	session := sessionFrom(c)
	key, err := resultKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_key"})
	}

	result, ok := session.Result(key)
	if !ok {
		return resultNotFound(c, key)
	}

	doc, err := export.Render(result, c.QueryParam("format"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unsupported_format",
			Message: err.Error(),
		})
	}

	// Downloading hands the transcript over; it is not kept
	session.Evict(key)

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename})
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return c.Blob(http.StatusOK, doc.ContentType, doc.Body)
}

func (h *handlers) dismissTranscription(c echo.Context) error {
	key, err := resultKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_key"})
	}

	if _, ok := sessionFrom(c).Evict(key); !ok {
		return resultNotFound(c, key)
	}
	return c.NoContent(http.StatusNoContent)
}

// resultKey returns the decoded :key parameter. Echo routes on RawPath only
// when the request path has a non-canonical encoding; otherwise the
// parameter is already decoded and must not be unescaped again.
func resultKey(c echo.Context) (string, error) {
	key := c.Param("key")
	if c.Request().URL.RawPath == "" {
		return key, nil
	}
	return url.PathUnescape(key)
}

func missingPrerequisite(c echo.Context, err error) error {
	return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "missing_prerequisite",
		Message: usecase.PrerequisiteMessage(err),
	})
}

func resultNotFound(c echo.Context, key string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: fmt.Sprintf("%s: %s", domain.ErrResultNotFound, key),
	})
}
