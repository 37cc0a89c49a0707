package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/usecase"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexData struct {
	Ready        bool
	Prerequisite string
	Provider     string
	MaxUploadMB  int64
}

// index renders the upload page, or the prerequisite message when the
// provider cannot run
func (h *handlers) index(c echo.Context) error {
	data := indexData{
		Ready:       true,
		Provider:    h.Batch.ProviderName(),
		MaxUploadMB: h.MaxUploadBytes / (1 << 20),
	}
	if err := h.Batch.Ready(); err != nil {
		data.Ready = false
		data.Prerequisite = usecase.PrerequisiteMessage(err)
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render upload page", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}

	status := http.StatusOK
	if !data.Ready {
		status = http.StatusServiceUnavailable
	}
	return c.HTMLBlob(status, buf.Bytes())
}
