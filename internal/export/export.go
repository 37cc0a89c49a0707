// Package export renders a transcript as a downloadable file.
package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/satriahrh/audioscribe/domain/entities"
)

// Supported formats
const (
	FormatTXT = "txt"
	FormatPDF = "pdf"
)

// Document is a rendered transcript
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Filename returns "{base}_transcript.{format}" for an uploaded file name
func Filename(originalName, format string) string {
	name := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." || base == "/" {
		base = "audio"
	}
	return fmt.Sprintf("%s_transcript.%s", base, format)
}

// Render produces the transcript in the requested format. An empty format
// means txt.
func Render(result entities.TranscriptResult, format string) (Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatTXT
	}

	switch format {
	case FormatTXT:
		return Document{
			Filename:    Filename(result.Name, FormatTXT),
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(result.Text),
		}, nil
	case FormatPDF:
		body, err := renderPDF(result)
		if err != nil {
			return Document{}, err
		}
		return Document{
			Filename:    Filename(result.Name, FormatPDF),
			ContentType: "application/pdf",
			Body:        body,
		}, nil
	default:
		return Document{}, fmt.Errorf("unsupported export format %q", format)
	}
}

func renderPDF(result entities.TranscriptResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Transcript of "+result.Name, true)
	pdf.SetCreator("audioscribe", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Core fonts are cp1252; translate so accented text survives
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, tr("Transcript: "+result.Name), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(result.Text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
