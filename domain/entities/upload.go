package entities

import "strings"

// ErrorPrefix marks a transcript text that carries a failure description
// instead of recognized speech.
const ErrorPrefix = "Error:"

// Upload is one file received from the presentation layer
type Upload struct {
	Name string
	Data []byte
}

// UploadRecord tracks an accepted upload for the duration of one batch
type UploadRecord struct {
	Key          string `json:"key"`
	OriginalName string `json:"original_name"`
	TempPath     string `json:"-"`
}

// TranscriptResult is the outcome of transcribing one upload.
// Text holds either the transcript or a message starting with ErrorPrefix.
type TranscriptResult struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// IsError reports whether the result carries a failure message
func (r TranscriptResult) IsError() bool {
	return strings.HasPrefix(r.Text, ErrorPrefix)
}

// ErrorResult builds a failed result for the given file name
func ErrorResult(name, message string) TranscriptResult {
	return TranscriptResult{
		Name: name,
		Text: ErrorPrefix + " " + message,
	}
}
