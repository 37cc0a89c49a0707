package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/repositories"
)

var (
	_ repositories.SpeechToText    = (*fakeProvider)(nil)
	_ repositories.FormatConverter = (*fakeConverter)(nil)
)

// wavBytes returns data that sniffs as audio/wav and carries marker
func wavBytes(marker string) []byte {
	return append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), []byte(marker)...)
}

// mp3Bytes returns data that sniffs as audio/mpeg and carries marker
func mp3Bytes(marker string) []byte {
	return append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), []byte(marker)...)
}

// fakeProvider reads the file and reacts to markers:
// "speech:<text>" returns text, "fail" returns an error, "panic" panics
type fakeProvider struct {
	readyErr error
	delay    time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	paths    []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Accepts(ext string) bool { return ext == "wav" }

func (p *fakeProvider) Ready() error { return p.readyErr }

func (p *fakeProvider) TranscribeFile(ctx context.Context, path string) (string, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch {
	case bytes.Contains(data, []byte("panic")):
		panic("boom")
	case bytes.Contains(data, []byte("fail")):
		return "", errors.New("connection reset")
	}
	if i := bytes.Index(data, []byte("speech:")); i >= 0 {
		return string(data[i+len("speech:"):]), nil
	}
	return "", nil
}

func (p *fakeProvider) Close() error { return nil }

// fakeConverter copies the input and swaps the container header for WAV
type fakeConverter struct {
	availableErr error
	convertErr   error
	calls        atomic.Int32
}

func (c *fakeConverter) Available() error { return c.availableErr }

func (c *fakeConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	c.calls.Add(1)
	if c.availableErr != nil {
		return c.availableErr
	}
	if c.convertErr != nil {
		return c.convertErr
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, wavBytes(string(data)), 0o600)
}

func missingCredential() error {
	return fmt.Errorf("%w: API key not found. Please add FAKE_API_KEY to your .env file", domain.ErrMissingCredential)
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, filepath.Join(dir, e.Name()))
	}
	return names
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}
