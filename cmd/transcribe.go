package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/entities"
	"github.com/satriahrh/audioscribe/internal/export"
	"github.com/satriahrh/audioscribe/internal/metrics"
	"github.com/satriahrh/audioscribe/usecase"
)

var (
	transcribeOut    string
	transcribeFormat string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE...",
	Short: "Transcribe audio files and write the transcripts to disk",
	Long: `Transcribe one or more audio files with the configured provider.

Examples:
  audioscribe transcribe meeting.mp3                 # writes meeting_transcript.txt
  audioscribe transcribe *.wav --out transcripts     # one file per recording
  audioscribe transcribe talk.m4a --format pdf       # PDF instead of text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().StringVarP(&transcribeOut, "out", "o", ".", "Directory for the transcripts")
	transcribeCmd.Flags().StringVarP(&transcribeFormat, "format", "f", export.FormatTXT, "Output format: txt or pdf")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	if transcribeFormat != export.FormatTXT && transcribeFormat != export.FormatPDF {
		return fmt.Errorf("unsupported format %q (use txt or pdf)", transcribeFormat)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, _, err := metrics.Setup(cmd.Context(), metrics.Config{}, logger)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger, m)
	if err != nil {
		return err
	}
	defer a.Close()

	// Check before reading anything so the user sees a single message
	if err := a.batch.Ready(); err != nil {
		return errors.New(usecase.PrerequisiteMessage(err))
	}

	uploads := make([]entities.Upload, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		uploads = append(uploads, entities.Upload{Name: filepath.Base(path), Data: data})
	}

	results, err := a.batch.Process(cmd.Context(), uploads)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return errors.New(usecase.PrerequisiteMessage(err))
		}
		return err
	}

	if err := os.MkdirAll(transcribeOut, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return results[keys[i]].Name < results[keys[j]].Name
	})

	written := make(map[string]bool)
	failed := 0
	for _, key := range keys {
		result := results[key]
		if result.IsError() {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", result.Name, result.Text)
			continue
		}

		doc, err := export.Render(result, transcribeFormat)
		if err != nil {
			return err
		}
		name := doc.Filename
		if written[name] {
			name = key + "_" + name
		}
		written[name] = true

		out := filepath.Join(transcribeOut, name)
		if err := os.WriteFile(out, doc.Body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		logger.Debug("Transcript written", zap.String("file", out))
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", result.Name, out)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}
