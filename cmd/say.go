package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
)

func newSayCommand(opts *rootOptions) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Voice a line and write its mp3 and lip-sync document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.pipeline.CanSynthesize() {
				return fmt.Errorf("speech synthesis: %w", domain.ErrNotConfigured)
			}

			ns, err := a.store.Allocate()
			if err != nil {
				return err
			}
			defer a.store.Release(ns)

			text := strings.Join(args, " ")
			out, err := a.pipeline.Fragment(cmd.Context(), ns, 0, text)
			if err != nil {
				return err
			}

			audio, err := base64.StdEncoding.DecodeString(out.Audio)
			if err != nil {
				return fmt.Errorf("failed to decode audio: %w", err)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			audioPath := filepath.Join(outDir, "say.mp3")
			if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
			lipSyncPath := filepath.Join(outDir, "say.json")
			if err := os.WriteFile(lipSyncPath, out.LipSync, 0o644); err != nil {
				return fmt.Errorf("failed to write lip-sync data: %w", err)
			}

			logger.Info("Line voiced",
				zap.String("text", text),
				zap.String("audio", audioPath),
				zap.String("lipSync", lipSyncPath),
				zap.Int("audioBytes", len(audio)))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", ".", "directory receiving say.mp3 and say.json")
	return cmd
}
