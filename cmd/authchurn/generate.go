package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/synth"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic Vault audit log with healthy, churning and chatty workloads",
	RunE:  runGenerate,
}

var (
	flagScenario string
	flagSeed     uint64
	flagOutput   string
)

func init() {
	generateCmd.Flags().StringVar(&flagScenario, "scenario", "", "scenario YAML file (default: built-in demo scenario)")
	generateCmd.Flags().Uint64Var(&flagSeed, "seed", 0, "override the scenario seed")
	generateCmd.Flags().StringVar(&flagOutput, "output", "", "output file (default stdout; .gz and .zst are compressed)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logger.L()

	sc := synth.DefaultScenario()
	if flagScenario != "" {
		var err error
		sc, err = synth.ReadScenario(flagScenario)
		if err != nil {
			return fmt.Errorf("read scenario: %w", err)
		}
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = flagSeed
	}

	var enc io.WriteCloser = nopCloser{cmd.OutOrStdout()}
	var file *os.File
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		file = f

		enc, err = compressWriter(flagOutput, f)
		if err != nil {
			f.Close()
			return err
		}
	}

	st, err := synth.Generate(enc, sc)
	if err != nil {
		enc.Close()
		if file != nil {
			file.Close()
		}
		return fmt.Errorf("generate: %w", err)
	}
	if err := closeOutput(enc, file); err != nil {
		return err
	}

	log.Infow("generated synthetic audit log",
		"output", flagOutput,
		"seed", sc.Seed,
		"lines", st.Lines,
		"successes", st.Successes,
		"failures", st.Failures,
		"entities", st.Entities,
		"malformed", st.MalformedLines)
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// closeOutput flushes the encoder, then closes the file when there is one.
func closeOutput(enc io.Closer, file *os.File) error {
	if err := enc.Close(); err != nil {
		if file != nil {
			file.Close()
		}
		return fmt.Errorf("close output: %w", err)
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}
	return nil
}

// compressWriter picks an encoder from the output file extension.
func compressWriter(path string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return gzip.NewWriter(w), nil
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nopCloser{w}, nil
	}
}
