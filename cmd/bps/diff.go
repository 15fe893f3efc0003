package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hextools/bps"
)

var (
	diffBlocksize int
	diffMetadata  string
)

var diffCmd = &cobra.Command{
	Use:   "diff <source> <target> <patch.bps>",
	Short: "compute a BPS patch transforming source into target",
	Args:  cobra.ExactArgs(3),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().IntVar(&diffBlocksize, "blocksize", 0, "block-hash window size (default: size-based heuristic)")
	diffCmd.Flags().StringVar(&diffMetadata, "metadata", "", "opaque metadata string stored in the patch header")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	sourcePath, targetPath, patchPath := args[0], args[1], args[2]

	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar = progressbar.NewOptions64(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false))
	}
	advance := func(n int64) {
		if bar != nil {
			bar.Add64(n)
		}
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return errors.Wrap(err, "reading source file")
	}
	target, err := os.ReadFile(targetPath)
	if err != nil {
		return errors.Wrap(err, "reading target file")
	}
	advance(10)

	blocksize := diffBlocksize
	if blocksize == 0 {
		blocksize = bps.DefaultBlockSize(len(source), len(target))
	}

	logger.Info().Int("blocksize", blocksize).Int("source_size", len(source)).Int("target_size", len(target)).Msg("starting diff")

	var metadata []byte
	if diffMetadata != "" {
		metadata = []byte(diffMetadata)
	}

	ops, err := bps.DiffMetadata(blocksize, source, target, metadata)
	if err != nil {
		return errors.Wrap(err, "computing diff")
	}
	advance(80)

	out, err := os.Create(patchPath)
	if err != nil {
		return errors.Wrap(err, "creating patch file")
	}
	defer out.Close()

	if err := bps.WritePatch(ops, out); err != nil {
		return errors.Wrap(err, "writing patch")
	}
	advance(10)

	if bar != nil {
		bar.Finish()
		os.Stderr.Write([]byte("\n"))
	}
	logger.Info().Str("patch", patchPath).Msg("diff complete")
	return nil
}
