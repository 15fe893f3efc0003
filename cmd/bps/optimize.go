package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hextools/bps"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <patch.bps> <optimized.bps>",
	Short: "rewrite a patch's opcode stream into an equivalent, no-larger one",
	Args:  cobra.ExactArgs(2),
	RunE:  runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	inPath, outPath := args[0], args[1]

	inFile, err := os.Open(inPath)
	if err != nil {
		return errors.Wrap(err, "opening patch file")
	}
	defer inFile.Close()

	reader, err := bps.NewReader(inFile)
	if err != nil {
		return errors.Wrap(err, "parsing patch")
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "creating output patch file")
	}
	defer outFile.Close()

	before, err := inFile.Stat()
	var beforeSize int64
	if err == nil {
		beforeSize = before.Size()
	}

	if err := bps.WritePatch(bps.Optimize(reader), outFile); err != nil {
		logger.Error().Err(err).Msg("optimize failed")
		return err
	}

	after, err := os.Stat(outPath)
	if err == nil {
		logger.Info().Int64("before_bytes", beforeSize).Int64("after_bytes", after.Size()).Msg("optimize complete")
	}
	return nil
}
