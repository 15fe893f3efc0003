package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hextools/bps"
)

var applyCmd = &cobra.Command{
	Use:   "apply <patch.bps> <source> <output>",
	Short: "apply a BPS patch to source, writing output",
	Args:  cobra.ExactArgs(3),
	RunE:  runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	patchPath, sourcePath, outputPath := args[0], args[1], args[2]

	patchFile, err := os.Open(patchPath)
	if err != nil {
		return errors.Wrap(err, "opening patch file")
	}
	defer patchFile.Close()

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return errors.Wrap(err, "reading source file")
	}

	reader, err := bps.NewReader(patchFile)
	if err != nil {
		return errors.Wrap(err, "parsing patch")
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer out.Close()

	if err := bps.ApplyTo(reader, source, out); err != nil {
		logger.Error().Err(err).Msg("apply failed")
		return err
	}

	logger.Info().Str("output", outputPath).Msg("apply complete")
	return nil
}
