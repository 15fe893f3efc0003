package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hextools/bps"
)

var (
	validateSourcePath string
	validateTargetPath string
)

var validateCmd = &cobra.Command{
	Use:   "validate <patch.bps>",
	Short: "check a patch's invariants and, optionally, its source/target checksums",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateSourcePath, "source", "", "verify SourceCRC32 against this file")
	validateCmd.Flags().StringVar(&validateTargetPath, "target", "", "verify TargetCRC32 against this file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	patchPath := args[0]

	patchFile, err := os.Open(patchPath)
	if err != nil {
		return errors.Wrap(err, "opening patch file")
	}
	defer patchFile.Close()

	reader, err := bps.NewReader(patchFile)
	if err != nil {
		return errors.Wrap(err, "parsing patch")
	}

	var opts []bps.ValidatorOption
	if validateSourcePath != "" {
		source, err := os.ReadFile(validateSourcePath)
		if err != nil {
			return errors.Wrap(err, "reading source file")
		}
		opts = append(opts, bps.VerifySource(source))
	}
	if validateTargetPath != "" {
		target, err := os.ReadFile(validateTargetPath)
		if err != nil {
			return errors.Wrap(err, "reading target file")
		}
		opts = append(opts, bps.VerifyTarget(target))
	}

	if err := bps.Validate(reader, opts...); err != nil {
		logger.Error().Err(err).Msg("patch failed validation")
		return err
	}

	logger.Info().Str("patch", patchPath).Msg("patch is valid")
	return nil
}
