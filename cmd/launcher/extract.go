package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"extension-launcher/config"
	"extension-launcher/internal/extension"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <crx> [dest]",
		Short: "Unpack one extension archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath, nil)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			dest := cfg.Extensions.ExtractDir
			if len(args) == 2 {
				dest = args[1]
			}

			unpacked, err := extension.NewExtractor("", dest, logger).Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Extracted to %s\n", unpacked.Dir)
			if unpacked.Name != "" {
				fmt.Fprintf(out, "  name:     %s\n", unpacked.Name)
				fmt.Fprintf(out, "  version:  %s\n", unpacked.Version)
				fmt.Fprintf(out, "  manifest: v%d\n", unpacked.ManifestVersion)
			}
			return nil
		},
	}
}
