package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImproveCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "improve [text...]",
		Short: "Rewrite an idea description for clarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDescription(cmd.InOrStdin(), inputPath, args)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), globalCfg, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			improved, err := rt.improver.Improve(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), improved)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "Read the text from a file (- for stdin)")
	return cmd
}
