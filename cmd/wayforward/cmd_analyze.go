package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/idea"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		inputPath string
		asJSON    bool
		progress  bool
		improve   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [description...]",
		Short: "Analyze an idea description and print the completed form",
		Long: "Analyze runs the coordinator and its research and market workers over the\n" +
			"description and prints the normalized idea form. The description comes from\n" +
			"the arguments, --file, or stdin when neither is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			description, err := readDescription(cmd.InOrStdin(), inputPath, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var events eventChannel
			opts := runtimeOptions{store: true}
			if progress {
				events = make(eventChannel, 64)
				opts.extra = events
			}
			rt, err := newRuntime(ctx, globalCfg, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if improve {
				improved, err := rt.improver.Improve(ctx, description)
				if err != nil {
					rt.logger.Warn("improvement failed; analyzing the original text", zap.Error(err))
				} else if improved != "" {
					description = improved
				}
			}

			analyze := func(ctx context.Context) *idea.Result {
				return rt.analyzer.AnalyzeDetailed(ctx, description)
			}
			var res *idea.Result
			if progress {
				res, err = runWithProgress(ctx, cmd.ErrOrStderr(), events, analyze)
				if err != nil {
					return err
				}
			} else {
				res = analyze(ctx)
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "Read the description from a file (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the form as JSON")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a live progress view on stderr")
	cmd.Flags().BoolVar(&improve, "improve", false, "Rewrite the description for clarity before analyzing it")
	return cmd
}

// readDescription prefers arguments, then --file, then stdin.
func readDescription(stdin io.Reader, path string, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	var data []byte
	var err error
	switch path {
	case "", "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	description := strings.TrimSpace(string(data))
	if description == "" {
		return "", errors.New("description is required")
	}
	return description, nil
}

func printResult(out io.Writer, res *idea.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"form_data": res.Draft, "run_id": res.RunID, "strategy": res.Strategy})
	}
	fmt.Fprintln(out, renderDraft(res.Draft))
	fmt.Fprintln(out, renderSummary(res))
	return nil
}
