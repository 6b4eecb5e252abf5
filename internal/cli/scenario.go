package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/longpoll/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run state table scenarios",
		Long: `Run YAML scenarios against the subscribe state table.

Each scenario feeds events to the table and checks the resulting trace
against its assertions and the structural properties every trace must
hold (ignored events change nothing, cancels precede restarts).

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable scenario)

Examples:
  longpoll scenario ./testdata/scenarios
  longpoll scenario ./testdata/scenarios --filter "receive_*"
  longpoll scenario ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by file name glob")

	return cmd
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	h := harness.New(harness.WithLogger(newLogger(opts.RootOptions, formatter.GetErrWriter())))
	suite, err := h.RunSuite(dir, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(suite); err != nil {
			return err
		}
	} else {
		outputSuiteText(formatter, suite)
	}

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", suite.Failed, suite.TotalScenarios))
	}
	return nil
}

func outputSuiteText(f *OutputFormatter, suite *harness.SuiteResult) {
	w := f.Writer
	if suite.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range suite.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s (%d steps)\n", s.Name, s.Steps)
			f.VerboseLog("  %s digest %s", s.Path, s.Digest)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.TotalScenarios)
}
