package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/longpoll/internal/harness"
)

// TableOptions holds flags for the table command.
type TableOptions struct {
	*RootOptions
	Targets bool // show the target state instead of a mark
}

// NewTableCommand creates the table command.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TableOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the state x event acceptance matrix",
		Long: `Print which events each subscribe state accepts.

Every event is applied to a representative of every state, with effect
events built to match the state's own request. A blank cell means the event
is ignored in that state.

Examples:
  longpoll table
  longpoll table --targets
  longpoll table --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTable(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Targets, "targets", false, "show the target state in each accepted cell")

	return cmd
}

func runTable(opts *TableOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	m, err := harness.New().AcceptanceMatrix()
	if err != nil {
		return WrapExitError(ExitFailure, "build matrix", err)
	}

	if opts.Format == "json" {
		return formatter.Success(m)
	}

	tbl := table.NewWriter()
	tbl.SetTitle("Subscribe transitions")
	tbl.SetOutputMirror(formatter.Writer)

	header := table.Row{"state"}
	for _, e := range m.Events {
		header = append(header, e)
	}
	tbl.AppendHeader(header)

	for i, state := range m.States {
		row := table.Row{state}
		for _, c := range m.Cells[i] {
			row = append(row, cellText(c, opts.Targets))
		}
		tbl.AppendRow(row)
	}

	tbl.Render()
	return nil
}

func cellText(c harness.Cell, targets bool) string {
	switch {
	case !c.Accepted:
		return ""
	case targets:
		return c.To
	default:
		return "✓"
	}
}
