package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/longpoll/internal/config"
)

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid  bool             `json:"valid"`
	File   string           `json:"file"`
	Errors []ValidationItem `json:"errors,omitempty"`
}

// ValidationItem is one schema violation.
type ValidationItem struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a client config file",
		Long: `Validate a YAML client configuration against the embedded schema.

Reports unknown keys, missing required keys and out-of-range values with
their line numbers, then checks that the retry section converts to a
usable policy.

Exit codes:
  0 - Config valid
  1 - Config invalid
  2 - Command error (file not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read config", err)
	}
	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	var items []ValidationItem
	if _, err := config.Parse(data, path); err != nil {
		items = validationItems(err)
	}

	if len(items) == 0 {
		if opts.Format == "json" {
			return formatter.Success(ValidationResult{Valid: true, File: path})
		}
		fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
		return nil
	}

	if opts.Format == "json" {
		if err := formatter.Success(ValidationResult{File: path, Errors: items}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n\n", path)
		for _, item := range items {
			if item.Line > 0 {
				fmt.Fprintf(formatter.Writer, "line %d\n", item.Line)
			}
			if item.Path != "" {
				fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", item.Path, item.Message)
			} else {
				fmt.Fprintf(formatter.Writer, "  %s\n\n", item.Message)
			}
		}
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(items)))
}

func validationItems(err error) []ValidationItem {
	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationItem{{Message: err.Error()}}
	}

	items := make([]ValidationItem, 0, len(verrs))
	for _, v := range verrs {
		item := ValidationItem{Path: v.Path, Message: v.Message}
		if v.Pos.IsValid() {
			item.Line = v.Pos.Line()
			item.Column = v.Pos.Column()
		}
		items = append(items, item)
	}
	return items
}
