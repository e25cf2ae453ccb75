package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/commissar/internal/ruleset"
)

var validateCmd = &cobra.Command{
	Use:   "validate <rules.yaml>",
	Short: "Parse and compile a rule file without loading it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := ruleset.ReadFile(args[0])
	if err != nil {
		return err
	}

	book, err := ruleset.Build(f)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		return fmt.Errorf("%d of %d rules invalid", len(f.Rules)-book.Len(), len(f.Rules))
	}

	for _, r := range book.Rules() {
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s %v on %v\n", r.Name, r.Targets, r.Events)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules OK\n", book.Len())
	return nil
}
