package cmd

import (
	"errors"
	"fmt"

	"github.com/alecthomas/repr"
	"github.com/spf13/cobra"

	"github.com/vippsas/kqlcore/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse <query>",
	Short: "Parse a pipeline query and print its AST, or the diagnostics if parsing failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Help()
			return errors.New("expected exactly one argument: the query text")
		}

		query, diags := parser.Parse(args[0])
		for _, d := range diags {
			fmt.Println(d.String())
		}
		if query == nil {
			return errors.New("parse failed")
		}
		repr.Println(query)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
