package cmd

import (
	"errors"
	"fmt"

	"github.com/alecthomas/repr"
	"github.com/spf13/cobra"

	"github.com/vippsas/kqlcore/optimize"
)

var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Parse, validate, and optimize a query, printing the execution plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Help()
			return errors.New("expected exactly one argument: the query text")
		}

		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		provider, err := loadSchemaProvider(cfg)
		if err != nil {
			return err
		}

		query, diags := parseAndValidate(args[0], provider)
		if diags.HasErrors() {
			for _, d := range diags {
				fmt.Println(d.String())
			}
			return errors.New("validation failed")
		}

		result := optimize.Optimize(query, provider)
		repr.Println(result.Plan)
		for _, n := range result.Notes {
			fmt.Printf("note[%s]: %s\n", n.Code, n.Message)
		}
		fmt.Printf("total cost: %.2f\n", result.Plan.TotalCost)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
