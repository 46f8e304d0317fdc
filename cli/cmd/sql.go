package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vippsas/kqlcore/optimize"
	"github.com/vippsas/kqlcore/sqlgen"
)

var (
	sqlTenant  string
	sqlDialect string
	sqlMaxRows int64
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Parse, validate, optimize, and emit parameterized SQL for a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Help()
			return errors.New("expected exactly one argument: the query text")
		}
		if sqlTenant == "" {
			return errors.New("--tenant is required")
		}

		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		provider, err := loadSchemaProvider(cfg)
		if err != nil {
			return err
		}
		dialect, err := parseDialectFlag(sqlDialect)
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

		opt := optimize.Optimize(query, provider)
		result, err := sqlgen.Generate(opt.Query, dialect, sqlgen.ExecutionContext{
			Tenant:  sqlTenant,
			MaxRows: sqlMaxRows,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.SQL)
		fmt.Println("params:", result.Params)
		return nil
	},
}

func init() {
	sqlCmd.Flags().StringVar(&sqlTenant, "tenant", "", "tenant identifier bound as the first SQL parameter")
	sqlCmd.Flags().StringVar(&sqlDialect, "dialect", "postgres", "target SQL dialect: postgres | mssql")
	sqlCmd.Flags().Int64Var(&sqlMaxRows, "max-rows", 0, "cap the result to at most this many rows (0 = unbounded)")
	rootCmd.AddCommand(sqlCmd)
}
