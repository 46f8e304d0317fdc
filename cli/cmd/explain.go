package cmd

import (
	"errors"
	"fmt"

	"github.com/alecthomas/repr"
	"github.com/spf13/cobra"

	"github.com/vippsas/kqlcore/optimize"
	"github.com/vippsas/kqlcore/sqlgen"
)

var (
	explainTenant  string
	explainDialect string
	explainMaxRows int64
)

// explainCmd runs parse -> validate -> optimize -> emit without admission
// or execution, the CLI's introspection-only path (SPEC_FULL §12),
// generalizing the teacher's hash.go/find.go "inspect the code base
// without deploying it" subcommands into "inspect a query without running
// it".
var explainCmd = &cobra.Command{
	Use:   "explain <query>",
	Short: "Show the AST, execution plan, and generated SQL for a query without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Help()
			return errors.New("expected exactly one argument: the query text")
		}
		if explainTenant == "" {
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
		dialect, err := parseDialectFlag(explainDialect)
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

		fmt.Println("== AST ==")
		repr.Println(query)

		opt := optimize.Optimize(query, provider)
		fmt.Println("== optimized AST ==")
		repr.Println(opt.Query)

		fmt.Println("== execution plan ==")
		repr.Println(opt.Plan)
		for _, n := range opt.Notes {
			fmt.Printf("note[%s]: %s\n", n.Code, n.Message)
		}

		result, err := sqlgen.Generate(opt.Query, dialect, sqlgen.ExecutionContext{Tenant: explainTenant, MaxRows: explainMaxRows})
		if err != nil {
			return err
		}
		fmt.Println("== SQL ==")
		fmt.Println(result.SQL)
		fmt.Println("params:", result.Params)
		return nil
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainTenant, "tenant", "", "tenant identifier bound as the first SQL parameter")
	explainCmd.Flags().StringVar(&explainDialect, "dialect", "postgres", "target SQL dialect: postgres | mssql")
	explainCmd.Flags().Int64Var(&explainMaxRows, "max-rows", 0, "cap the result to at most this many rows (0 = unbounded)")
	rootCmd.AddCommand(explainCmd)
}
