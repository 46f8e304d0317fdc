package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vippsas/kqlcore/backend"
	"github.com/vippsas/kqlcore/cache"
	"github.com/vippsas/kqlcore/execcore"
	"github.com/vippsas/kqlcore/schedule"
)

var (
	runTenant   string
	runDatabase string
	runPriority string
	runTimeout  time.Duration
	runNoCache  bool
	runMaxRows  int64
)

// runCmd wires a config file all the way through to a live backend and
// prints the result set, the CLI's one command that exercises the full
// spec §4.8 pipeline end to end, generalizing the teacher's up.go
// "connect, then act" flow from deployment to query execution.
var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Parse, plan, schedule, and execute a query against a configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Help()
			return errors.New("expected exactly one argument: the query text")
		}
		if runTenant == "" {
			return errors.New("--tenant is required")
		}
		if runDatabase == "" {
			return errors.New("--database is required")
		}

		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		dbcfg, err := cfg.Database(runDatabase)
		if err != nil {
			return err
		}
		provider, err := loadSchemaProvider(cfg)
		if err != nil {
			return err
		}
		dialect, err := backend.ParseDialect(dbcfg.Dialect)
		if err != nil {
			return err
		}

		sqlBackend, db, err := backend.Open(dialect, dbcfg.DSN)
		if err != nil {
			return fmt.Errorf("opening database %q: %w", runDatabase, err)
		}
		defer db.Close()

		logger := logrus.StandardLogger()

		c := cache.New(cfg.CachePolicy(), cfg.CacheByteCeiling)
		defer c.Close()

		sched := schedule.New(cfg.SchedulerConfig(), logger)
		defer sched.Close()

		facade := execcore.New(provider, sched, c, sqlBackend, logger, execcore.Config{
			DefaultCacheTTL:   cfg.CacheDefaultTTL,
			MaxCacheableBytes: cfg.CacheByteCeiling,
		})

		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout+10*time.Second)
		defer cancel()

		result, err := facade.Execute(ctx, execcore.Request{
			QueryText: args[0],
			Tenant:    runTenant,
			Options: execcore.Options{
				Priority:     runPriority,
				Timeout:      runTimeout,
				Dialect:      dialect,
				DisableCache: runNoCache,
				MaxRows:      runMaxRows,
			},
		})
		if err != nil {
			var fe *execcore.Error
			if errors.As(err, &fe) {
				if len(fe.Diagnostics) > 0 {
					for _, d := range fe.Diagnostics {
						fmt.Println(d.String())
					}
				}
				return fmt.Errorf("query failed (%s): %w", fe.Kind, err)
			}
			return err
		}

		printResult(result)
		return nil
	},
}

// printResult renders columns and rows with text/tabwriter, the stdlib
// table-formatting idiom the teacher uses for its own CLI output tables
// (sqltest/querydump.go's DumpRows before it was adapted into backend's
// scanning logic).
func printResult(r *execcore.QueryResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for i, col := range r.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col.Name)
	}
	fmt.Fprintln(w)

	for _, row := range r.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%v", v)
		}
		fmt.Fprintln(w)
	}
	w.Flush()

	fmt.Printf("\n%d row(s) in %s (cached=%v)\n", r.RowCount, r.Duration, r.Cached)
}

func init() {
	runCmd.Flags().StringVar(&runTenant, "tenant", "", "tenant identifier bound as the first SQL parameter")
	runCmd.Flags().StringVar(&runDatabase, "database", "", "logical database name from the config's databases map")
	runCmd.Flags().StringVar(&runPriority, "priority", "normal", "scheduling priority: critical | high | normal | low")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "execution timeout once admitted")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "bypass the result cache for this query")
	runCmd.Flags().Int64Var(&runMaxRows, "max-rows", 0, "cap the result to at most this many rows (0 = unbounded)")
	rootCmd.AddCommand(runCmd)
}
