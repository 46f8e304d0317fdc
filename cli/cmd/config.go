package cmd

import (
	"fmt"

	"github.com/vippsas/kqlcore/config"
	"github.com/vippsas/kqlcore/schema"
)

// loadEngineConfig reads the file named by the --config flag, grounded on
// the teacher's cli/cmd/config.go LoadConfig (os.ReadFile + yaml.Unmarshal,
// explicit "file not found" error).
func loadEngineConfig() (config.Config, error) {
	return config.Load(configPath)
}

// loadSchemaProvider builds the schema.Provider subcommands validate and
// optimize against, from cfg.SchemaFile. An empty SchemaFile is not an
// error here: it yields a provider with the default functions and
// operators and no tables, so any table reference then fails validation.
func loadSchemaProvider(cfg config.Config) (schema.Provider, error) {
	if cfg.SchemaFile == "" {
		return schema.NewStaticProvider(nil, schema.DefaultFunctions(), schema.DefaultOperators()), nil
	}
	provider, err := schema.LoadStaticProviderFile(cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("loading schema file %s: %w", cfg.SchemaFile, err)
	}
	return provider, nil
}
