package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vippsas/kqlcore/ast"
)

// StaticProvider is an in-memory Provider, usable directly in tests and by
// the CLI's plan/explain subcommands, loaded from a YAML document the way
// cli/cmd/config.go's LoadConfig loads sqlcode.yaml.
type StaticProvider struct {
	tables    map[string]*Table
	functions []Function
	operators []Operator
}

// NewStaticProvider builds a StaticProvider from already-constructed tables,
// functions and operators (used by tests that don't want to round-trip
// through YAML).
func NewStaticProvider(tables []*Table, functions []Function, operators []Operator) *StaticProvider {
	m := make(map[string]*Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return &StaticProvider{tables: m, functions: functions, operators: operators}
}

func (p *StaticProvider) GetTable(name string) (*Table, bool) {
	for k, t := range p.tables {
		if equalFoldASCII(k, name) {
			return t, true
		}
	}
	return nil, false
}

func (p *StaticProvider) GetFunctions() []Function { return p.functions }
func (p *StaticProvider) GetOperators() []Operator { return p.operators }

// yamlColumn/yamlTable/yamlFunction/yamlDoc mirror the shape of a schema
// YAML document; the field names are the on-disk vocabulary, deliberately
// decoupled from the ast.DataType Go identifiers so the document stays
// readable (e.g. "int" rather than "DTInteger").
type yamlColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type yamlTable struct {
	Name     string       `yaml:"name"`
	Columns  []yamlColumn `yaml:"columns"`
	RowCount int64        `yaml:"row_count_estimate"`
}

type yamlFunction struct {
	Name       string   `yaml:"name"`
	Aggregate  bool     `yaml:"aggregate"`
	MinArity   int      `yaml:"min_arity"`
	MaxArity   int      `yaml:"max_arity"`
	ArgTypes   []string `yaml:"arg_types"`
	ReturnType string   `yaml:"return_type"`
}

type yamlDoc struct {
	Tables    []yamlTable    `yaml:"tables"`
	Functions []yamlFunction `yaml:"functions"`
}

// LoadStaticProviderFile reads a schema YAML document from path and builds
// a StaticProvider. The operator catalog is always DefaultOperators: the
// grammar fixes which operator spellings can appear (spec §4.2), so there
// is nothing for a YAML document to usefully override there.
func LoadStaticProviderFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return LoadStaticProvider(data)
}

// LoadStaticProvider parses a schema YAML document already read into memory.
func LoadStaticProvider(data []byte) (*StaticProvider, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	tables := make(map[string]*Table, len(doc.Tables))
	for _, yt := range doc.Tables {
		t := &Table{Name: yt.Name, RowCountEstimate: yt.RowCount}
		for _, yc := range yt.Columns {
			t.Cols = append(t.Cols, Column{Name: yc.Name, Type: parseDataType(yc.Type)})
		}
		tables[yt.Name] = t
	}

	functions := DefaultFunctions()
	for _, yf := range doc.Functions {
		f := Function{
			Name:      yf.Name,
			Aggregate: yf.Aggregate,
			MinArity:  yf.MinArity,
			MaxArity:  yf.MaxArity,
		}
		for _, t := range yf.ArgTypes {
			f.ArgTypes = append(f.ArgTypes, parseDataType(t))
		}
		f.ReturnType = parseDataType(yf.ReturnType)
		functions = append(functions, f)
	}

	p := &StaticProvider{tables: tables, functions: functions, operators: DefaultOperators()}
	return p, nil
}

func parseDataType(s string) ast.DataType {
	switch s {
	case "string":
		return ast.DTString
	case "int", "integer":
		return ast.DTInteger
	case "real", "float", "double":
		return ast.DTFloat
	case "bool", "boolean":
		return ast.DTBoolean
	case "datetime":
		return ast.DTDatetime
	case "timespan":
		return ast.DTTimespan
	case "guid":
		return ast.DTGuid
	case "dynamic":
		return ast.DTDynamic
	default:
		return ast.DTUnknown
	}
}

// DefaultFunctions is the built-in scalar/aggregate function catalog every
// StaticProvider starts from, before a YAML document's own functions are
// appended. It covers the aggregate names the SQL generator already maps
// one-to-one (spec §4.5) plus a handful of common scalar functions exercised
// by the example queries in spec §8.
func DefaultFunctions() []Function {
	any1 := []ast.DataType{ast.DTUnknown}
	return []Function{
		{Name: "count", Aggregate: true, MinArity: 0, MaxArity: 0, ReturnType: ast.DTInteger},
		{Name: "sum", Aggregate: true, MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTFloat},
		{Name: "avg", Aggregate: true, MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTFloat},
		{Name: "min", Aggregate: true, MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTUnknown},
		{Name: "max", Aggregate: true, MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTUnknown},
		{Name: "dcount", Aggregate: true, MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTInteger},
		{Name: "strlen", MinArity: 1, MaxArity: 1, ArgTypes: []ast.DataType{ast.DTString}, ReturnType: ast.DTInteger},
		{Name: "tolower", MinArity: 1, MaxArity: 1, ArgTypes: []ast.DataType{ast.DTString}, ReturnType: ast.DTString},
		{Name: "toupper", MinArity: 1, MaxArity: 1, ArgTypes: []ast.DataType{ast.DTString}, ReturnType: ast.DTString},
		{Name: "substring", MinArity: 2, MaxArity: 3, ReturnType: ast.DTString},
		{Name: "trim", MinArity: 1, MaxArity: 1, ArgTypes: []ast.DataType{ast.DTString}, ReturnType: ast.DTString},
		{Name: "tostring", MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTString},
		{Name: "toint", MinArity: 1, MaxArity: 1, ArgTypes: any1, ReturnType: ast.DTInteger},
		{Name: "now", MinArity: 0, MaxArity: 0, ReturnType: ast.DTDatetime},
		{Name: "ago", MinArity: 1, MaxArity: 1, ArgTypes: []ast.DataType{ast.DTTimespan}, ReturnType: ast.DTDatetime},
		{Name: "between", MinArity: 3, MaxArity: 3, ReturnType: ast.DTBoolean},
	}
}

// DefaultOperators is the operator catalog matching the grammar's fixed set
// of operator spellings (spec §4.2).
func DefaultOperators() []Operator {
	return []Operator{
		{Symbol: "or"}, {Symbol: "and"},
		{Symbol: "=="}, {Symbol: "!="},
		{Symbol: "<"}, {Symbol: "<="}, {Symbol: ">"}, {Symbol: ">="},
		{Symbol: "in"}, {Symbol: "!in"}, {Symbol: "between"},
		{Symbol: "contains"}, {Symbol: "!contains"},
		{Symbol: "startswith"}, {Symbol: "!startswith"},
		{Symbol: "endswith"}, {Symbol: "!endswith"},
		{Symbol: "matches"}, {Symbol: "like"}, {Symbol: "!like"},
		{Symbol: "+"}, {Symbol: "-"}, {Symbol: "*"}, {Symbol: "/"}, {Symbol: "%"},
		{Symbol: "not", Unary: true},
	}
}
