// Package sqlgen turns a classified question into an executable SQL query.
// The schema is embedded in the generation prompt to constrain the oracle,
// and the output is validated against the same schema afterwards so a query
// referencing unknown tables never reaches the executor.
package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/reconquery/reconquery/internal/classify"
	"github.com/reconquery/reconquery/internal/llm"
	"github.com/reconquery/reconquery/internal/schema"
)

// GenerationError reports that no plausible SQL could be produced for the
// question. The pipeline answers with a "could not understand" response
// instead of executing arbitrary text.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate sql: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Request struct {
	Question string
	History  []llm.Turn
	Category classify.Category
}

// Query is generated SQL together with the classification that produced it.
// A general classification never yields a Query.
type Query struct {
	SQL      string
	Category classify.Category
}

type Generator struct {
	oracle     llm.Client
	desc       schema.Descriptor
	listRowCap int
}

func New(oracle llm.Client, desc schema.Descriptor, listRowCap int) *Generator {
	if listRowCap <= 0 {
		listRowCap = 1000
	}
	return &Generator{oracle: oracle, desc: desc, listRowCap: listRowCap}
}

func (g *Generator) Generate(ctx context.Context, req Request) (Query, error) {
	switch req.Category {
	case classify.CategoryRelevant, classify.CategoryListRequest:
	default:
		return Query{}, fmt.Errorf("cannot generate sql for category %q", req.Category)
	}
	if strings.TrimSpace(req.Question) == "" {
		return Query{}, &GenerationError{Err: fmt.Errorf("question is required")}
	}

	raw, err := g.oracle.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are an expert SQL generator for financial transaction data. Return exactly one SQL query with no explanation."},
		{Role: "user", Content: g.buildPrompt(req)},
	})
	if err != nil {
		return Query{}, &GenerationError{Err: err}
	}

	sql := llm.StripFence(raw)
	if sql == "" {
		return Query{}, &GenerationError{Err: fmt.Errorf("model returned empty SQL")}
	}
	if err := g.validateReferences(sql); err != nil {
		return Query{}, &GenerationError{Err: err}
	}
	return Query{SQL: sql, Category: req.Category}, nil
}

func (g *Generator) buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Generate a single SQL query answering the user's question.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("- Use only the tables and columns in the schema below.\n")
	b.WriteString("- Select explicit columns, never SELECT *.\n")
	b.WriteString("- Use JOINs only when the answer spans multiple tables.\n")
	b.WriteString("- Handle NULL values and date ranges with standard SQL functions.\n")
	b.WriteString("- No INSERT, UPDATE, DELETE, DDL, or any statement that modifies data.\n")
	switch req.Category {
	case classify.CategoryListRequest:
		b.WriteString("- The user wants the individual records: no aggregate functions.\n")
		b.WriteString("- Include every column relevant to understanding each record.\n")
		fmt.Fprintf(&b, "- Sort by the most natural timestamp column descending and LIMIT %d.\n", g.listRowCap)
	default:
		b.WriteString("- Prefer a summary: aggregate with SUM, COUNT, or AVG where the question asks for totals or comparisons.\n")
	}
	b.WriteString("\nSchema:\n")
	b.WriteString(g.desc.Render())
	b.WriteString("\nPrevious conversation:\n")
	b.WriteString(llm.FormatHistory(req.History))
	fmt.Fprintf(&b, "\nQuestion: %s\nSQL:", strings.TrimSpace(req.Question))
	return b.String()
}

// validateReferences checks every table referenced by FROM/JOIN clauses
// against the descriptor.
func (g *Generator) validateReferences(sql string) error {
	for _, table := range referencedTables(sql) {
		if !g.desc.HasTable(table) {
			return fmt.Errorf("query references unknown table %q", table)
		}
	}
	return nil
}

// referencedTables extracts table identifiers following FROM and JOIN
// keywords, including every member of a comma-separated FROM list.
// Subqueries contribute their own FROM clauses; parenthesized expressions
// directly after the keyword are skipped.
func referencedTables(sql string) []string {
	fields := strings.Fields(sql)
	tables := make([]string, 0, 2)
	for i := 0; i < len(fields)-1; i++ {
		switch strings.ToUpper(strings.Trim(fields[i], "(),")) {
		case "JOIN":
			next := fields[i+1]
			if strings.HasPrefix(next, "(") {
				continue
			}
			if name := normalizeIdent(next); name != "" {
				tables = append(tables, name)
			}
		case "FROM":
			tables = append(tables, fromListTables(fields[i+1:])...)
		}
	}
	return tables
}

// fromListTables walks a FROM clause's table list up to the next clause
// keyword. Each comma hands the scan back to table position, so aliases are
// skipped and every listed table is captured.
func fromListTables(fields []string) []string {
	tables := make([]string, 0, 2)
	expectTable := true
	for _, token := range fields {
		if clauseKeywords[strings.ToUpper(strings.Trim(token, "(),;"))] {
			break
		}
		if expectTable && !strings.HasPrefix(token, "(") {
			if name := normalizeIdent(strings.TrimSuffix(token, ",")); name != "" {
				tables = append(tables, name)
			}
		}
		expectTable = strings.HasSuffix(token, ",")
	}
	return tables
}

var clauseKeywords = map[string]bool{
	"SELECT": true, "WHERE": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true, "CROSS": true, "OUTER": true, "NATURAL": true,
	"ON": true, "USING": true, "GROUP": true, "ORDER": true, "LIMIT": true,
	"OFFSET": true, "HAVING": true, "UNION": true, "EXCEPT": true,
	"INTERSECT": true, "WINDOW": true,
}

func normalizeIdent(raw string) string {
	name := strings.Trim(raw, `"'`+"`"+"[](),;")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}
