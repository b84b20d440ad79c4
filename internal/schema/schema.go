// Package schema describes the tables and columns available to query
// generation. A Descriptor is built once at startup from store introspection
// and is read-only afterwards; it refreshes only on process restart.
package schema

import (
	"fmt"
	"strings"
)

type Column struct {
	Name string
	Type string
}

type Table struct {
	Name    string
	Columns []Column
}

type Descriptor struct {
	Tables []Table
}

func (d Descriptor) Empty() bool {
	return len(d.Tables) == 0
}

func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (d Descriptor) Table(name string) (Table, bool) {
	for _, table := range d.Tables {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return Table{}, false
}

func (d Descriptor) HasTable(name string) bool {
	_, ok := d.Table(name)
	return ok
}

func (d Descriptor) HasColumn(tableName, columnName string) bool {
	table, ok := d.Table(tableName)
	if !ok {
		return false
	}
	for _, column := range table.Columns {
		if strings.EqualFold(column.Name, columnName) {
			return true
		}
	}
	return false
}

// Render produces the CREATE TABLE-style description embedded in generation
// prompts. Column order follows the store's ordinal positions.
func (d Descriptor) Render() string {
	var b strings.Builder
	for i, table := range d.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "CREATE TABLE %s (\n", table.Name)
		for j, column := range table.Columns {
			fmt.Fprintf(&b, "    %s %s", column.Name, column.Type)
			if j < len(table.Columns)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(")\n")
	}
	return b.String()
}
