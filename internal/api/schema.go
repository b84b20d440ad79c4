package api

import (
	"net/http"
)

type schemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type schemaTable struct {
	Name    string         `json:"name"`
	Columns []schemaColumn `json:"columns"`
}

type schemaResponse struct {
	Tables []schemaTable `json:"tables"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema.Empty() {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "database schema has not been introspected", true, nil)
		return
	}

	response := schemaResponse{Tables: make([]schemaTable, 0, len(deps.Schema.Tables))}
	for _, table := range deps.Schema.Tables {
		columns := make([]schemaColumn, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, schemaColumn{Name: column.Name, Type: column.Type})
		}
		response.Tables = append(response.Tables, schemaTable{Name: table.Name, Columns: columns})
	}
	writeJSON(w, http.StatusOK, response)
}
