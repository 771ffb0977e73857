package models

// QueryRequest is a caller-supplied candidate query plus paging and timeout
// bounds. Neither it nor the result persists beyond a single call.
type QueryRequest struct {
	SQL       string        `json:"sql"`
	Params    []interface{} `json:"params,omitempty"`
	Limit     *int          `json:"limit,omitempty"`
	Offset    *int          `json:"offset,omitempty"`
	TimeoutMs *int          `json:"timeout_ms,omitempty"`
}

// QueryResult is the uniform result envelope. AppliedLimit and AppliedOffset
// report the paging actually used after clamping so callers can tell when
// their request was silently adjusted.
type QueryResult struct {
	RowCount      int                      `json:"row_count"`
	Rows          []map[string]interface{} `json:"rows"`
	AppliedLimit  int                      `json:"applied_limit"`
	AppliedOffset int                      `json:"applied_offset"`
}

// ColumnInfo describes one column of an introspected table.
type ColumnInfo struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// IndexInfo describes one index on an introspected table.
type IndexInfo struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// SchemaBundle is the catalog response: live column and index metadata plus a
// hand-authored usage summary.
type SchemaBundle struct {
	Columns []ColumnInfo `json:"columns"`
	Indexes []IndexInfo  `json:"indexes"`
	Summary string       `json:"summary"`
}
