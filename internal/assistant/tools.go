package assistant

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/statuswatch/statuswatch/internal/catalog"
	"github.com/statuswatch/statuswatch/internal/gateway"
	"github.com/statuswatch/statuswatch/internal/models"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

// Tool is one operation the orchestration loop may invoke. Parameters is a
// JSON-schema object describing the arguments; Run receives them raw and
// returns a JSON-serializable result.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`

	Run func(ctx context.Context, args json.RawMessage) (interface{}, error) `json:"-"`
}

// Toolset is the in-process contract consumed by the external orchestration
// collaborator: schema grounding first, then one or more bounded queries.
// Prompt assembly and model selection live outside this repository.
type Toolset struct {
	gateway *gateway.Gateway
	catalog *catalog.Catalog
	tools   map[string]*Tool
	order   []string
	logger  *logrus.Logger
}

// NewToolset creates the assistant toolset over the gateway and catalog.
func NewToolset(gw *gateway.Gateway, cat *catalog.Catalog) *Toolset {
	ts := &Toolset{
		gateway: gw,
		catalog: cat,
		tools:   make(map[string]*Tool),
		logger:  utils.GetLogger(),
	}

	ts.register(&Tool{
		Name: "get_schema",
		Description: "Return the tracker database layout: columns and indexes of the " +
			"field_changes and field_values tables plus guidance on how to query them. " +
			"Call this before writing SQL.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Run: ts.runGetSchema,
	})

	ts.register(&Tool{
		Name: "run_sql_query",
		Description: "Execute one read-only SELECT (or WITH...SELECT) statement against the " +
			"tracker database. Positional parameters use $1, $2, ... syntax. Results are " +
			"paginated; the response reports the limit and offset actually applied.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "A single SELECT or WITH statement",
				},
				"params": map[string]interface{}{
					"type":        "array",
					"description": "Values bound to $1, $2, ... in order",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum rows to return (1-2000, default 200)",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Rows to skip (default 0)",
				},
				"timeout_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Statement timeout in milliseconds (1000-60000, default 15000)",
				},
			},
			"required": []string{"sql"},
		},
		Run: ts.runQuery,
	})

	return ts
}

func (ts *Toolset) register(tool *Tool) {
	ts.tools[tool.Name] = tool
	ts.order = append(ts.order, tool.Name)
}

// Tools returns the tool definitions in registration order.
func (ts *Toolset) Tools() []*Tool {
	out := make([]*Tool, 0, len(ts.order))
	for _, name := range ts.order {
		out = append(out, ts.tools[name])
	}
	return out
}

// Dispatch invokes a tool by name with raw JSON arguments.
func (ts *Toolset) Dispatch(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	tool, ok := ts.tools[name]
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "Unknown tool", name)
	}

	ts.logger.WithField("tool", name).Debug("Dispatching tool call")
	return tool.Run(ctx, args)
}

func (ts *Toolset) runGetSchema(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return ts.catalog.Schema(ctx)
}

func (ts *Toolset) runQuery(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var req models.QueryRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Malformed tool arguments", err.Error())
	}
	return ts.gateway.Query(ctx, &req)
}
