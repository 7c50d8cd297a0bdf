package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RegisterCoreTools wires the standard toolset into a registry. catalog
// and searcher are optional; their tools are only registered when the
// collaborator is present.
func RegisterCoreTools(registry *ToolRegistry, env ExecutionEnvironment, catalog *DatasetCatalog, searcher Searcher) {
	RegisterExecuteCode(registry, env)
	RegisterReadFile(registry, env.WorkingDirectory())
	if catalog != nil {
		RegisterQueryDatabase(registry, catalog)
	}
	if searcher != nil {
		RegisterSearchLiterature(registry, searcher)
	}
}

// RegisterExecuteCode registers the execute_code tool backed by env.
func RegisterExecuteCode(registry *ToolRegistry, env ExecutionEnvironment) {
	registry.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name: "execute_code",
			Description: "Execute Python code in a persistent session. Variables, imports, and " +
				"functions defined in earlier calls remain available. A bare expression " +
				"prints its value. Errors report the traceback without losing prior state.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code": map[string]interface{}{
						"type":        "string",
						"description": "The Python code to execute.",
					},
				},
				"required": []string{"code"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", &InvalidArgumentsError{Tool: "execute_code", Cause: err}
			}
			code, ok := GetStringArg(args, "code")
			if !ok || strings.TrimSpace(code) == "" {
				return "", &InvalidArgumentsError{Tool: "execute_code", Cause: fmt.Errorf("missing required argument: code")}
			}

			result, err := env.Run(ctx, code)
			if err != nil {
				return "", err
			}
			output := result.Output()
			if result.SessionLost {
				output += "\n[The session was lost and restarted; previously defined variables are gone.]"
			}
			if output == "" {
				output = "(no output)"
			}
			return output, nil
		},
	})
}

// RegisterReadFile registers the read_file tool rooted at workingDir.
func RegisterReadFile(registry *ToolRegistry, workingDir string) {
	registry.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name: "read_file",
			Description: "Read a text file with line numbers. Supports offset (1-based start " +
				"line) and limit (max lines) for large files.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the file, absolute or relative to the working directory.",
					},
					"offset": map[string]interface{}{
						"type":        "integer",
						"description": "1-based line to start from.",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of lines to return.",
					},
				},
				"required": []string{"path"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", &InvalidArgumentsError{Tool: "read_file", Cause: err}
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", &InvalidArgumentsError{Tool: "read_file", Cause: fmt.Errorf("missing required argument: path")}
			}
			offset, _ := GetIntArg(args, "offset")
			limit, _ := GetIntArg(args, "limit")

			return readFileNumbered(workingDir, path, offset, limit)
		},
	})
}

// readFileNumbered reads a file and formats it with 1-based line numbers.
func readFileNumbered(workingDir, path string, offset, limit int) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workingDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	startLine := 0
	if offset > 0 {
		startLine = offset - 1
	}
	if startLine >= len(lines) {
		return "", nil
	}

	endLine := len(lines)
	if limit > 0 && startLine+limit < endLine {
		endLine = startLine + limit
	}

	var sb strings.Builder
	for i := startLine; i < endLine; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

// RegisterQueryDatabase registers the query_database tool backed by a
// DatasetCatalog.
func RegisterQueryDatabase(registry *ToolRegistry, catalog *DatasetCatalog) {
	datasets, _ := catalog.Datasets()
	description := "Query a local research dataset. Use query \"info\" to see a dataset's " +
		"files and columns, or \"file:<name>\" to read rows from one file."
	if len(datasets) > 0 {
		description += " Available datasets: " + strings.Join(datasets, ", ") + "."
	}

	registry.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "query_database",
			Description: description,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"database": map[string]interface{}{
						"type":        "string",
						"description": "Dataset name.",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "\"info\" or \"file:<name>\".",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum rows for file queries (default 50).",
					},
				},
				"required": []string{"database", "query"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", &InvalidArgumentsError{Tool: "query_database", Cause: err}
			}
			database, ok := GetStringArg(args, "database")
			if !ok || database == "" {
				return "", &InvalidArgumentsError{Tool: "query_database", Cause: fmt.Errorf("missing required argument: database")}
			}
			query, ok := GetStringArg(args, "query")
			if !ok || query == "" {
				return "", &InvalidArgumentsError{Tool: "query_database", Cause: fmt.Errorf("missing required argument: query")}
			}
			limit, _ := GetIntArg(args, "limit")

			return catalog.Query(database, query, limit)
		},
	})
}

// RegisterSearchLiterature registers the search_literature tool backed
// by a Searcher.
func RegisterSearchLiterature(registry *ToolRegistry, searcher Searcher) {
	registry.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name: "search_literature",
			Description: "Search PubMed for scientific articles. Returns titles, authors, " +
				"journals, and PMIDs.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search terms (PubMed query syntax is supported).",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum articles to return (default 10).",
					},
				},
				"required": []string{"query"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", &InvalidArgumentsError{Tool: "search_literature", Cause: err}
			}
			query, ok := GetStringArg(args, "query")
			if !ok || query == "" {
				return "", &InvalidArgumentsError{Tool: "search_literature", Cause: fmt.Errorf("missing required argument: query")}
			}
			maxResults, _ := GetIntArg(args, "max_results")

			results, err := searcher.Search(ctx, query, maxResults)
			if err != nil {
				return "", err
			}
			return FormatLiteratureResults(results), nil
		},
	})
}
