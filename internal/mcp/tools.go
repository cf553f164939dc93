package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solmem/solution-memory-mcp/internal/search"
	"github.com/solmem/solution-memory-mcp/internal/storage"
	"github.com/solmem/solution-memory-mcp/internal/taxonomy"
	"github.com/solmem/solution-memory-mcp/internal/vectorindex"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// Result paging bounds for search_solutions
const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

// saveParams carries the validated save_solution input.
type saveParams struct {
	Title         string
	Problem       string
	Solution      string
	RootCause     string
	ErrorMessages []string
	Tags          []string
	ProjectName   string
}

func (p saveParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.RuneLength(1, 500)),
		validation.Field(&p.Problem, validation.Required),
		validation.Field(&p.Solution, validation.Required),
	)
}

// handleSaveSolution handles the save_solution tool invocation
func (s *Server) handleSaveSolution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	params := saveParams{
		Title:         getStringDefault(args, "title", ""),
		Problem:       getStringDefault(args, "problem", ""),
		Solution:      getStringDefault(args, "solution", ""),
		RootCause:     getStringDefault(args, "root_cause", ""),
		ErrorMessages: getStringSlice(args, "error_messages"),
		Tags:          getStringSlice(args, "tags"),
		ProjectName:   getStringDefault(args, "project_name", ""),
	}

	if err := params.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid save_solution parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	record := &storage.Record{
		Title:         params.Title,
		Problem:       params.Problem,
		Solution:      params.Solution,
		RootCause:     params.RootCause,
		ErrorMessages: params.ErrorMessages,
		Tags:          params.Tags,
		ProjectName:   params.ProjectName,
	}

	if err := s.store.SaveRecord(ctx, record); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to save solution", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// The canonical row is already committed. A failed embedding leaves the
	// record keyword-searchable until the next reconcile_index pass repairs
	// the vector side, so the error reports the ID that was saved.
	if err := s.vectors.Add(ctx, vectorindex.Entry{
		RecordID:      record.ID,
		Title:         record.Title,
		Problem:       record.Problem,
		ErrorMessages: record.ErrorMessages,
	}); err != nil {
		log.Printf("save_solution: vector indexing failed for %s: %v", record.ID, err)
		return nil, newMCPError(ErrorCodeInternalError, "solution saved but vector indexing failed; run reconcile_index to repair", map[string]interface{}{
			"id":    record.ID,
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"id":      record.ID,
		"message": fmt.Sprintf("Solution '%s' saved successfully with ID %s", record.Title, record.ID),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchSolutions handles the search_solutions tool invocation
func (s *Server) handleSearchSolutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// Out-of-range limits are clamped rather than rejected
	limit := getIntDefault(args, "limit", defaultSearchLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	tags := getStringSlice(args, "tags")
	mode := getStringDefault(args, "search_mode", search.ModeHybrid)

	results, err := s.engine.Search(ctx, query, limit, tags, mode)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"results": results,
		"total":   len(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSolution handles the get_solution tool invocation
func (s *Server) handleGetSolution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	record, err := s.store.GetRecord(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"error": fmt.Sprintf("Solution with ID '%s' not found", id),
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get solution", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"id":             record.ID,
		"title":          record.Title,
		"problem":        record.Problem,
		"root_cause":     record.RootCause,
		"solution":       record.Solution,
		"error_messages": record.ErrorMessages,
		"tags":           record.Tags,
		"project_name":   record.ProjectName,
		"created_at":     record.CreatedAt.Format(time.RFC3339),
		"updated_at":     record.UpdatedAt.Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListTags handles the list_tags tool invocation
func (s *Server) handleListTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var category *taxonomy.Category
	if raw := getStringDefault(args, "category", ""); raw != "" {
		c := taxonomy.Category(raw)
		if !c.Valid() {
			names := make([]string, 0, len(taxonomy.Categories()))
			for _, v := range taxonomy.Categories() {
				names = append(names, string(v))
			}
			response := map[string]interface{}{
				"error": fmt.Sprintf("Invalid category. Must be one of: %s", strings.Join(names, ", ")),
			}
			return mcp.NewToolResultText(formatJSON(response)), nil
		}
		category = &c
	}

	tags, err := s.store.ListTags(ctx, category)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list tags", map[string]interface{}{
			"error": err.Error(),
		})
	}

	tagData := make([]map[string]interface{}, len(tags))
	for i, t := range tags {
		tagData[i] = map[string]interface{}{
			"name":     t.Name,
			"category": string(t.Category),
			"count":    t.Count,
		}
	}

	response := map[string]interface{}{
		"tags": tagData,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleReconcileIndex handles the reconcile_index tool invocation
func (s *Server) handleReconcileIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Reconcile(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "reconcile failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"checked":  stats.Checked,
		"repaired": stats.Repaired,
		"removed":  stats.Removed,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, tolerating the
// []interface{} shape JSON decoding produces
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		if vals, ok := args[key].([]string); ok {
			return vals
		}
		return nil
	}

	vals := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			vals = append(vals, s)
		}
	}
	return vals
}
