// ABOUTME: Builtin CNC data tools backed by the upstream IoT API.
// ABOUTME: Covers listing, lookup, search with client-side filters, and summaries.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fieldbus/cnc-gateway/internal/tools"
)

// Getter fetches JSON documents from the upstream data API.
type Getter interface {
	Get(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error)
}

// CNCPack provides the CNC data tools.
type CNCPack struct {
	api    Getter
	logger *slog.Logger
}

// NewCNCPack creates the pack over an upstream client.
func NewCNCPack(api Getter, logger *slog.Logger) *CNCPack {
	if logger == nil {
		logger = slog.Default()
	}
	return &CNCPack{api: api, logger: logger.With("component", "cnc")}
}

// Register adds all CNC tools to the registry.
func (p *CNCPack) Register(registry *tools.Registry) error {
	defs := []tools.Tool{
		{
			Name:        "get_iot_cnc_data",
			Description: "Get CNC data records with optional filtering and pagination",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"equipment_id": {Type: "string", Description: "Filter results by specific equipment ID (optional)"},
					"limit":        {Type: "integer", Minimum: jsonPtr(1), Maximum: jsonPtr(1000), Description: "Number of records to return (default: 50, max: 1000)"},
					"offset":       {Type: "integer", Minimum: jsonPtr(0), Description: "Number of records to skip for pagination (default: 0)"},
				},
			},
			Handler: p.getCNCData,
		},
		{
			Name:        "get_iot_cnc_data_by_id",
			Description: "Get a specific CNC data record by its ID",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"cnc_data_id": {Type: "string", Description: "The ID of the CNC data record to retrieve"},
				},
				Required: []string{"cnc_data_id"},
			},
			Handler: p.getCNCDataByID,
		},
		{
			Name:        "get_iot_equipment_list",
			Description: "Get a list of unique equipment IDs from all CNC data records",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
			Handler: p.getEquipmentList,
		},
		{
			Name:        "search_cnc_data",
			Description: "Advanced search for CNC data with multiple filters",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"equipment_ids":       {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "List of equipment IDs to filter by"},
					"operation_mode":      {Type: "string", Enum: []any{"AUTO", "MANUAL"}, Description: "Filter by operation mode"},
					"has_alarm":           {Type: "boolean", Description: "Filter records with or without alarms"},
					"min_workpiece_count": {Type: "integer", Description: "Minimum workpiece count filter"},
					"date_from":           {Type: "string", Description: "Filter records from this date (YYYY-MM-DD format)"},
					"date_to":             {Type: "string", Description: "Filter records to this date (YYYY-MM-DD format)"},
					"limit":               {Type: "integer", Minimum: jsonPtr(1), Maximum: jsonPtr(1000), Description: "Number of records to return"},
					"offset":              {Type: "integer", Minimum: jsonPtr(0), Description: "Number of records to skip for pagination"},
				},
			},
			Handler: p.searchCNCData,
		},
		{
			Name:        "get_equipment_summary",
			Description: "Get summary statistics for specific equipment",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"equipment_id": {Type: "string", Description: "Equipment ID to get summary for"},
					"date_from":    {Type: "string", Description: "Start date for summary (YYYY-MM-DD format)"},
					"date_to":      {Type: "string", Description: "End date for summary (YYYY-MM-DD format)"},
				},
				Required: []string{"equipment_id"},
			},
			Handler: p.getEquipmentSummary,
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name, err)
		}
	}
	return nil
}

func (p *CNCPack) getCNCData(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params := map[string]string{}
	if id := stringArg(args, "equipment_id"); id != "" {
		params["equipment_id"] = id
	}
	if limit, ok := intArg(args, "limit"); ok {
		params["limit"] = strconv.Itoa(limit)
	}
	if offset, ok := intArg(args, "offset"); ok {
		params["offset"] = strconv.Itoa(offset)
	}

	msg, err := p.fetch(ctx, "get_iot_cnc_data", params)
	if err != nil {
		return nil, fmt.Errorf("Failed to get CNC data: %w", err)
	}

	data := listField(msg, "data")
	totalCount := countField(msg, "total_count", len(data))
	returnedCount := countField(msg, "returned_count", len(data))

	return jsonBlock(fmt.Sprintf("CNC Data Retrieved (%d of %d records)", returnedCount, totalCount), data)
}

func (p *CNCPack) getCNCDataByID(ctx context.Context, args map[string]any) (*tools.Result, error) {
	id := stringArg(args, "cnc_data_id")

	msg, err := p.fetch(ctx, "get_iot_cnc_data_by_id", map[string]string{"cnc_data_id": id})
	if err != nil {
		return nil, fmt.Errorf("Failed to get CNC data by ID %s: %w", id, err)
	}

	return jsonBlock(fmt.Sprintf("CNC Data Record (ID: %s)", id), msg["data"])
}

func (p *CNCPack) getEquipmentList(ctx context.Context, args map[string]any) (*tools.Result, error) {
	msg, err := p.fetch(ctx, "get_iot_equipment_list", nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to get equipment list: %w", err)
	}

	equipment := listField(msg, "data")
	count := countField(msg, "count", len(equipment))

	return jsonBlock(fmt.Sprintf("Equipment List (%d unique equipment IDs)", count), equipment)
}

func (p *CNCPack) searchCNCData(ctx context.Context, args map[string]any) (*tools.Result, error) {
	params := map[string]string{}

	if ids := stringListArg(args, "equipment_ids"); len(ids) > 0 {
		// The upstream filters on one equipment ID per call
		params["equipment_id"] = ids[0]
		if len(ids) > 1 {
			p.logger.Warn("multiple equipment IDs provided, using first one", "equipment_id", ids[0])
		}
	}
	if limit, ok := intArg(args, "limit"); ok {
		params["limit"] = strconv.Itoa(limit)
	}
	if offset, ok := intArg(args, "offset"); ok {
		params["offset"] = strconv.Itoa(offset)
	}

	msg, err := p.fetch(ctx, "get_iot_cnc_data", params)
	if err != nil {
		return nil, fmt.Errorf("Failed to search CNC data: %w", err)
	}

	filtered := applySearchFilters(listField(msg, "data"), args)
	return jsonBlock(fmt.Sprintf("Filtered CNC Data (%d records found)", len(filtered)), filtered)
}

func (p *CNCPack) getEquipmentSummary(ctx context.Context, args map[string]any) (*tools.Result, error) {
	equipmentID := stringArg(args, "equipment_id")

	msg, err := p.fetch(ctx, "get_iot_cnc_data", map[string]string{
		"equipment_id": equipmentID,
		"limit":        "1000",
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to get equipment summary for %s: %w", equipmentID, err)
	}

	summary := calculateSummary(listField(msg, "data"), args)
	return jsonBlock(fmt.Sprintf("Equipment Summary for %s", equipmentID), summary)
}

// fetch performs an upstream call and unwraps the Frappe response format.
// A response without the message wrapper is treated as the message itself.
func (p *CNCPack) fetch(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	p.logger.Info("upstream fetch", "endpoint", endpoint, "params", params)

	resp, err := p.api.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	msg := resp
	if wrapped, ok := resp["message"].(map[string]any); ok {
		msg = wrapped
	}

	if success, _ := msg["success"].(bool); !success {
		errMsg := "Unknown error"
		if s, ok := msg["message"].(string); ok && s != "" {
			errMsg = s
		}
		return nil, fmt.Errorf("API returned error: %s", errMsg)
	}
	return msg, nil
}

// applySearchFilters applies the client-side record filters the upstream
// cannot express.
func applySearchFilters(data []any, filters map[string]any) []any {
	filtered := data

	if mode := stringArg(filters, "operation_mode"); mode != "" {
		filtered = keep(filtered, func(rec map[string]any) bool {
			return rec["operation_mode"] == mode
		})
	}

	if hasAlarm, ok := filters["has_alarm"].(bool); ok {
		filtered = keep(filtered, func(rec map[string]any) bool {
			_, alarmed := rec["alarm_code"]
			alarmed = alarmed && rec["alarm_code"] != nil
			return alarmed == hasAlarm
		})
	}

	if minCount, ok := intArg(filters, "min_workpiece_count"); ok {
		filtered = keep(filtered, func(rec map[string]any) bool {
			return int(floatField(rec, "workpiece_count")) >= minCount
		})
	}

	return filtered
}

func keep(data []any, pred func(map[string]any) bool) []any {
	out := make([]any, 0, len(data))
	for _, item := range data {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if pred(rec) {
			out = append(out, item)
		}
	}
	return out
}

// calculateSummary aggregates equipment records into summary statistics.
func calculateSummary(data []any, filters map[string]any) map[string]any {
	if len(data) == 0 {
		return map[string]any{"error": "No data available for this equipment"}
	}

	totalRecords := len(data)
	totalWorkpieces := 0
	alarmCount := 0
	modes := map[string]int{}
	loads := map[string][]float64{"spindle": nil, "x_axis": nil, "y_axis": nil, "z_axis": nil}

	equipmentID := "Unknown"
	for i, item := range data {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if i == 0 {
			if id := stringArg(rec, "equipment_id"); id != "" {
				equipmentID = id
			}
		}

		totalWorkpieces += int(floatField(rec, "workpiece_count"))
		if code, ok := rec["alarm_code"]; ok && code != nil {
			alarmCount++
		}

		mode := "Unknown"
		if m := stringArg(rec, "operation_mode"); m != "" {
			mode = m
		}
		modes[mode]++

		for axis := range loads {
			if v, ok := percentField(rec, axis+"_load"); ok {
				loads[axis] = append(loads[axis], v)
			}
		}
	}

	summary := map[string]any{
		"equipment_id":                  equipmentID,
		"total_records":                 totalRecords,
		"total_workpieces":              totalWorkpieces,
		"average_workpieces_per_record": float64(totalWorkpieces) / float64(totalRecords),
		"operation_mode_distribution":   modes,
		"alarm_percentage":              fmt.Sprintf("%.1f%%", float64(alarmCount)/float64(totalRecords)*100),
		"date_range": map[string]any{
			"from": stringArgOr(filters, "date_from", "Not specified"),
			"to":   stringArgOr(filters, "date_to", "Not specified"),
		},
	}

	for axis, values := range loads {
		key := "avg_" + axis + "_load"
		if len(values) == 0 {
			summary[key] = "N/A"
			continue
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		summary[key] = fmt.Sprintf("%.1f%%", sum/float64(len(values)))
	}

	return summary
}

// jsonBlock wraps a value as a labeled fenced JSON text result.
func jsonBlock(label string, v any) (*tools.Result, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return tools.TextResult(fmt.Sprintf("%s:\n```json\n%s\n```", label, data)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func stringArgOr(args map[string]any, key, fallback string) string {
	if s := stringArg(args, key); s != "" {
		return s
	}
	return fallback
}

func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// intArg reads a numeric argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func floatField(rec map[string]any, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// percentField parses load values like "75%" or bare numbers.
func percentField(rec map[string]any, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case string:
		if v == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func listField(msg map[string]any, key string) []any {
	list, _ := msg[key].([]any)
	return list
}

func countField(msg map[string]any, key string, fallback int) int {
	if n, ok := intArg(msg, key); ok {
		return n
	}
	return fallback
}

func jsonPtr(v float64) *float64 {
	return &v
}
