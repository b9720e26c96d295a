package providers

import (
	"encoding/json"
	"fmt"

	"stockd/core"
)

// StockFileToDocument flattens a marketplace file into a search document.
// Null fields are skipped, booleans become "1"/"0" and the category is
// exposed as category_id and category_name.
func StockFileToDocument(file map[string]any) (*core.Document, error) {
	id, err := toInt64(file["id"])
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: file without a valid id: %v", core.ErrStockResponse, file["id"])
	}

	doc := core.NewDocument(id)
	doc.SetCustomAttribute(core.AttributeIDFieldName, "id")

	for key, value := range file {
		if value == nil {
			continue
		}
		doc.SetCustomAttribute(key, normalizeValue(value))
	}

	if raw, ok := file[core.AttributeCategory]; ok && raw != nil {
		category, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: file %d has a malformed category", core.ErrStockResponse, id)
		}
		doc.SetCustomAttribute(core.AttributeCategory, normalizeValue(category))
		doc.SetCustomAttribute(core.AttributeCategoryID, normalizeValue(category["id"]))
		doc.SetCustomAttribute(core.AttributeCategoryName, normalizeValue(category["name"]))
	}

	return doc, nil
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected id type %T", value)
	}
}
