package publisher

import (
	"encoding/json"
	"strconv"
	"strings"
)

// listSeparator joins scalar list values such as categories.
const listSeparator = "; "

// FlattenPayload converts a decoded JSON object into cell strings.
// Numbers keep their JSON text when decoded with UseNumber, lists of
// scalars are joined with "; " and nested values become compact JSON.
func FlattenPayload(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		out[key] = formatValue(value)
	}
	return out
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				return compactJSON(v)
			}
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, listSeparator)
	default:
		return compactJSON(v)
	}
}

func compactJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}
