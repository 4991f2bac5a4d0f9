package accounts

import (
	"fmt"
	"strings"
	"time"
)

const (
	CollectionUsers = "users"
	CollectionTrail = "adminTrail"
)

// timestampLayout matches the millisecond ISO-8601 strings the trail has
// always carried.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Document is a schemaless JSON-like node of the directory store.
type Document = map[string]any

// UserPath returns the directory path of an account record.
func UserPath(id string) string {
	return CollectionUsers + "/" + id
}

// SplitPath splits "collection" or "collection/key" into its parts.
func SplitPath(path string) (collection, key string, err error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return "", "", NewError(ErrInvalidPath, map[string]any{"path": path})
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		return "", "", NewError(ErrInvalidPath, map[string]any{"path": path})
	}
	for _, part := range parts {
		if part == "" {
			return "", "", NewError(ErrInvalidPath, map[string]any{"path": path})
		}
	}

	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

// CloneDocument deep copies nested documents and slices so callers can never
// mutate store state through a returned value.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return CloneDocument(value)
	case Permissions:
		return map[string]any(value.Clone())
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	case []string:
		return append([]string(nil), value...)
	default:
		return value
	}
}

// MergeDocument applies a shallow merge of partial onto base. A nil value in
// partial removes the key.
func MergeDocument(base, partial Document) Document {
	out := CloneDocument(base)
	if out == nil {
		out = Document{}
	}
	for k, v := range partial {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(v any) *time.Time {
	switch value := v.(type) {
	case time.Time:
		if value.IsZero() {
			return nil
		}
		return &value
	case *time.Time:
		return value
	case string:
		if value == "" {
			return nil
		}
		for _, layout := range []string{timestampLayout, time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, value); err == nil {
				return &parsed
			}
		}
	case float64:
		// epoch milliseconds
		parsed := time.UnixMilli(int64(value)).UTC()
		return &parsed
	case int64:
		parsed := time.UnixMilli(value).UTC()
		return &parsed
	}
	return nil
}

func asString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

// truthy follows loose JSON truthiness: zero values, empty strings and nil
// are false, containers are always true.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case int:
		return value != 0
	case int32:
		return value != 0
	case int64:
		return value != 0
	case float32:
		return value != 0
	case float64:
		return value != 0
	default:
		return true
	}
}

func asMap(v any) map[string]any {
	switch value := v.(type) {
	case map[string]any:
		return value
	case Permissions:
		return map[string]any(value)
	default:
		return nil
	}
}
