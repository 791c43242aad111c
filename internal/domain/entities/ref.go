package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ref is a reference to another record (patient, doctor, clinic, service).
// The clinic API sends references either as a bare id or as an embedded
// object; Ref accepts both and always marshals back to the bare id.
type Ref struct {
	ID   string
	Name string
}

// RefOf builds a Ref from any supported identifier shape. Unsupported shapes yield a zero Ref.
func RefOf(v any) Ref {
	id, _ := NormalizeID(v)
	return Ref{ID: id, Name: displayName(v)}
}

// IsZero reports whether the reference carries no id
func (r Ref) IsZero() bool {
	return r.ID == ""
}

func (r Ref) String() string {
	return r.ID
}

// Display prefers the embedded name and falls back to the id
func (r Ref) Display() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// MarshalJSON encodes the bare id
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts a string, a number, null, or an object holding _id, id or value
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("invalid reference: %w", err)
	}

	id, ok := NormalizeID(raw)
	if !ok {
		if _, isObject := raw.(map[string]any); isObject {
			return fmt.Errorf("reference object has no _id, id or value")
		}
		if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
			*r = Ref{}
			return nil
		}
		return fmt.Errorf("unsupported reference shape %s", string(data))
	}
	*r = Ref{ID: id, Name: displayName(raw)}
	return nil
}

// NormalizeID reduces every identifier shape the clinic API and its callers
// use to the bare string id: "X", {_id: "X"}, {id: "X"}, {value: "X"},
// {"$oid": "X"}, numbers, Ref values, and raw JSON for any of these.
func NormalizeID(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		trimmed := strings.TrimSpace(id)
		return trimmed, trimmed != ""
	case *string:
		if id == nil {
			return "", false
		}
		return NormalizeID(*id)
	case Ref:
		return id.ID, id.ID != ""
	case *Ref:
		if id == nil {
			return "", false
		}
		return id.ID, id.ID != ""
	case json.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case json.RawMessage:
		return normalizeRaw(id)
	case []byte:
		return normalizeRaw(id)
	case map[string]string:
		for _, key := range idKeys {
			if s, ok := NormalizeID(id[key]); ok {
				return s, true
			}
		}
		return "", false
	case map[string]any:
		for _, key := range idKeys {
			if nested, exists := id[key]; exists {
				if s, ok := NormalizeID(nested); ok {
					return s, true
				}
			}
		}
		return "", false
	default:
		return "", false
	}
}

var idKeys = []string{"_id", "id", "value", "$oid"}

func normalizeRaw(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return "", false
	}
	return NormalizeID(raw)
}

func displayName(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if name, ok := obj["name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if name, ok := obj["fullName"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	first, _ := obj["firstName"].(string)
	last, _ := obj["lastName"].(string)
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
