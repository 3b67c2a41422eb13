package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type SnapshotStatus int

const (
	SnapshotDeleted SnapshotStatus = 0
	SnapshotActive  SnapshotStatus = 1
)

// Tags map a key to a scalar or to an array of scalars.
type Tags map[string]any

// Snapshot is a named, taggable pointer to one (project, version) pair.
type Snapshot struct {
	ID             string         `json:"uuid"`
	Owner          string         `json:"owner"`
	ProjectID      string         `json:"projectId"`
	ProjectVersion int64          `json:"projectVersion"`
	ProjectSHA     string         `json:"projectSha"`
	Message        string         `json:"message"`
	Type           string         `json:"type"`
	Tags           Tags           `json:"tags"`
	Keywords       []string       `json:"keywords"`
	Status         SnapshotStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsPublic reports whether the snapshot exposes its version in the commons.
func (s *Snapshot) IsPublic() bool {
	if s.Status != SnapshotActive || s.Type != SnapshotTypePublish {
		return false
	}
	v, ok := s.Tags[CommonsTag]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// SnapshotQuery filters active snapshots. Zero values mean "no filter".
type SnapshotQuery struct {
	ProjectID string
	Version   *int64
	Owner     string
	Type      string
	Tags      Tags
	Keywords  []string
}

// NormalizeKeywords trims, lower-cases and de-duplicates keywords keeping
// first-seen order. Empty keywords are dropped.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		normalized = append(normalized, kw)
	}
	return normalized
}

// Validate checks that every tag value is a scalar or an array of scalars.
func (t Tags) Validate() error {
	for key, value := range t {
		if key == "" {
			return InvalidInputError{Reason: "empty tag key"}
		}
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				if !isScalar(item) {
					return InvalidInputError{Reason: fmt.Sprintf("tag %s holds a nested value", key)}
				}
			}
		case []string:
		default:
			if !isScalar(v) {
				return InvalidInputError{Reason: fmt.Sprintf("tag %s must be a scalar or an array", key)}
			}
		}
	}
	return nil
}

// Canonical returns the JSON encoding each tag value is stored and matched under.
func (t Tags) Canonical() (map[string]string, error) {
	out := make(map[string]string, len(t))
	for key, value := range t {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, InvalidInputError{Reason: fmt.Sprintf("tag %s: %v", key, err)}
		}
		out[key] = string(encoded)
	}
	return out, nil
}

// Clone returns a shallow copy that can be modified independently.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Stringify converts every non-string value to the string a JavaScript
// client would produce for it: arrays join their elements with commas.
func (t Tags) Stringify() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		if v == nil {
			out[k] = "null"
			continue
		}
		out[k] = stringValue(v)
	}
	return out
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return formatNumber(value)
	case float32:
		return formatNumber(float64(value))
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case json.Number:
		if f, err := value.Float64(); err == nil {
			return formatNumber(f)
		}
		return value.String()
	case []string:
		return strings.Join(value, ",")
	case []any:
		parts := make([]string, len(value))
		for i, elem := range value {
			parts[i] = stringValue(elem)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(value)
	}
}

// formatNumber prints plain decimals between 1e-6 and 1e21 and a compact
// exponent form outside that range.
func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 0) {
		if f > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	formatted := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exponent, _ := strings.Cut(formatted, "e")
	sign := exponent[:1]
	digits := strings.TrimLeft(exponent[1:], "0")
	return mantissa + "e" + sign + digits
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}
