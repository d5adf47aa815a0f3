package naming

import (
	"fmt"

	"github.com/fixturesnap/fixturesnap/internal/config"
)

// Resolver assigns fixture keys to rows. It performs no deduplication:
// uniqueness comes from the caller's monotonically increasing per-table index
// and from naming rules being injective. Duplicate-key handling is the
// builder's responsibility.
type Resolver struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve picks the key for one row: a registered rule for the table wins,
// then a non-empty name column, then "<table>_<index>".
func (r *Resolver) Resolve(table string, attrs map[string]interface{}, index int) string {
	padded := PadIndex(index)

	if rule := r.cfg.NamingRuleFor(table); rule != nil {
		return fmt.Sprintf("%v", rule(attrs, padded))
	}

	if name := derivableName(attrs); name != "" {
		return name
	}

	return fmt.Sprintf("%s_%s", table, padded)
}

// PadIndex zero-pads a fallback index to at least 3 digits.
func PadIndex(index int) string {
	return fmt.Sprintf("%03d", index)
}

func derivableName(attrs map[string]interface{}) string {
	raw, ok := attrs["name"]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
