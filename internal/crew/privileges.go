package crew

import (
	"fmt"
	"strings"

	"habitat/internal/model"
)

var knownPrivileges = map[model.Privilege]struct{}{
	model.PrivilegeRead:     {},
	model.PrivilegeWrite:    {},
	model.PrivilegeResearch: {},
	model.PrivilegeMedical:  {},
	model.PrivilegeAdmin:    {},
}

// NormalizePrivileges lowercases, trims and de-duplicates values, keeping
// first-seen order. Unknown privileges are rejected.
func NormalizePrivileges(values []model.Privilege) ([]model.Privilege, error) {
	if len(values) == 0 {
		return []model.Privilege{}, nil
	}
	seen := make(map[model.Privilege]struct{}, len(values))
	out := make([]model.Privilege, 0, len(values))
	for _, v := range values {
		p := model.Privilege(strings.ToLower(strings.TrimSpace(string(v))))
		if p == "" {
			continue
		}
		if _, ok := knownPrivileges[p]; !ok {
			return nil, fmt.Errorf("%w: unknown privilege %q", ErrInvalid, v)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func normalizeReminders(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func FormatPrivileges(ps []model.Privilege) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
