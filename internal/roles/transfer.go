package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/scrum/internal/models"
)

// RoleSpec is the portable form of a role: a name and permission kinds.
type RoleSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// Format is a role list encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file name.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Export returns the project's roles as specs, sorted by name with sorted
// permission kinds.
func (r *Registry) Export(ctx context.Context, projectID string) ([]RoleSpec, error) {
	roles, err := r.store.ListRoles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("export roles: %w", err)
	}
	specs := make([]RoleSpec, 0, len(roles))
	for _, role := range roles {
		perms := make([]string, 0, len(role.Permissions))
		for _, p := range models.SortPermissions(role.Permissions) {
			perms = append(perms, string(p))
		}
		specs = append(specs, RoleSpec{Name: role.Name, Permissions: perms})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Created []*models.Role
	Skipped []string // names that already existed
}

// Import creates every role whose name is not taken yet. All specs are
// validated before anything is written.
func (r *Registry) Import(ctx context.Context, projectID string, specs []RoleSpec) (*ImportResult, error) {
	parsed := make([][]models.Permission, len(specs))
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("import roles: entry %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("import roles: duplicate role %q", name)
		}
		seen[name] = true

		for _, raw := range spec.Permissions {
			p, err := models.ParsePermission(raw)
			if err != nil {
				return nil, fmt.Errorf("import roles: role %q: %w", name, err)
			}
			parsed[i] = append(parsed[i], p)
		}
		if err := validateRolePermissions(parsed[i]); err != nil {
			return nil, fmt.Errorf("import roles: role %q: %w", name, err)
		}
	}

	existing, err := r.store.ListRoles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("import roles: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, role := range existing {
		taken[role.Name] = true
	}

	result := &ImportResult{}
	for i, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if taken[name] {
			result.Skipped = append(result.Skipped, name)
			continue
		}
		role, err := r.CreateRole(ctx, projectID, name, parsed[i])
		if err != nil {
			return nil, fmt.Errorf("import roles: %w", err)
		}
		result.Created = append(result.Created, role)
	}
	return result, nil
}

// EncodeRoles serializes a role list.
func EncodeRoles(specs []RoleSpec, format Format) ([]byte, error) {
	if specs == nil {
		specs = []RoleSpec{}
	}
	for i := range specs {
		if specs[i].Permissions == nil {
			specs[i].Permissions = []string{}
		}
	}
	switch format {
	case FormatYAML:
		return yaml.Marshal(specs)
	case FormatJSON, "":
		data, err := json.MarshalIndent(specs, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown role list format: %q", format)
	}
}

// DecodeRoles parses a role list. JSON input may carry comments and
// trailing commas.
func DecodeRoles(data []byte, format Format) ([]RoleSpec, error) {
	var specs []RoleSpec
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &specs); err != nil {
			return nil, fmt.Errorf("parse role list: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(jsonc.ToJSON(data), &specs); err != nil {
			return nil, fmt.Errorf("parse role list: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown role list format: %q", format)
	}
	return specs, nil
}
