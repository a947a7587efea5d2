// Package schema holds the declarative form descriptors for vendors,
// tenders and purchase orders, and renders records against them: role
// based field lookup, option normalization, badges, cards and record
// validation.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"procurement-api/internal/apperr"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var embedded embed.FS

// Field roles.
const (
	RoleTitle       = "title"
	RoleSubtitle    = "subtitle"
	RoleDescription = "description"
	RoleStatus      = "status"
	RoleBadge       = "badge"
	RoleAvatar      = "avatar"
	RoleRating      = "rating"
	RoleEmail       = "email"
	RolePhone       = "phone"
	RoleLocation    = "location"
	RoleAmount      = "amount"
	RoleDate        = "date"
	RoleCode        = "code"
)

var knownRoles = map[string]bool{
	RoleTitle: true, RoleSubtitle: true, RoleDescription: true, RoleStatus: true,
	RoleBadge: true, RoleAvatar: true, RoleRating: true, RoleEmail: true,
	RolePhone: true, RoleLocation: true, RoleAmount: true, RoleDate: true, RoleCode: true,
}

type Option struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Rules are the value constraints checked by ValidateRecord.
type Rules struct {
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

type Field struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Label       string   `yaml:"label" json:"label"`
	Component   string   `yaml:"component" json:"component"`
	Role        string   `yaml:"role,omitempty" json:"role,omitempty"`
	Section     string   `yaml:"section,omitempty" json:"section,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Options     []Option `yaml:"options,omitempty" json:"options,omitempty"`
	Validation  *Rules   `yaml:"validation,omitempty" json:"validation,omitempty"`
	Placeholder string   `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	ListVisible bool     `yaml:"list_visible,omitempty" json:"list_visible,omitempty"`

	pattern *regexp.Regexp
}

type Section struct {
	ID      string `yaml:"id" json:"id"`
	Title   string `yaml:"title" json:"title"`
	Columns int    `yaml:"columns,omitempty" json:"columns,omitempty"`
}

type CardConfig struct {
	MaxBadges   int    `yaml:"max_badges" json:"max_badges"`
	DefaultView string `yaml:"default_view" json:"default_view"`
}

// FormSchema describes one entity. Entity is the store collection whose
// records the schema renders.
type FormSchema struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Entity      string     `yaml:"entity" json:"entity"`
	Fields      []Field    `yaml:"fields" json:"fields"`
	Sections    []Section  `yaml:"sections,omitempty" json:"sections,omitempty"`
	Card        CardConfig `yaml:"card" json:"card"`
}

// Registry is the set of loaded schemas, keyed by id.
type Registry struct {
	schemas map[string]*FormSchema
}

// Load reads every *.yaml file from dir, or the embedded schemas when dir
// is empty.
func Load(dir string) (*Registry, error) {
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(embedded, "schemas")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}
	return LoadFS(fsys)
}

// LoadFS reads every *.yaml file at the root of fsys.
func LoadFS(fsys fs.FS) (*Registry, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no schema files found")
	}
	r := &Registry{schemas: make(map[string]*FormSchema, len(names))}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := r.schemas[s.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate schema id %q", name, s.ID)
		}
		r.schemas[s.ID] = s
	}
	return r, nil
}

// Parse decodes and checks one YAML schema document.
func Parse(data []byte) (*FormSchema, error) {
	var s FormSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *FormSchema) prepare() error {
	if s.ID == "" {
		return fmt.Errorf("schema id is required")
	}
	if s.Entity == "" {
		s.Entity = s.ID
	}
	if s.Card.DefaultView == "" {
		s.Card.DefaultView = string(ViewGrid)
	}
	if _, err := parseView(s.Card.DefaultView); err != nil {
		return fmt.Errorf("schema %s: %w", s.ID, err)
	}
	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("schema %s: field %d has no name", s.ID, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", s.ID, f.Name)
		}
		seen[f.Name] = true
		if f.ID == "" {
			f.ID = f.Name
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		if f.Role != "" && !knownRoles[f.Role] {
			return fmt.Errorf("schema %s: field %s has unknown role %q", s.ID, f.Name, f.Role)
		}
		if f.Validation != nil && f.Validation.Pattern != "" {
			re, err := regexp.Compile(f.Validation.Pattern)
			if err != nil {
				return fmt.Errorf("schema %s: field %s: %w", s.ID, f.Name, err)
			}
			f.pattern = re
		}
	}
	return nil
}

// List returns the schemas sorted by id.
func (r *Registry) List() []*FormSchema {
	out := make([]*FormSchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Get(id string) (*FormSchema, error) {
	s, ok := r.schemas[strings.TrimSpace(id)]
	if !ok {
		return nil, apperr.NotFound("schema", id)
	}
	return s, nil
}
