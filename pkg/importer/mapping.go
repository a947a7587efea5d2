package importer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mapping/vendors.yaml
var defaultMapping []byte

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version  int                    `yaml:"version"`
	Defaults map[string]string      `yaml:"defaults"`
	Sheets   map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps the header row of one worksheet onto vendor fields.
// Aliases are keyed by the canonical header used in Columns.
type SheetConfig struct {
	Aliases map[string][]string     `yaml:"aliases"`
	Columns map[string]ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

// Column types understood by the importer.
const (
	TypeText    = "text"
	TypeEmail   = "email"
	TypeTags    = "tags"
	TypeDecimal = "decimal"
)

var knownFields = map[string]bool{
	"code": true, "name": true, "email": true, "phone": true,
	"contact_person": true, "categories": true, "tax_id": true, "website": true,
	"rating": true, "payment_terms": true, "notes": true,
	"address.street": true, "address.city": true, "address.state": true,
	"address.postal_code": true, "address.country": true,
}

var knownTypes = map[string]bool{TypeText: true, TypeEmail: true, TypeTags: true, TypeDecimal: true}

// DefaultMapping returns the built-in vendor mapping.
func DefaultMapping() *MappingConfig {
	m, err := ParseMapping(defaultMapping)
	if err != nil {
		panic(fmt.Sprintf("embedded vendor mapping: %v", err))
	}
	return m
}

// LoadMapping reads a mapping file. An empty path selects the built-in mapping.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes and checks a YAML mapping document.
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(m.Sheets) == 0 {
		return nil, fmt.Errorf("mapping declares no sheets")
	}
	for name, sheet := range m.Sheets {
		if len(sheet.Columns) == 0 {
			return nil, fmt.Errorf("sheet %q declares no columns", name)
		}
		for header, col := range sheet.Columns {
			if !knownFields[col.Field] {
				return nil, fmt.Errorf("sheet %q column %q: unknown field %q", name, header, col.Field)
			}
			if col.Type == "" {
				col.Type = TypeText
				sheet.Columns[header] = col
			}
			if !knownTypes[col.Type] {
				return nil, fmt.Errorf("sheet %q column %q: unknown type %q", name, header, col.Type)
			}
		}
		for header := range sheet.Aliases {
			if _, ok := sheet.Columns[header]; !ok {
				return nil, fmt.Errorf("sheet %q: alias target %q is not a column", name, header)
			}
		}
	}
	for field := range m.Defaults {
		if !knownFields[field] {
			return nil, fmt.Errorf("default for unknown field %q", field)
		}
	}
	return &m, nil
}

// sheet finds the configuration for a worksheet, ignoring case.
func (m *MappingConfig) sheet(name string) (SheetConfig, bool) {
	if cfg, ok := m.Sheets[name]; ok {
		return cfg, true
	}
	for key, cfg := range m.Sheets {
		if strings.EqualFold(key, name) {
			return cfg, true
		}
	}
	return SheetConfig{}, false
}

// resolve maps a normalized header (or alias) to its column.
func (c SheetConfig) resolve() map[string]ColumnConfig {
	out := make(map[string]ColumnConfig, len(c.Columns))
	for header, col := range c.Columns {
		out[normalizeHeader(header)] = col
		for _, alias := range c.Aliases[header] {
			out[normalizeHeader(alias)] = col
		}
	}
	return out
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}
