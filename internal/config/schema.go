package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/entity"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/schema"
)

// ModulesConfig is the schema layer of configuration: every entity the
// server manages, declared in YAML and editable through the schema API.
type ModulesConfig struct {
	Modules []ModuleConfig `yaml:"modules"`
}

// ModuleConfig declares one entity: its fields, relations and the reserved
// columns it opts into. Field IDs are stable numeric identifiers assigned
// once; the schema diff matches fields across edits by ID, so reusing or
// renumbering IDs corrupts rename detection.
type ModuleConfig struct {
	Name       string           `yaml:"name"`
	PKField    string           `yaml:"pk_field"`
	TitleField string           `yaml:"title_field"`
	SlugSource string           `yaml:"slug_source"`
	Fields     []FieldConfig    `yaml:"fields"`
	Relations  []RelationConfig `yaml:"relations"`

	UseActive  bool `yaml:"use_active"`
	UseArchive bool `yaml:"use_archive"`
	UseSort    bool `yaml:"use_sort"`
	UseSlug    bool `yaml:"use_slug"`
	UseUploads bool `yaml:"use_uploads"`
}

// FieldConfig is one column-backed field declaration.
type FieldConfig struct {
	ID      int      `yaml:"id"`
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Length  int      `yaml:"length"`
	Values  []string `yaml:"values"` // enum members
	Default string   `yaml:"default"`
}

// RelationConfig is one relation-bearing field declaration.
type RelationConfig struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Module      string `yaml:"module"`
	Cardinality string `yaml:"cardinality"` // "n:1" | "1:n" | "n:n"
}

// LoadModules reads and validates the module schema YAML.
func LoadModules(path string) (*ModulesConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules file %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	cfg := ModulesConfig{}
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse modules file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("modules file %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks cross-module consistency: unique module names, known
// field types, valid relation targets.
func (c *ModulesConfig) Validate() error {
	names := make(map[string]struct{}, len(c.Modules))
	for i := range c.Modules {
		m := &c.Modules[i]
		m.normalize()
		if m.Name == "" {
			return fmt.Errorf("module %d: name is required", i)
		}
		if _, dup := names[m.Name]; dup {
			return fmt.Errorf("duplicate module %q", m.Name)
		}
		names[m.Name] = struct{}{}

		ids := make(map[int]struct{}, len(m.Fields)+len(m.Relations))
		for _, f := range m.Fields {
			if f.Name == "" {
				return fmt.Errorf("module %q: field with empty name", m.Name)
			}
			if !schema.KnownType(schema.TypeToken(f.Type)) {
				return fmt.Errorf("module %q field %q: unknown type %q", m.Name, f.Name, f.Type)
			}
			if f.ID == 0 {
				return fmt.Errorf("module %q field %q: id is required", m.Name, f.Name)
			}
			if _, dup := ids[f.ID]; dup {
				return fmt.Errorf("module %q field %q: duplicate id %d", m.Name, f.Name, f.ID)
			}
			ids[f.ID] = struct{}{}
		}
		for _, r := range m.Relations {
			if r.Name == "" || r.Module == "" {
				return fmt.Errorf("module %q: relation needs a name and a target module", m.Name)
			}
			if r.ID == 0 {
				return fmt.Errorf("module %q relation %q: id is required", m.Name, r.Name)
			}
			if _, dup := ids[r.ID]; dup {
				return fmt.Errorf("module %q relation %q: duplicate id %d", m.Name, r.Name, r.ID)
			}
			ids[r.ID] = struct{}{}
		}
	}

	// Relation targets must resolve after all modules are known.
	for _, m := range c.Modules {
		for _, r := range m.Relations {
			if _, ok := names[r.Module]; !ok {
				return fmt.Errorf("module %q relation %q: unknown target module %q", m.Name, r.Name, r.Module)
			}
		}
	}
	return nil
}

func (m *ModuleConfig) normalize() {
	m.Name = strings.TrimSpace(m.Name)
	if m.PKField == "" {
		m.PKField = "id"
	}
	for i := range m.Fields {
		m.Fields[i].Name = strings.TrimSpace(m.Fields[i].Name)
		m.Fields[i].Type = strings.ToLower(strings.TrimSpace(m.Fields[i].Type))
	}
	for i := range m.Relations {
		m.Relations[i].Name = strings.TrimSpace(m.Relations[i].Name)
		m.Relations[i].Module = strings.TrimSpace(m.Relations[i].Module)
	}
}

// Module returns the named module config, nil when absent.
func (c *ModulesConfig) Module(name string) *ModuleConfig {
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i]
		}
	}
	return nil
}

// Definition maps the module config onto an entity definition.
func (m *ModuleConfig) Definition() entity.Definition {
	fields := make([]entity.Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		var def interface{}
		if f.Default != "" {
			def = f.Default
		}
		fields = append(fields, entity.Field{ID: f.ID, Name: f.Name, Default: def})
	}
	return entity.Definition{
		Name:       m.Name,
		PKField:    m.PKField,
		TitleField: m.TitleField,
		SlugSource: m.SlugSource,
		Fields:     fields,
		UseActive:  m.UseActive,
		UseArchive: m.UseArchive,
		UseSort:    m.UseSort,
		UseSlug:    m.UseSlug,
		UseUploads: m.UseUploads,
	}
}

// FieldDefs maps the plain fields onto diff-engine snapshots.
func (m *ModuleConfig) FieldDefs() []schema.FieldDef {
	out := make([]schema.FieldDef, 0, len(m.Fields))
	for _, f := range m.Fields {
		out = append(out, schema.FieldDef{
			ID:      f.ID,
			Name:    f.Name,
			Type:    schema.TypeToken(f.Type),
			Length:  f.Length,
			Values:  f.Values,
			Default: f.Default,
		})
	}
	return out
}

// RelationFields maps the relation declarations onto diff-engine snapshots.
func (m *ModuleConfig) RelationFields() []schema.RelationField {
	out := make([]schema.RelationField, 0, len(m.Relations))
	for _, r := range m.Relations {
		out = append(out, schema.RelationField{
			ID:   r.ID,
			Name: r.Name,
			Config: schema.RelationConfig{
				Module:      r.Module,
				Cardinality: schema.ParseCardinality(r.Cardinality),
			},
		})
	}
	return out
}
