// Package registry assembles the configured entities into live accessors.
// It owns the mapping from module name to table accessor and from relation
// field to join-table manager, and applies schema edits as a unit: column
// DDL first, then relation-table lifecycle, then accessor rebuild.
package registry

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/config"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/database"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/entity"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/relation"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/schema"
	"go.uber.org/zap"
)

// Registry is the live view of the configured modules. Reads vastly
// outnumber schema edits, so a single RWMutex guards the maps.
type Registry struct {
	conn   *database.Conn
	logger *zap.Logger

	mu        sync.RWMutex
	cfg       *config.ModulesConfig
	path      string
	models    map[string]*entity.Model
	relations map[string]map[string]*relation.Relation // module → field → manager
}

// New builds accessors for every configured module. Path is where edited
// module configuration is persisted back; empty disables persistence.
func New(conn *database.Conn, cfg *config.ModulesConfig, path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		conn:      conn,
		logger:    logger,
		cfg:       cfg,
		path:      path,
		models:    make(map[string]*entity.Model, len(cfg.Modules)),
		relations: make(map[string]map[string]*relation.Relation, len(cfg.Modules)),
	}

	for i := range cfg.Modules {
		m := &cfg.Modules[i]
		model, err := entity.New(conn, m.Definition(), logger)
		if err != nil {
			return nil, err
		}
		r.models[m.Name] = model
	}
	// Relations resolve after every model exists, targets may come later in
	// the file.
	for i := range cfg.Modules {
		if err := r.buildRelations(&cfg.Modules[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) buildRelations(m *config.ModuleConfig) error {
	byField := make(map[string]*relation.Relation, len(m.Relations))
	for _, rc := range m.Relations {
		dep := r.models[m.Name]
		indep := r.models[rc.Module]
		if indep == nil {
			return fmt.Errorf("module %q relation %q: unknown target %q", m.Name, rc.Name, rc.Module)
		}
		rel, err := relation.New(dep, indep, schema.ParseCardinality(rc.Cardinality), r.logger)
		if err != nil {
			return err
		}
		byField[rc.Name] = rel
	}
	r.relations[m.Name] = byField
	return nil
}

// Model returns the accessor for a module, nil when unknown.
func (r *Registry) Model(name string) *entity.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[name]
}

// Relation returns the join-table manager for one relation field of a
// module, nil when unknown.
func (r *Registry) Relation(module, field string) *relation.Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relations[module][field]
}

// Relations returns every relation manager of a module keyed by field.
func (r *Registry) Relations(module string) map[string]*relation.Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*relation.Relation, len(r.relations[module]))
	for field, rel := range r.relations[module] {
		out[field] = rel
	}
	return out
}

// ModuleNames returns the configured module names in file order.
func (r *Registry) ModuleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.cfg.Modules))
	for _, m := range r.cfg.Modules {
		names = append(names, m.Name)
	}
	return names
}

// ModuleConfig returns a copy of one module's configuration, nil when
// unknown.
func (r *Registry) ModuleConfig(name string) *config.ModuleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.cfg.Module(name)
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// CreateModule creates the table for a new module config and registers it.
func (r *Registry) CreateModule(mc config.ModuleConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.Module(mc.Name) != nil {
		return fmt.Errorf("module %q already exists", mc.Name)
	}
	probe := config.ModulesConfig{Modules: append(r.snapshotModules(), mc)}
	if err := probe.Validate(); err != nil {
		return err
	}

	model, err := entity.New(r.conn, mc.Definition(), r.logger)
	if err != nil {
		return err
	}
	ops := make([]schema.ColumnOp, 0, len(mc.Fields))
	for _, f := range mc.FieldDefs() {
		ops = append(ops, schema.ColumnOp{
			Kind: schema.OpCreate, Field: f.Name,
			Type: f.Type, Length: f.Length, Values: f.Values, Default: f.Default,
		})
	}
	if _, err := model.AlterTable(ops); err != nil {
		return err
	}

	r.cfg.Modules = append(r.cfg.Modules, mc)
	r.models[mc.Name] = model
	if err := r.buildRelations(r.cfg.Module(mc.Name)); err != nil {
		return err
	}
	for _, rel := range r.relations[mc.Name] {
		if err := rel.CreateTable(); err != nil {
			return err
		}
	}
	return r.persist()
}

// UpdateModule applies an edited module config: column DDL from the field
// diff, then relation-table lifecycle from the relation diff, then the
// rename if the module itself was renamed, then accessor rebuild. Errors
// mid-sequence leave earlier steps applied; the diff is re-runnable since
// every table action is guarded by existence checks.
func (r *Registry) UpdateModule(name string, updated config.ModuleConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.cfg.Module(name)
	if current == nil {
		return fmt.Errorf("unknown module %q", name)
	}
	model := r.models[name]

	probe := config.ModulesConfig{Modules: r.snapshotModulesReplacing(name, updated)}
	if err := probe.Validate(); err != nil {
		return err
	}

	ops := schema.DiffFields(current.FieldDefs(), updated.FieldDefs())
	if updated.Name != name {
		ops = append(ops, schema.ColumnOp{Kind: schema.OpRename, NewName: updated.Name})
	}
	if _, err := model.AlterTable(ops); err != nil {
		return err
	}

	relDiff := schema.DiffRelations(current.RelationFields(), updated.RelationFields())
	if err := r.applyRelationDiff(name, current, &updated, relDiff); err != nil {
		return err
	}

	*current = updated
	delete(r.models, name)
	delete(r.relations, name)

	// Rebuild from the edited definition. The accessor keeps the renamed
	// table through AlterTable, but the definition changed underneath it.
	rebuilt, err := entity.New(r.conn, updated.Definition(), r.logger)
	if err != nil {
		return err
	}
	r.models[updated.Name] = rebuilt
	if err := r.buildRelations(current); err != nil {
		return err
	}
	return r.persist()
}

func (r *Registry) applyRelationDiff(name string, current *config.ModuleConfig, updated *config.ModuleConfig, d schema.RelationDiff) error {
	dep := r.models[name]

	for _, target := range d.CreateTables {
		card := schema.ManyToOne
		for _, rc := range updated.Relations {
			if rc.Module == target {
				card = schema.ParseCardinality(rc.Cardinality)
				break
			}
		}
		rel, err := relation.New(dep, r.models[target], card, r.logger)
		if err != nil {
			return err
		}
		if err := rel.CreateTable(); err != nil {
			return err
		}
	}
	for _, target := range d.DropTables {
		rel, err := relation.New(dep, r.models[target], schema.ManyToOne, r.logger)
		if err != nil {
			return err
		}
		if err := rel.DropTable(); err != nil {
			return err
		}
	}
	for oldField, newField := range d.RenameFields {
		if rel := r.relations[name][oldField]; rel != nil {
			if err := rel.RenameField(oldField, newField); err != nil {
				return err
			}
		}
	}
	for _, field := range d.TruncateFields {
		rel := r.relations[name][field]
		if rel == nil {
			// A renamed field keeps its manager under the old name.
			for oldField, newField := range d.RenameFields {
				if newField == field {
					rel = r.relations[name][oldField]
					break
				}
			}
		}
		if rel != nil {
			if err := rel.ClearTable(); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteModule drops the module's table, its relation tables and its
// configuration entry.
func (r *Registry) DeleteModule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.cfg.Module(name)
	if m == nil {
		return fmt.Errorf("unknown module %q", name)
	}
	for _, rel := range r.relations[name] {
		if err := rel.DropTable(); err != nil {
			return err
		}
	}
	model := r.models[name]
	query := "DROP TABLE IF EXISTS " + r.conn.EscapeIdentifier(model.Table())
	if _, err := r.conn.Query(query); err != nil {
		return fmt.Errorf("module %q drop table: %w", name, err)
	}

	kept := make([]config.ModuleConfig, 0, len(r.cfg.Modules)-1)
	for _, mc := range r.cfg.Modules {
		if mc.Name != name {
			kept = append(kept, mc)
		}
	}
	r.cfg.Modules = kept
	delete(r.models, name)
	delete(r.relations, name)
	return r.persist()
}

// DeleteRows removes entity rows along with every relation edge touching
// them, on both sides of each relation the module participates in.
func (r *Registry) DeleteRows(module string, ids []int64) (bool, error) {
	r.mu.RLock()
	model := r.models[module]
	depRels := r.relations[module]
	r.mu.RUnlock()
	if model == nil || len(ids) == 0 {
		return false, nil
	}

	for _, rel := range depRels {
		for _, id := range ids {
			if _, err := rel.Delete(id, nil, ""); err != nil {
				return false, err
			}
		}
	}
	// Edges pointing at these rows from other modules.
	r.mu.RLock()
	for owner, byField := range r.relations {
		if owner == module {
			continue
		}
		for field, rel := range byField {
			if r.relationTarget(owner, field) != module {
				continue
			}
			if _, err := rel.Delete(0, ids, ""); err != nil {
				r.mu.RUnlock()
				return false, err
			}
		}
	}
	r.mu.RUnlock()

	return model.Delete(ids...)
}

func (r *Registry) relationTarget(module, field string) string {
	m := r.cfg.Module(module)
	if m == nil {
		return ""
	}
	for _, rc := range m.Relations {
		if rc.Name == field {
			return rc.Module
		}
	}
	return ""
}

func (r *Registry) snapshotModules() []config.ModuleConfig {
	out := make([]config.ModuleConfig, len(r.cfg.Modules))
	copy(out, r.cfg.Modules)
	return out
}

func (r *Registry) snapshotModulesReplacing(name string, updated config.ModuleConfig) []config.ModuleConfig {
	out := make([]config.ModuleConfig, 0, len(r.cfg.Modules))
	for _, m := range r.cfg.Modules {
		if m.Name == name {
			out = append(out, updated)
		} else {
			out = append(out, m)
		}
	}
	return out
}

// persist writes the module configuration back to disk. Callers hold the
// write lock.
func (r *Registry) persist() error {
	if r.path == "" {
		return nil
	}
	content, err := yaml.Marshal(r.cfg)
	if err != nil {
		return fmt.Errorf("marshal modules config: %w", err)
	}
	if err := os.WriteFile(r.path, content, 0o644); err != nil {
		return fmt.Errorf("write modules config %q: %w", r.path, err)
	}
	return nil
}
