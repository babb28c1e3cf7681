// Package admin exposes the data layer over HTTP: generic row CRUD for
// every configured module and the schema-edit endpoints that reshape
// modules at runtime.
package admin

import (
	"fmt"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/config"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/entity"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/registry"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/pkg/pagination"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/pkg/response"
	"go.uber.org/zap"
)

type Service struct {
	reg    *registry.Registry
	logger *zap.Logger
}

func NewService(reg *registry.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reg: reg, logger: logger}
}

// ListParams narrow a module list request.
type ListParams struct {
	Where    entity.Where
	OrderBy  string
	IsAsc    bool
	Archived bool
}

var errUnknownModule = fmt.Errorf("unknown module")

// List returns one page of rows plus pagination metadata. Unarchived rows
// only unless Archived is set, for modules carrying the archive flag.
func (s *Service) List(module string, params ListParams, q pagination.Query) ([]entity.Row, response.Pagination, error) {
	model := s.reg.Model(module)
	if model == nil {
		return nil, response.Pagination{}, errUnknownModule
	}

	where := params.Where
	if model.Definition().UseArchive {
		where = append(where, entity.Group{
			Op:     entity.OpEquals,
			Fields: []entity.Cond{{Field: entity.FieldArchive, Value: params.Archived}},
		})
	}

	qp := entity.QueryParams{
		Where:   where,
		OrderBy: params.OrderBy,
		IsAsc:   params.IsAsc,
		Offset:  q.Offset(),
		Limit:   q.Size,
	}
	total, err := model.Count(qp)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	rows, err := model.GetRows(qp)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return rows, q.Meta(total), nil
}

// Get fetches one row by id or slug, with the related ids of every relation
// field attached under the field name. Returns (nil, nil) when absent.
func (s *Service) Get(module string, idOrSlug interface{}, bySlug bool) (entity.Row, error) {
	model := s.reg.Model(module)
	if model == nil {
		return nil, errUnknownModule
	}
	row, err := model.Get(idOrSlug, bySlug)
	if err != nil || row == nil {
		return row, err
	}

	id := rowID(model, row)
	for field, rel := range s.reg.Relations(module) {
		ids, err := rel.GetIDs(id, field)
		if err != nil {
			return nil, err
		}
		row[field] = ids
	}
	return row, nil
}

// Create inserts a row and its relation edges. Relations maps relation
// field names to ordered independent ids.
func (s *Service) Create(module string, row entity.Row, relations map[string][]int64) (int64, error) {
	model := s.reg.Model(module)
	if model == nil {
		return 0, errUnknownModule
	}
	id, err := model.Insert(row)
	if err != nil || id == 0 {
		return id, err
	}
	if err := s.setRelations(module, id, relations, false); err != nil {
		return id, err
	}
	return id, nil
}

// Update rewrites a row and replaces the edges of every relation field
// present in relations. Fields absent from the map keep their edges. A
// payload whose primary key does not parse to a positive id is refused
// outright: a zero dependent id would widen the edge replacement to every
// row of the field.
func (s *Service) Update(module string, row entity.Row, relations map[string][]int64) (bool, error) {
	model := s.reg.Model(module)
	if model == nil {
		return false, errUnknownModule
	}
	id := rowID(model, row)
	if id == 0 {
		return false, nil
	}
	ok, err := model.Update(row)
	if err != nil || !ok {
		return ok, err
	}
	if err := s.setRelations(module, id, relations, true); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) setRelations(module string, id int64, relations map[string][]int64, replace bool) error {
	for field, ids := range relations {
		rel := s.reg.Relation(module, field)
		if rel == nil {
			s.logger.Warn("unknown relation field dropped",
				zap.String("module", module), zap.String("field", field))
			continue
		}
		if replace {
			if _, err := rel.Delete(id, nil, field); err != nil {
				return err
			}
		}
		if _, err := rel.Add(id, ids, field); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes rows and every relation edge referencing them.
func (s *Service) Delete(module string, ids []int64) (bool, error) {
	if s.reg.Model(module) == nil {
		return false, errUnknownModule
	}
	return s.reg.DeleteRows(module, ids)
}

// SetActive toggles the active flag on a batch of rows.
func (s *Service) SetActive(module string, ids []int64, active bool) (bool, error) {
	model := s.reg.Model(module)
	if model == nil {
		return false, errUnknownModule
	}
	return model.SetActive(ids, active)
}

// SetArchive toggles the archive flag on a batch of rows.
func (s *Service) SetArchive(module string, ids []int64, archived bool) (bool, error) {
	model := s.reg.Model(module)
	if model == nil {
		return false, errUnknownModule
	}
	return model.SetArchive(ids, archived)
}

// SetSortOrder reassigns sort indices in slice order.
func (s *Service) SetSortOrder(module string, ids []int64) (bool, error) {
	model := s.reg.Model(module)
	if model == nil {
		return false, errUnknownModule
	}
	return model.SetSortOrder(ids)
}

// Modules returns the configured module names.
func (s *Service) Modules() []string {
	return s.reg.ModuleNames()
}

// ModuleConfig returns one module's configuration, nil when unknown.
func (s *Service) ModuleConfig(name string) *config.ModuleConfig {
	return s.reg.ModuleConfig(name)
}

// CreateModule registers a new module and creates its tables.
func (s *Service) CreateModule(mc config.ModuleConfig) error {
	return s.reg.CreateModule(mc)
}

// UpdateModule applies a schema edit to an existing module.
func (s *Service) UpdateModule(name string, mc config.ModuleConfig) error {
	return s.reg.UpdateModule(name, mc)
}

// DeleteModule drops a module, its table and its relation tables.
func (s *Service) DeleteModule(name string) error {
	return s.reg.DeleteModule(name)
}

func rowID(model *entity.Model, row entity.Row) int64 {
	switch v := row[model.Definition().PKField].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		var id int64
		fmt.Sscanf(v, "%d", &id)
		return id
	}
	return 0
}
