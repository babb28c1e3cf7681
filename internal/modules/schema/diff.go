package schema

// RelationConfig is one relation field's target: the partner module and the
// cardinality of the edge set.
type RelationConfig struct {
	Module      string
	Cardinality Cardinality
}

// RelationField is one relation-bearing form field in a module definition
// snapshot. ID is the stable numeric field identifier; renames are detected
// by matching IDs across snapshots, never by name.
type RelationField struct {
	ID     int
	Name   string
	Config RelationConfig
}

// FieldDef is one plain (column-backed) field in a definition snapshot.
type FieldDef struct {
	ID      int
	Name    string
	Type    TypeToken
	Length  int
	Values  []string
	Default string
}

// RelationDiff is the outcome of comparing two relation snapshots. Computed
// once per schema edit and consumed immediately. CreateTables and
// DropTables never share a module name.
type RelationDiff struct {
	Create         map[string]RelationConfig // field → config to register
	Delete         map[string]RelationConfig // field → config to retire
	CreateTables   []string                  // partner modules needing a join table
	DropTables     []string                  // partner modules whose table goes away
	RenameFields   map[string]string         // old field name → new, applied to join-table rows
	TruncateFields []string                  // cardinality changed, contents invalidated
}

// DiffRelations classifies every relation field of the new snapshot against
// the old one, then sweeps the old snapshot for removals. Classification
// order follows the new snapshot's field order; the first field to claim a
// partner module owns its CREATE TABLE, later fields never schedule a
// duplicate.
func DiffRelations(oldRel, newRel []RelationField) RelationDiff {
	d := RelationDiff{
		Create:       make(map[string]RelationConfig),
		Delete:       make(map[string]RelationConfig),
		RenameFields: make(map[string]string),
	}

	oldByName := make(map[string]RelationField, len(oldRel))
	oldByID := make(map[int]RelationField, len(oldRel))
	for _, f := range oldRel {
		oldByName[f.Name] = f
		oldByID[f.ID] = f
	}

	created := make(map[string]bool)
	dropped := make(map[string]bool)
	keptIDs := make(map[int]bool)

	for _, nf := range newRel {
		if of, ok := oldByName[nf.Name]; ok {
			keptIDs[of.ID] = true
			if of.Config.Cardinality != nf.Config.Cardinality {
				d.TruncateFields = append(d.TruncateFields, nf.Name)
			}
			continue
		}
		if of, ok := oldByID[nf.ID]; ok {
			keptIDs[of.ID] = true
			d.RenameFields[of.Name] = nf.Name
			if of.Config.Cardinality != nf.Config.Cardinality {
				d.TruncateFields = append(d.TruncateFields, nf.Name)
			}
			continue
		}

		d.Create[nf.Name] = nf.Config
		mod := nf.Config.Module
		if !created[mod] {
			created[mod] = true
			d.CreateTables = append(d.CreateTables, mod)
		}
	}

	for _, of := range oldRel {
		if keptIDs[of.ID] {
			continue
		}
		d.Delete[of.Name] = of.Config
		mod := of.Config.Module
		if created[mod] || dropped[mod] {
			continue
		}
		dropped[mod] = true
		d.DropTables = append(d.DropTables, mod)
	}

	return d
}

// DiffFields compares two plain-field snapshots and emits the column
// operations bringing the table from old to new. Renames match by field ID;
// new fields anchor AFTER their predecessor in the new snapshot order.
func DiffFields(oldFields, newFields []FieldDef) []ColumnOp {
	oldByName := make(map[string]FieldDef, len(oldFields))
	oldByID := make(map[int]FieldDef, len(oldFields))
	for _, f := range oldFields {
		oldByName[f.Name] = f
		oldByID[f.ID] = f
	}

	var ops []ColumnOp
	keptIDs := make(map[int]bool)
	prev := ""

	for _, nf := range newFields {
		if of, ok := oldByName[nf.Name]; ok {
			keptIDs[of.ID] = true
			if fieldTypeChanged(of, nf) {
				ops = append(ops, ColumnOp{
					Kind: OpModify, Field: nf.Name,
					Type: nf.Type, Length: nf.Length, Values: nf.Values, Default: nf.Default,
				})
			}
		} else if of, ok := oldByID[nf.ID]; ok {
			keptIDs[of.ID] = true
			ops = append(ops, ColumnOp{
				Kind: OpChange, Field: of.Name, NewName: nf.Name,
				Type: nf.Type, Length: nf.Length, Values: nf.Values, Default: nf.Default,
			})
		} else {
			ops = append(ops, ColumnOp{
				Kind: OpAdd, Field: nf.Name, After: prev,
				Type: nf.Type, Length: nf.Length, Values: nf.Values, Default: nf.Default,
			})
		}
		prev = nf.Name
	}

	for _, of := range oldFields {
		if !keptIDs[of.ID] {
			ops = append(ops, ColumnOp{Kind: OpDrop, Field: of.Name})
		}
	}
	return ops
}

func fieldTypeChanged(before, after FieldDef) bool {
	if before.Type != after.Type || before.Length != after.Length {
		return true
	}
	if len(before.Values) != len(after.Values) {
		return true
	}
	for i := range before.Values {
		if before.Values[i] != after.Values[i] {
			return true
		}
	}
	return false
}
