package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SlugTable is the shared slug table: one (module, row_id, slug) record per
// sluggable row across every entity. The (module, slug) pair is unique.
const SlugTable = "abstract_slug"

// SlugMaxLen bounds slug length including any collision suffix.
const SlugMaxLen = 100

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9_-]+`)
	slugCollapse = regexp.MustCompile(`-{2,}`)
	slugSuffix   = regexp.MustCompile(`-(\d+)$`)
)

// NormalizeSlug lowers and strips text down to the slug charset
// [a-z0-9_-], collapsing runs of separators and truncating to SlugMaxLen.
func NormalizeSlug(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > SlugMaxLen {
		s = strings.Trim(s[:SlugMaxLen], "-")
	}
	return s
}

// CreateSlug produces a slug for text that is unique within this entity's
// module, excluding rowID itself from the collision check. Collisions get a
// strictly increasing -N suffix, re-truncated so the result stays within
// the length budget. Re-slugging the same row with unchanged text yields
// the same slug.
func (m *Model) CreateSlug(text string, rowID int64) (string, error) {
	candidate := NormalizeSlug(text)
	if candidate == "" {
		candidate = m.def.Name
	}

	for {
		taken, err := m.slugTaken(candidate, rowID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		base := candidate
		n := 0
		if match := slugSuffix.FindStringSubmatch(candidate); match != nil {
			n, _ = strconv.Atoi(match[1])
			base = candidate[:len(candidate)-len(match[0])]
		}
		suffix := "-" + strconv.Itoa(n+1)
		if len(base)+len(suffix) > SlugMaxLen {
			base = strings.Trim(base[:SlugMaxLen-len(suffix)], "-")
		}
		candidate = base + suffix
	}
}

// SetSlug generates a unique slug from text and persists it for rowID,
// replacing any previous slug record for the row.
func (m *Model) SetSlug(rowID int64, text string) error {
	slug, err := m.CreateSlug(text, rowID)
	if err != nil {
		return err
	}

	query := "SELECT COUNT(*) AS " + m.conn.EscapeIdentifier("count") +
		" FROM " + m.conn.EscapeIdentifier(SlugTable) +
		" WHERE " + m.conn.EscapeIdentifier("module") + " = " + m.conn.Escape(m.def.Name) +
		" AND " + m.conn.EscapeIdentifier("row_id") + " = " + m.conn.Escape(rowID)
	res, err := m.conn.Query(query)
	if err != nil {
		return fmt.Errorf("entity %q slug lookup: %w", m.def.Name, err)
	}

	exists := false
	if raw := res.ResultAssoc(); raw != nil {
		exists = toInt64(raw["count"]) > 0
	}
	if exists {
		query = "UPDATE " + m.conn.EscapeIdentifier(SlugTable) +
			" SET " + m.conn.EscapeIdentifier("slug") + " = " + m.conn.Escape(slug) +
			" WHERE " + m.conn.EscapeIdentifier("module") + " = " + m.conn.Escape(m.def.Name) +
			" AND " + m.conn.EscapeIdentifier("row_id") + " = " + m.conn.Escape(rowID)
	} else {
		query = "INSERT INTO " + m.conn.EscapeIdentifier(SlugTable) +
			" (" + m.conn.EscapeIdentifier("module") + ", " + m.conn.EscapeIdentifier("row_id") +
			", " + m.conn.EscapeIdentifier("slug") + ") VALUES (" +
			m.conn.Escape(m.def.Name) + ", " + m.conn.Escape(rowID) + ", " + m.conn.Escape(slug) + ")"
	}
	if _, err := m.conn.Query(query); err != nil {
		return fmt.Errorf("entity %q slug write: %w", m.def.Name, err)
	}
	return nil
}

// DeleteSlugs removes the slug records for the given row ids.
func (m *Model) DeleteSlugs(rowIDs ...int64) error {
	if len(rowIDs) == 0 {
		return nil
	}
	escaped := make([]string, len(rowIDs))
	for i, id := range rowIDs {
		escaped[i] = m.conn.Escape(id)
	}
	query := "DELETE FROM " + m.conn.EscapeIdentifier(SlugTable) +
		" WHERE " + m.conn.EscapeIdentifier("module") + " = " + m.conn.Escape(m.def.Name) +
		" AND " + m.conn.EscapeIdentifier("row_id") + " IN (" + strings.Join(escaped, ",") + ")"
	if _, err := m.conn.Query(query); err != nil {
		return fmt.Errorf("entity %q slug delete: %w", m.def.Name, err)
	}
	return nil
}

// slugRowID resolves a slug to its row id, zero when unknown.
func (m *Model) slugRowID(slug string) (int64, error) {
	query := "SELECT " + m.conn.EscapeIdentifier("row_id") +
		" FROM " + m.conn.EscapeIdentifier(SlugTable) +
		" WHERE " + m.conn.EscapeIdentifier("module") + " = " + m.conn.Escape(m.def.Name) +
		" AND " + m.conn.EscapeIdentifier("slug") + " = " + m.conn.Escape(slug)
	res, err := m.conn.Query(query)
	if err != nil {
		return 0, fmt.Errorf("entity %q slug resolve: %w", m.def.Name, err)
	}
	raw := res.ResultAssoc()
	if raw == nil {
		return 0, nil
	}
	return toInt64(raw["row_id"]), nil
}

// slugTaken reports whether slug is already held by a different row of this
// module.
func (m *Model) slugTaken(slug string, rowID int64) (bool, error) {
	query := "SELECT COUNT(*) AS " + m.conn.EscapeIdentifier("count") +
		" FROM " + m.conn.EscapeIdentifier(SlugTable) +
		" WHERE " + m.conn.EscapeIdentifier("module") + " = " + m.conn.Escape(m.def.Name) +
		" AND " + m.conn.EscapeIdentifier("slug") + " = " + m.conn.Escape(slug) +
		" AND " + m.conn.EscapeIdentifier("row_id") + " != " + m.conn.Escape(rowID)
	res, err := m.conn.Query(query)
	if err != nil {
		return false, fmt.Errorf("entity %q slug check: %w", m.def.Name, err)
	}
	raw := res.ResultAssoc()
	if raw == nil {
		return false, nil
	}
	return toInt64(raw["count"]) > 0, nil
}
