package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempFile(t, "config.yml", "env: production\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Contains(t, cfg.DSN, "tcp(127.0.0.1:3306)/abstract_cms")
	assert.Contains(t, cfg.DSN, "parseTime=true")
}

func TestLoadAssemblesDSNFromParts(t *testing.T) {
	path := writeTempFile(t, "config.yml", `
port: 9000
database:
  host: db.internal
  port: 3307
  user: cms
  password: secret
  name: cms_data
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Contains(t, cfg.DSN, "cms:secret@tcp(db.internal:3307)/cms_data")
}

func TestLoadExplicitDSNWins(t *testing.T) {
	path := writeTempFile(t, "config.yml", `
dsn: user:pw@tcp(10.0.0.1:3306)/other
database:
  host: ignored.example
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "user:pw@tcp(10.0.0.1:3306)/other", cfg.DSN)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeTempFile(t, "config.yml", "bogus_key: 1\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeTempFile(t, "config.yml", "port: 99999\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadModules(t *testing.T) {
	path := writeTempFile(t, "modules.yml", `
modules:
  - name: products
    title_field: title
    use_sort: true
    fields:
      - id: 1
        name: title
        type: string
        length: 150
    relations:
      - id: 2
        name: categories
        module: categories
        cardinality: "n:n"
  - name: categories
    fields:
      - id: 1
        name: title
        type: string
`)

	cfg, err := LoadModules(path)
	require.NoError(t, err)
	require.Len(t, cfg.Modules, 2)

	products := cfg.Module("products")
	require.NotNil(t, products)
	assert.Equal(t, "id", products.PKField)

	def := products.Definition()
	assert.Equal(t, "products", def.Name)
	assert.True(t, def.UseSort)
	require.Len(t, def.Fields, 1)
	assert.Equal(t, "title", def.Fields[0].Name)

	rels := products.RelationFields()
	require.Len(t, rels, 1)
	assert.Equal(t, "categories", rels[0].Config.Module)
}

func TestLoadModulesRejectsUnknownTarget(t *testing.T) {
	path := writeTempFile(t, "modules.yml", `
modules:
  - name: products
    relations:
      - id: 1
        name: tags
        module: tags
        cardinality: "n:n"
`)

	_, err := LoadModules(path)
	assert.ErrorContains(t, err, "unknown target module")
}

func TestLoadModulesRejectsUnknownFieldType(t *testing.T) {
	path := writeTempFile(t, "modules.yml", `
modules:
  - name: products
    fields:
      - id: 1
        name: title
        type: varchar2
`)

	_, err := LoadModules(path)
	assert.ErrorContains(t, err, "unknown type")
}

func TestLoadModulesRejectsDuplicateFieldIDs(t *testing.T) {
	path := writeTempFile(t, "modules.yml", `
modules:
  - name: products
    fields:
      - id: 1
        name: title
        type: string
      - id: 1
        name: summary
        type: text
`)

	_, err := LoadModules(path)
	assert.ErrorContains(t, err, "duplicate id")
}
