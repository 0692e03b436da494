package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

func eventDescriptor() *core.TableDescriptor {
	return &core.TableDescriptor{
		Name: "event",
		Columns: []core.Column{
			{Name: "uuid", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "name", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
			{Name: "timestamp", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
			{Name: "status_icon", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
			{Name: "code", Type: core.TypeInteger},
			{Name: "note", Type: core.TypeText},
		},
		Keys: []string{"uuid"},
	}
}

const eventColumns = `"uuid", "name", "timestamp", "status_icon", "code", "note"`

func TestCreateTable(t *testing.T) {
	desc := eventDescriptor()
	g := New(SQLite, desc)

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "event" (`+
			`"uuid" INTEGER NOT NULL, "name" INTEGER NOT NULL, "timestamp" INTEGER NOT NULL, `+
			`"status_icon" INTEGER NOT NULL, "code" INTEGER, "note" TEXT, PRIMARY KEY ("uuid"))`,
		g.CreateTable("event", desc.Keys, true))

	assert.Equal(t,
		`CREATE TABLE "event" (`+
			`"uuid" INTEGER NOT NULL, "name" INTEGER NOT NULL, "timestamp" INTEGER NOT NULL, `+
			`"status_icon" INTEGER NOT NULL, "code" INTEGER, "note" TEXT, PRIMARY KEY ("uuid"))`,
		g.CreateTable("event", desc.Keys, false))
}

func TestCreateTable_DefaultsAndUnique(t *testing.T) {
	zero := "0"
	desc := &core.TableDescriptor{
		Name: "tag",
		Columns: []core.Column{
			{Name: "id", Type: core.TypeText, Constraints: core.ConstraintPrimaryKey},
			{Name: "label", Type: core.TypeText, Constraints: core.ConstraintNotNull | core.ConstraintUnique},
			{Name: "weight", Type: core.TypeReal, Default: &zero},
		},
		Keys: []string{"id"},
	}

	assert.Equal(t,
		"CREATE TABLE `tag` (`id` VARCHAR(255) NOT NULL, `label` TEXT NOT NULL UNIQUE, `weight` DOUBLE DEFAULT 0, PRIMARY KEY (`id`))",
		New(MySQL, desc).CreateTable("tag", desc.Keys, false))

	assert.Equal(t,
		`CREATE TABLE "tag" ("id" TEXT NOT NULL, "label" TEXT NOT NULL UNIQUE, "weight" DOUBLE PRECISION DEFAULT 0, PRIMARY KEY ("id"))`,
		New(Postgres, desc).CreateTable("tag", desc.Keys, false))
}

func TestInsertInto(t *testing.T) {
	desc := eventDescriptor()

	tests := []struct {
		name    string
		dialect *Dialect
		replace bool
		want    string
	}{
		{
			name:    "sqlite plain",
			dialect: SQLite,
			want:    `INSERT INTO "event" (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?)`,
		},
		{
			name:    "sqlite replace",
			dialect: SQLite,
			replace: true,
			want:    `INSERT OR REPLACE INTO "event" (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?)`,
		},
		{
			name:    "mysql replace",
			dialect: MySQL,
			replace: true,
			want:    "REPLACE INTO `event` (`uuid`, `name`, `timestamp`, `status_icon`, `code`, `note`) VALUES (?, ?, ?, ?, ?, ?)",
		},
		{
			name:    "postgres plain",
			dialect: Postgres,
			want:    `INSERT INTO "event" (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`,
		},
		{
			name:    "postgres replace",
			dialect: Postgres,
			replace: true,
			want: `INSERT INTO "event" (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6)` +
				` ON CONFLICT ("uuid") DO UPDATE SET "name" = EXCLUDED."name", "timestamp" = EXCLUDED."timestamp", ` +
				`"status_icon" = EXCLUDED."status_icon", "code" = EXCLUDED."code", "note" = EXCLUDED."note"`,
		},
		{
			name:    "duckdb replace",
			dialect: DuckDB,
			replace: true,
			want:    `INSERT OR REPLACE INTO "event" (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.dialect, desc).InsertInto("event", tt.replace))
		})
	}
}

func TestInsertInto_OnConflictAllKeys(t *testing.T) {
	desc := &core.TableDescriptor{
		Name: "link",
		Columns: []core.Column{
			{Name: "a", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "b", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
		},
		Keys: []string{"a", "b"},
	}
	assert.Equal(t,
		`INSERT INTO "link" ("a", "b") VALUES ($1, $2) ON CONFLICT ("a", "b") DO NOTHING`,
		New(Postgres, desc).InsertInto("link", true))
}

func TestSelectFrom(t *testing.T) {
	desc := eventDescriptor()
	status := desc.Columns[3]

	tests := []struct {
		name    string
		dialect *Dialect
		opts    core.SelectOptions
		want    string
	}{
		{
			name:    "unordered unbounded",
			dialect: SQLite,
			want:    `SELECT ` + eventColumns + ` FROM "event"`,
		},
		{
			name:    "ordered ascending with limit",
			dialect: SQLite,
			opts:    core.SelectOptions{OrderBy: &status, Asc: true, Limit: 10},
			want:    `SELECT ` + eventColumns + ` FROM "event" ORDER BY "status_icon" ASC LIMIT 10`,
		},
		{
			name:    "descending with limit and offset",
			dialect: SQLite,
			opts:    core.SelectOptions{OrderBy: &status, Limit: 5, Offset: 20},
			want:    `SELECT ` + eventColumns + ` FROM "event" ORDER BY "status_icon" DESC LIMIT 5 OFFSET 20`,
		},
		{
			name:    "sqlite offset only",
			dialect: SQLite,
			opts:    core.SelectOptions{Offset: 3},
			want:    `SELECT ` + eventColumns + ` FROM "event" LIMIT -1 OFFSET 3`,
		},
		{
			name:    "mysql offset only",
			dialect: MySQL,
			opts:    core.SelectOptions{Offset: 3},
			want:    "SELECT `uuid`, `name`, `timestamp`, `status_icon`, `code`, `note` FROM `event` LIMIT 18446744073709551615 OFFSET 3",
		},
		{
			name:    "postgres offset only",
			dialect: Postgres,
			opts:    core.SelectOptions{Offset: 3},
			want:    `SELECT ` + eventColumns + ` FROM "event" OFFSET 3`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.dialect, desc).SelectFrom("event", tt.opts))
		})
	}
}

func TestSelectKeysFrom(t *testing.T) {
	desc := eventDescriptor()
	ts := desc.Columns[2]
	g := New(SQLite, desc)

	assert.Equal(t, `SELECT "uuid" FROM "event"`, g.SelectKeysFrom("event", desc.Keys, core.SelectOptions{}))
	assert.Equal(t,
		`SELECT "uuid" FROM "event" ORDER BY "timestamp" ASC LIMIT 2`,
		g.SelectKeysFrom("event", desc.Keys, core.SelectOptions{OrderBy: &ts, Asc: true, Limit: 2}))
}

func TestSeekUpdateDelete(t *testing.T) {
	desc := eventDescriptor()

	sqlite := New(SQLite, desc)
	assert.Equal(t, `SELECT `+eventColumns+` FROM "event" WHERE "uuid" = ?`, sqlite.SeekFrom("event", desc.Keys))
	assert.Equal(t,
		`UPDATE "event" SET "name" = ?, "timestamp" = ?, "status_icon" = ?, "code" = ?, "note" = ? WHERE "uuid" = ?`,
		sqlite.UpdateSet("event", desc.Keys))
	assert.Equal(t, `DELETE FROM "event" WHERE "uuid" = ?`, sqlite.DeleteFrom("event", desc.Keys))
	assert.Equal(t, `DROP TABLE "event"`, sqlite.DropTable("event"))

	pg := New(Postgres, desc)
	assert.Equal(t,
		`UPDATE "event" SET "name" = $1, "timestamp" = $2, "status_icon" = $3, "code" = $4, "note" = $5 WHERE "uuid" = $6`,
		pg.UpdateSet("event", desc.Keys))
	assert.Equal(t, `DELETE FROM "event" WHERE "uuid" = $1`, pg.DeleteFrom("event", desc.Keys))
}

func TestCompositeKeys(t *testing.T) {
	desc := &core.TableDescriptor{
		Name: "reading",
		Columns: []core.Column{
			{Name: "sensor", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "value", Type: core.TypeReal},
			{Name: "at", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
		},
		Keys: []string{"sensor", "at"},
	}
	g := New(Postgres, desc)

	assert.Equal(t, `SELECT "sensor", "value", "at" FROM "reading" WHERE "sensor" = $1 AND "at" = $2`, g.SeekFrom("reading", desc.Keys))
	assert.Equal(t, `UPDATE "reading" SET "value" = $1 WHERE "sensor" = $2 AND "at" = $3`, g.UpdateSet("reading", desc.Keys))
}

func TestUpdateSet_KeysOnly(t *testing.T) {
	desc := &core.TableDescriptor{
		Name:    "marker",
		Columns: []core.Column{{Name: "id", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey}},
		Keys:    []string{"id"},
	}
	assert.Equal(t, `UPDATE "marker" SET "id" = "id" WHERE "id" = ?`, New(SQLite, desc).UpdateSet("marker", desc.Keys))
}

func TestAggregates(t *testing.T) {
	desc := eventDescriptor()
	g := New(SQLite, desc)
	status := desc.Columns[3]
	code := desc.Columns[4]

	assert.Equal(t, `SELECT COUNT(*) FROM "event"`, g.TableCount("event", nil, false))
	assert.Equal(t, `SELECT COUNT(*) FROM "event"`, g.TableCount("event", nil, true))
	assert.Equal(t, `SELECT COUNT("code") FROM "event"`, g.TableCount("event", &code, false))
	assert.Equal(t, `SELECT COUNT(DISTINCT "code") FROM "event"`, g.TableCount("event", &code, true))
	assert.Equal(t, `SELECT AVG("status_icon") FROM "event"`, g.TableAverage("event", &status, false))
	assert.Equal(t, `SELECT SUM(DISTINCT "status_icon") FROM "event"`, g.TableSum("event", &status, true))
	assert.Equal(t, `SELECT MIN("status_icon") FROM "event"`, g.TableMin("event", &status, false))
	assert.Equal(t, `SELECT MAX("status_icon") FROM "event"`, g.TableMax("event", &status, false))
}

func TestGenerator_Deterministic(t *testing.T) {
	desc := eventDescriptor()
	a := New(Postgres, desc)
	b := New(Postgres, desc)
	assert.Equal(t, a.InsertInto("event", true), b.InsertInto("event", true))
	assert.Equal(t, a.UpdateSet("event", desc.Keys), a.UpdateSet("event", desc.Keys))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"we""ird"`, SQLite.QuoteIdentifier(`we"ird`))
	assert.Equal(t, "`we``ird`", MySQL.QuoteIdentifier("we`ird"))
}

func TestLookup(t *testing.T) {
	d, err := Lookup("SQLite")
	require.NoError(t, err)
	assert.Same(t, SQLite, d)

	d, err = Lookup("pgx")
	require.NoError(t, err)
	assert.Same(t, Postgres, d)

	_, err = Lookup("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duckdb, mysql, postgres, sqlite")
}
