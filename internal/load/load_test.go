package load

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/database/sqlite"
	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/resolve"
	"github.com/koustreak/frameload/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roundTripDDL = `
CREATE TABLE region (
	id     INTEGER PRIMARY KEY,
	name   TEXT NOT NULL,
	parent INTEGER REFERENCES region(id)
);
CREATE TABLE street (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE address (
	id     INTEGER PRIMARY KEY,
	street INTEGER NOT NULL REFERENCES street(id),
	region INTEGER NOT NULL REFERENCES region(id)
);
CREATE VIEW address_view AS SELECT * FROM address;
`

func openDB(t *testing.T, ddl string) database.DB {
	t.Helper()
	ctx := context.Background()

	cfg := database.DefaultConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "load.db"))
	db, err := sqlite.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Exec(ctx, ddl)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), fmt.Sprintf(`SELECT count(*) FROM %q`, table)).Scan(&n))
	return n
}

func roundTripFrames() []Frame {
	return []Frame{
		{Table: "region", Rows: []Row{
			// r2 comes first although it references r1
			{"id": resolve.TempID("r2"), "name": "south", "parent": resolve.TempID("r1")},
			{"id": resolve.TempID("r1"), "name": "north", "parent": nil},
		}},
		{Table: "street", Rows: []Row{
			{"id": resolve.TempID("s1"), "name": "main"},
		}},
		{Table: "address", Rows: []Row{
			{"street": resolve.TempID("s1"), "region": resolve.TempID("r2")},
		}},
	}
}

func TestRunInTxRoundTrip(t *testing.T) {
	db := openDB(t, roundTripDDL)
	ctx := context.Background()

	// existing rows push generated keys away from 1, 2, ...
	_, err := db.Exec(ctx, `INSERT INTO region (name) VALUES ('a'), ('b'), ('c')`)
	require.NoError(t, err)

	report, err := RunInTx(ctx, db, "", roundTripFrames(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "street", "address"}, report.Order)
	assert.Equal(t, 3, report.Resolved)
	require.Len(t, report.Tables, 3)
	assert.Equal(t, TableReport{Table: "region", Level: 0, Inserted: 2, Updated: 1, Duration: report.Tables[0].Duration}, report.Tables[0])
	assert.Equal(t, 1, report.Tables[2].Level)

	var southID, northID int64
	var southParent *int64
	require.NoError(t, db.QueryRow(ctx, `SELECT id, parent FROM region WHERE name = 'south'`).Scan(&southID, &southParent))
	require.NoError(t, db.QueryRow(ctx, `SELECT id FROM region WHERE name = 'north'`).Scan(&northID))
	require.NotNil(t, southParent)
	assert.Equal(t, northID, *southParent)
	assert.Greater(t, northID, int64(3))

	var addrRegion, addrStreet int64
	require.NoError(t, db.QueryRow(ctx, `SELECT region, street FROM address`).Scan(&addrRegion, &addrStreet))
	assert.Equal(t, southID, addrRegion)

	var streetID int64
	require.NoError(t, db.QueryRow(ctx, `SELECT id FROM street WHERE name = 'main'`).Scan(&streetID))
	assert.Equal(t, streetID, addrStreet)
}

func TestRunInTxRealValuesPassThrough(t *testing.T) {
	db := openDB(t, roundTripDDL)
	ctx := context.Background()

	_, err := db.Exec(ctx, `INSERT INTO street (id, name) VALUES (77, 'old')`)
	require.NoError(t, err)

	frames := []Frame{
		{Table: "region", Rows: []Row{{"id": resolve.TempID("r"), "name": "x"}}},
		{Table: "address", Rows: []Row{{"street": 77, "region": resolve.TempID("r")}}},
	}
	_, err = RunInTx(ctx, db, "", frames, DefaultOptions())
	require.NoError(t, err)

	var street int64
	require.NoError(t, db.QueryRow(ctx, `SELECT street FROM address`).Scan(&street))
	assert.Equal(t, int64(77), street)
}

func TestRunInTxExplicitKeys(t *testing.T) {
	db := openDB(t, roundTripDDL)
	ctx := context.Background()

	frames := []Frame{
		{Table: "region", Rows: []Row{
			{"id": 10, "name": "root"},
			{"id": 11, "name": "leaf", "parent": 10},
		}},
	}
	report, err := RunInTx(ctx, db, "main", frames, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Resolved)
	assert.Equal(t, 0, report.Tables[0].Updated)
	assert.Equal(t, 2, count(t, db, "region"))
}

func TestRunInTxErrorsRollBack(t *testing.T) {
	tests := []struct {
		name   string
		frames []Frame
		check  func(t *testing.T, err error)
	}{
		{
			name: "dangling reference",
			frames: []Frame{
				{Table: "street", Rows: []Row{{"id": resolve.TempID("s1"), "name": "main"}}},
				{Table: "region", Rows: []Row{{"id": resolve.TempID("r1"), "name": "n"}}},
				{Table: "address", Rows: []Row{{"street": resolve.TempID("s9"), "region": resolve.TempID("r1")}}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errs.IsUnresolvedReference(err))
				var ure *resolve.UnresolvedReferenceError
				require.ErrorAs(t, err, &ure)
				assert.Equal(t, "address", ure.Table)
				assert.Equal(t, "street", ure.Column)
				assert.Equal(t, "street", ure.RefTable)
				assert.Equal(t, resolve.TempID("s9"), ure.ID)
			},
		},
		{
			name: "dangling self reference",
			frames: []Frame{
				{Table: "region", Rows: []Row{{"id": resolve.TempID("r1"), "name": "n", "parent": resolve.TempID("nope")}}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errs.IsUnresolvedReference(err))
			},
		},
		{
			name: "temporary id in plain column",
			frames: []Frame{
				{Table: "street", Rows: []Row{{"id": resolve.TempID("s1"), "name": resolve.TempID("x")}}},
			},
			check: func(t *testing.T, err error) {
				var ure *resolve.UnresolvedReferenceError
				require.ErrorAs(t, err, &ure)
				assert.Equal(t, "name", ure.Column)
				assert.Contains(t, ure.Reason, "neither a key nor a foreign key")
			},
		},
		{
			name: "reference to table outside the load set",
			frames: []Frame{
				{Table: "region", Rows: []Row{{"id": resolve.TempID("r1"), "name": "n"}}},
				{Table: "address", Rows: []Row{{"street": resolve.TempID("s1"), "region": resolve.TempID("r1")}}},
			},
			check: func(t *testing.T, err error) {
				var ure *resolve.UnresolvedReferenceError
				require.ErrorAs(t, err, &ure)
				assert.Contains(t, ure.Reason, "outside the load set")
			},
		},
		{
			name: "duplicate temporary id",
			frames: []Frame{
				{Table: "street", Rows: []Row{
					{"id": resolve.TempID("s1"), "name": "a"},
					{"id": resolve.TempID("s1"), "name": "b"},
				}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errs.IsDuplicateTempID(err))
			},
		},
		{
			name: "rejected row",
			frames: []Frame{
				{Table: "street", Rows: []Row{
					{"id": resolve.TempID("s1"), "name": "a"},
					{"id": resolve.TempID("s2"), "name": nil},
				}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errs.IsInsertFailed(err))
				var ie *InsertError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, "street", ie.Table)
				assert.Equal(t, 1, ie.Row)
				assert.Equal(t, resolve.TempID("s2"), ie.ID)
				assert.Contains(t, err.Error(), `temporary id "s2"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openDB(t, roundTripDDL)

			_, err := RunInTx(context.Background(), db, "", tt.frames, DefaultOptions())
			require.Error(t, err)
			tt.check(t, err)

			for _, table := range []string{"region", "street", "address"} {
				assert.Equal(t, 0, count(t, db, table), table)
			}
		})
	}
}

func TestRunCyclicSchema(t *testing.T) {
	db := openDB(t, `
		CREATE TABLE a (id INTEGER PRIMARY KEY, b_id INTEGER REFERENCES b(id));
		CREATE TABLE b (id INTEGER PRIMARY KEY, a_id INTEGER REFERENCES a(id));
	`)

	frames := []Frame{
		{Table: "a", Rows: []Row{{"id": resolve.TempID("a1")}}},
		{Table: "b", Rows: []Row{{"id": resolve.TempID("b1"), "a_id": resolve.TempID("a1")}}},
	}
	_, err := RunInTx(context.Background(), db, "", frames, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsCyclicDependency(err))
	assert.Equal(t, 0, count(t, db, "a"))
}

func TestRunDirectConcurrentSiblings(t *testing.T) {
	db := openDB(t, `
		CREATE TABLE country (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE color (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE size (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE product (
			id INTEGER PRIMARY KEY,
			country INTEGER REFERENCES country(id),
			color INTEGER REFERENCES color(id),
			size INTEGER REFERENCES size(id)
		);
	`)

	var frames []Frame
	var products []Row
	for _, table := range []string{"country", "color", "size"} {
		var rows []Row
		for i := 0; i < 20; i++ {
			rows = append(rows, Row{"id": resolve.TempID(fmt.Sprintf("%s%d", table, i)), "name": fmt.Sprint(i)})
		}
		frames = append(frames, Frame{Table: table, Rows: rows})
	}
	for i := 0; i < 20; i++ {
		products = append(products, Row{
			"country": resolve.TempID(fmt.Sprintf("country%d", i)),
			"color":   resolve.TempID(fmt.Sprintf("color%d", i)),
			"size":    resolve.TempID(fmt.Sprintf("size%d", i)),
		})
	}
	frames = append(frames, Frame{Table: "product", Rows: products})

	report, err := RunDirect(context.Background(), db, "", frames, Options{Concurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, 60, report.Resolved)
	assert.Equal(t, []string{"country", "color", "size", "product"}, report.Order)
	assert.Equal(t, 20, count(t, db, "product"))

	var mismatched int
	require.NoError(t, db.QueryRow(context.Background(), `
		SELECT count(*) FROM product p
		JOIN country c ON c.id = p.country
		JOIN color k ON k.id = p.color
		JOIN size s ON s.id = p.size
		WHERE c.name <> k.name OR k.name <> s.name`).Scan(&mismatched))
	assert.Equal(t, 0, mismatched)
}

func TestLoadRejectsConcurrencyInTx(t *testing.T) {
	db := openDB(t, roundTripDDL)

	_, err := RunInTx(context.Background(), db, "", roundTripFrames(), Options{Concurrency: 2})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestRunInTxCancelled(t *testing.T) {
	db := openDB(t, roundTripDDL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunInTx(ctx, db, "", roundTripFrames(), DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, 0, count(t, db, "region"))
}

func TestLoadTableNotInPlan(t *testing.T) {
	db := openDB(t, roundTripDDL)
	ctx := context.Background()

	p, err := Plan(ctx, schema.New(db, ""), []Frame{{Table: "street"}})
	require.NoError(t, err)

	_, err = Load(ctx, db, p, []Frame{{Table: "region", Rows: []Row{{"name": "x"}}}}, DefaultOptions())
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Load(ctx, db, p, []Frame{{Rows: []Row{{"name": "x"}}}}, DefaultOptions())
	assert.True(t, errs.IsInvalidInput(err))
}

func TestRunDirectKeepsEarlierTables(t *testing.T) {
	db := openDB(t, roundTripDDL)

	frames := []Frame{
		{Table: "street", Rows: []Row{{"id": resolve.TempID("s1"), "name": "main"}}},
		{Table: "region", Rows: []Row{{"id": resolve.TempID("r1"), "name": "n"}}},
		// region NOT NULL violated on the dependent table
		{Table: "address", Rows: []Row{{"street": resolve.TempID("s1"), "region": nil}}},
	}
	_, err := RunDirect(context.Background(), db, "", frames, DefaultOptions())
	require.Error(t, err)

	var ie *InsertError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "address", ie.Table)
	assert.Equal(t, 1, count(t, db, "street"))
	assert.Equal(t, 1, count(t, db, "region"))
}

func TestRunDirectDuplicateIDWritesNothing(t *testing.T) {
	db := openDB(t, roundTripDDL)

	frames := []Frame{
		{Table: "region", Rows: []Row{{"id": resolve.TempID("r1"), "name": "n"}}},
		{Table: "street", Rows: []Row{
			{"id": resolve.TempID("s1"), "name": "a"},
			{"id": resolve.TempID("s1"), "name": "b"},
		}},
	}
	_, err := RunDirect(context.Background(), db, "", frames, DefaultOptions())
	require.Error(t, err)

	var dup *resolve.DuplicateTempIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "street", dup.Table)
	assert.Equal(t, resolve.TempID("s1"), dup.ID)
	assert.Equal(t, 0, count(t, db, "street"))
	assert.Equal(t, 0, count(t, db, "region"))
}

const overlapDDL = `
CREATE TABLE tenant (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE project (
	tenant_id INTEGER NOT NULL REFERENCES tenant(id),
	code      TEXT NOT NULL,
	PRIMARY KEY (tenant_id, code)
);
CREATE TABLE task (
	id           INTEGER PRIMARY KEY,
	tenant_id    INTEGER NOT NULL REFERENCES tenant(id),
	project_code TEXT NOT NULL,
	FOREIGN KEY (tenant_id, project_code) REFERENCES project(tenant_id, code)
);
`

func TestLoadOverlappingForeignKeys(t *testing.T) {
	t.Run("temporary id is rejected", func(t *testing.T) {
		db := openDB(t, overlapDDL)
		frames := []Frame{
			{Table: "tenant", Rows: []Row{{"id": resolve.TempID("t1"), "name": "acme"}}},
			{Table: "project", Rows: []Row{{"tenant_id": resolve.TempID("t1"), "code": "P"}}},
			{Table: "task", Rows: []Row{{"tenant_id": resolve.TempID("t1"), "project_code": "P"}}},
		}
		_, err := RunInTx(context.Background(), db, "", frames, DefaultOptions())
		require.Error(t, err)
		assert.True(t, errs.IsInvalidInput(err))
		assert.Contains(t, err.Error(), "tenant_id")
		assert.Equal(t, 0, count(t, db, "tenant"))
	})

	t.Run("real values pass through", func(t *testing.T) {
		db := openDB(t, overlapDDL)
		frames := []Frame{
			{Table: "tenant", Rows: []Row{{"id": int64(7), "name": "acme"}}},
			{Table: "project", Rows: []Row{{"tenant_id": int64(7), "code": "P"}}},
			{Table: "task", Rows: []Row{{"tenant_id": int64(7), "project_code": "P"}}},
		}
		report, err := RunInTx(context.Background(), db, "", frames, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"tenant", "project", "task"}, report.Order)
		assert.Equal(t, 1, count(t, db, "task"))
	})
}

func TestTables(t *testing.T) {
	frames := []Frame{{Table: "b"}, {Table: "a"}, {Table: "b"}}
	assert.Equal(t, []string{"b", "a"}, Tables(frames))
}
