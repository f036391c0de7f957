package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x Int32);

-- second
CREATE TABLE b (
    y String
);
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x Int32)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b (") {
		t.Errorf("unexpected second statement %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings(`SELECT 'a''b'; SELECT 1;`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings(`SELECT 'a;b'`); err == nil {
		t.Error("expected error for semicolon inside string")
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	for _, tc := range []struct {
		dir   string
		files int
	}{
		{"postgres", 2},
		{"clickhouse", 1},
		{"sqlite", 1},
	} {
		var fsys = PostgresFS
		switch tc.dir {
		case "clickhouse":
			fsys = ClickhouseFS
		case "sqlite":
			fsys = SqliteFS
		}

		files, err := load(fsys, tc.dir)
		if err != nil {
			t.Fatalf("%s: load failed: %v", tc.dir, err)
		}
		if len(files) != tc.files {
			t.Errorf("%s: expected %d files, got %d", tc.dir, tc.files, len(files))
		}
		if _, err := statements(files); err != nil {
			t.Errorf("%s: %v", tc.dir, err)
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/lab")
	if err != nil || db != "lab" {
		t.Errorf("expected lab, got %q, %v", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for missing database")
	}
}
