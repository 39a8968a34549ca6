package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The store column lists and the migrated schema must agree, or every
// select fails at runtime.
func TestStoreColumnsExistInSchema(t *testing.T) {
	ddl, err := os.ReadFile(filepath.Join("..", "..", "ops", "migrations", "sql", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	cases := []struct {
		table   string
		columns string
	}{
		{"users", identityColumns},
		{"organizations", orgColumns},
	}
	for _, tc := range cases {
		body := tableBody(t, string(ddl), tc.table)
		for _, col := range strings.Split(tc.columns, ",") {
			col = strings.TrimSpace(col)
			if !strings.Contains(body, col) {
				t.Errorf("%s store selects %q but the %s DDL lacks it", tc.table, col, tc.table)
			}
		}
	}
}

func tableBody(t *testing.T, ddl, table string) string {
	t.Helper()
	marker := "create table if not exists " + table + " ("
	start := strings.Index(ddl, marker)
	if start < 0 {
		t.Fatalf("no create table statement for %s", table)
	}
	rest := ddl[start+len(marker):]
	end := strings.Index(rest, ");")
	if end < 0 {
		t.Fatalf("unterminated create table statement for %s", table)
	}
	return rest[:end]
}
