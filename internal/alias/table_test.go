package alias

import (
	"os"
	"path/filepath"
	"testing"
)

func loadFromContent(t *testing.T, content string) *Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aliases.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write alias file: %v", err)
	}
	table, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	return table
}

func TestLoadFile_ParsesValidLines(t *testing.T) {
	table := loadFromContent(t, "alias b buy 100%\nalias s sell 100%\n")
	if table.Len() != 2 {
		t.Fatalf("expected 2 aliases, got %d", table.Len())
	}
	if got := table.Resolve("b"); got != "buy 100%" {
		t.Errorf("Resolve(b) = %q", got)
	}
}

func TestLoadFile_IgnoresMalformedAndDuplicateLines(t *testing.T) {
	table := loadFromContent(t, "alias b buy 100%\nnotalias x y\nalias b sell 50%\nalias onlytwo\n")
	if table.Len() != 1 {
		t.Fatalf("expected 1 alias, got %d", table.Len())
	}
	// 重复定义保留首个。
	if got := table.Resolve("b"); got != "buy 100%" {
		t.Errorf("duplicate must keep first definition, got %q", got)
	}
}

func TestResolve_WholeLineMatchOnly(t *testing.T) {
	table := loadFromContent(t, "alias b buy 100%\n")
	if got := table.Resolve("b 1"); got != "b 1" {
		t.Errorf("prefix match must not rewrite, got %q", got)
	}
	if got := table.Resolve("  b  "); got != "buy 100%" {
		t.Errorf("trimmed whole-line match must rewrite, got %q", got)
	}
}

func TestLoadFile_MissingFileYieldsEmptyTable(t *testing.T) {
	table, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"), nil)
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d", table.Len())
	}
}
