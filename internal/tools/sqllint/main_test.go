package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLinter(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.go": "const QOne = `--sql 11111111-1111-4111-8111-111111111111\nselect 1;`\n" +
			"const Prose = \"please select a style\"\n" +
			"const QBare = `select 2;`\n",
		"b.go": "const QTwo = `--sql 11111111-1111-4111-8111-111111111111\ndelete from jobs;`\n" +
			"const QBad = `--sql not-a-uuid\nupdate jobs set x = 1;`\n",
		"c.go": "var QVar = \"--sql 22222222-2222-4222-8222-222222222222\\nselect 3;\"\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("package q\n\n"+body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "_skip"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "_skip", "x.go"), []byte("package x\nconst Q = `select 9;`\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := newLinter()
	if err := l.walk(dir); err != nil {
		t.Fatalf("walk: %v", err)
	}

	got := map[string]string{}
	for _, v := range l.found {
		got[v.name] = v.message
	}
	if len(got) != 3 {
		t.Fatalf("want 3 violations, got %v", l.found)
	}
	if !strings.Contains(got["QBare"], "missing") {
		t.Errorf("QBare: %q", got["QBare"])
	}
	if !strings.Contains(got["QBad"], "malformed") {
		t.Errorf("QBad: %q", got["QBad"])
	}
	if !strings.Contains(got["QTwo"], "QOne") {
		t.Errorf("QTwo should name the first owner: %q", got["QTwo"])
	}
}
