package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLintFileFlagsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	path := writeGo(t, dir, "q.go", "package q\n\n"+
		"const QGood = `--sql 3b80d1cd-2a63-4ddc-b65d-a6d77d7e9297\nselect 1;\n`\n\n"+
		"const QBad = `\nselect 2;\n`\n\n"+
		"const Greeting = \"hello\"\n")

	violations, statements, err := lintFile(path)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 || violations[0].name != "QBad" {
		t.Fatalf("violations = %+v, want QBad only", violations)
	}
	if len(statements) != 1 || statements[0].marker != "3b80d1cd-2a63-4ddc-b65d-a6d77d7e9297" {
		t.Fatalf("statements = %+v", statements)
	}
}

func TestDuplicateMarkersAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 0f28771b-0853-4de3-b6cd-1006ca4ca405"
	writeGo(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nselect 1;\n`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\ndelete from t;\n`\n")

	violations, statements, err := lintTarget(dir)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 || len(statements) != 2 {
		t.Fatalf("violations = %+v statements = %+v", violations, statements)
	}
	dups := duplicateMarkers(statements)
	if len(dups) != 1 || dups[0].name != "QB" || !strings.Contains(dups[0].message, "QA") {
		t.Fatalf("duplicates = %+v", dups)
	}
}

func TestRepositoryStatementsAreMarked(t *testing.T) {
	violations, statements, err := lintTarget(filepath.Join("..", "..", "sqlinline"))
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %+v", violations)
	}
	if dups := duplicateMarkers(statements); len(dups) != 0 {
		t.Fatalf("duplicate markers = %+v", dups)
	}
	if len(statements) == 0 {
		t.Fatal("expected statements in sqlinline")
	}
}
