package builddb

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "build.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndReadCompilation(t *testing.T) {
	db := openTestDB(t)

	start := time.Now().Truncate(time.Second)
	err := db.RecordCompilation("obj/widget.cpp.o", CompletedCompilation{
		Command:       "g++ -c widget.cpp -o widget.cpp.o",
		Output:        "warning: unused variable",
		Duration:      2 * time.Second,
		ToolchainHash: "abc123",
		CompileStart:  start,
	})
	if err != nil {
		t.Fatalf("RecordCompilation: %v", err)
	}

	got, ok, err := db.CommandOf("obj/widget.cpp.o")
	if err != nil || !ok {
		t.Fatalf("CommandOf: ok=%v err=%v", ok, err)
	}
	if got.Command != "g++ -c widget.cpp -o widget.cpp.o" || got.ToolchainHash != "abc123" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CompileStart.Equal(start) {
		t.Fatalf("compile start mismatch: got %v want %v", got.CompileStart, start)
	}
}

func TestCommandOfMissingReturnsNotOK(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.CommandOf("nope.o")
	if err != nil {
		t.Fatalf("CommandOf: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a never-recorded output")
	}
}

func TestForgetInputsOfClearsPriorInputs(t *testing.T) {
	db := openTestDB(t)
	if err := db.RecordCompilation("a.o", CompletedCompilation{Command: "cc a.c -o a.o"}); err != nil {
		t.Fatalf("RecordCompilation: %v", err)
	}
	mtime := time.Now().Truncate(time.Second)
	if err := db.RecordInput("a.o", "a.c", mtime); err != nil {
		t.Fatalf("RecordInput: %v", err)
	}
	if err := db.RecordInput("a.o", "a.h", mtime); err != nil {
		t.Fatalf("RecordInput: %v", err)
	}

	inputs, ok, err := db.InputsOf("a.o")
	if err != nil || !ok || len(inputs) != 2 {
		t.Fatalf("InputsOf before forget: ok=%v err=%v inputs=%+v", ok, err, inputs)
	}

	if err := db.ForgetInputsOf("a.o"); err != nil {
		t.Fatalf("ForgetInputsOf: %v", err)
	}
	inputs, ok, err = db.InputsOf("a.o")
	if err != nil || !ok || len(inputs) != 0 {
		t.Fatalf("InputsOf after forget: ok=%v err=%v inputs=%+v", ok, err, inputs)
	}
}

func TestRecordInputUpsertsMtime(t *testing.T) {
	db := openTestDB(t)
	if err := db.RecordCompilation("a.o", CompletedCompilation{Command: "cc a.c -o a.o"}); err != nil {
		t.Fatalf("RecordCompilation: %v", err)
	}
	first := time.Now().Add(-time.Hour).Truncate(time.Second)
	second := time.Now().Truncate(time.Second)
	if err := db.RecordInput("a.o", "a.c", first); err != nil {
		t.Fatalf("RecordInput: %v", err)
	}
	if err := db.RecordInput("a.o", "a.c", second); err != nil {
		t.Fatalf("RecordInput (update): %v", err)
	}

	inputs, _, err := db.InputsOf("a.o")
	if err != nil {
		t.Fatalf("InputsOf: %v", err)
	}
	if len(inputs) != 1 {
		t.Fatalf("expected the upsert to keep exactly one row, got %+v", inputs)
	}
	if !inputs[0].MTime.Equal(second) {
		t.Fatalf("expected updated mtime %v, got %v", second, inputs[0].MTime)
	}
}
