package executor

import (
	"testing"
	"time"
)

func TestClampMTimeUsesEarlierOfInputAndCompileStart(t *testing.T) {
	start := time.Now()
	earlier := start.Add(-time.Minute)
	later := start.Add(time.Minute)

	if got := clampMTime(earlier, start); !got.Equal(earlier) {
		t.Fatalf("expected earlier input mtime to pass through unclamped, got %v", got)
	}
	if got := clampMTime(later, start); !got.Equal(start) {
		t.Fatalf("expected a future input mtime to clamp to compile start, got %v", got)
	}
}

func TestQuoteCommandJoinsWithSpaces(t *testing.T) {
	got := quoteCommand([]string{"g++", "-c", "widget.cpp", "-o", "widget.cpp.o"})
	want := "g++ -c widget.cpp -o widget.cpp.o"
	if got != want {
		t.Fatalf("quoteCommand = %q, want %q", got, want)
	}
}
