package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndKindOf(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(Embedding, base)
	if KindOf(err) != Embedding {
		t.Errorf("KindOf = %q, want %q", KindOf(err), Embedding)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to base")
	}
	if !Is(err, Embedding) || Is(err, Index) {
		t.Error("Is should match only the carried kind")
	}
}

func TestWrap_nil(t *testing.T) {
	if Wrap(Index, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrap_preservesExistingKind(t *testing.T) {
	inner := New(Extraction, "bad pdf")
	outer := Wrap(Index, fmt.Errorf("pipeline: %w", inner))
	if KindOf(outer) != Extraction {
		t.Errorf("KindOf = %q, want %q", KindOf(outer), Extraction)
	}
}

func TestKindOf_unclassified(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have empty kind")
	}
	if KindOf(nil) != "" {
		t.Error("nil error should have empty kind")
	}
}
