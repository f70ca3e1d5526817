package fileid

import (
	"strings"
	"testing"
)

func TestDocID_deterministic(t *testing.T) {
	id1 := DocID("/drop/paper.pdf")
	id2 := DocID("/drop/paper.pdf")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID missing prefix: %q", id1)
	}
}

func TestDocID_differentPaths(t *testing.T) {
	if DocID("/drop/a.pdf") == DocID("/drop/b.pdf") {
		t.Error("different paths should give different IDs")
	}
}

func TestDocID_normalized(t *testing.T) {
	id1 := DocID("/drop/paper.pdf")
	id2 := DocID("/drop/./paper.pdf")
	id3 := DocID("/drop//paper.pdf")
	if id1 != id2 || id1 != id3 {
		t.Errorf("equivalent paths should normalize to one ID: %q %q %q", id1, id2, id3)
	}
}
