package hybrid

import (
	"fmt"
	"math"
	"testing"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

func TestFuse_Scores(t *testing.T) {
	a := []retrieval.Document{doc("x", 3), doc("y", 2)}
	b := []retrieval.Document{doc("y", 10)}

	got := Fuse(60, a, b)
	if fmt.Sprint(ids(got)) != "[y x]" {
		t.Fatalf("Fuse() = %v", ids(got))
	}
	if want := 1.0/61 + 1.0/60; math.Abs(got[0].Score-want) > 1e-12 {
		t.Errorf("y score = %v, want %v", got[0].Score, want)
	}
	if want := 1.0 / 60; math.Abs(got[1].Score-want) > 1e-12 {
		t.Errorf("x score = %v, want %v", got[1].Score, want)
	}
}

func TestFuse_RanksByOwnScore(t *testing.T) {
	unsorted := []retrieval.Document{doc("low", 0.1), doc("high", 0.9)}
	got := Fuse(60, unsorted)
	if got[0].ID != "high" {
		t.Errorf("Fuse() = %v, want high first", ids(got))
	}
}

func TestFuse_MoreListsNeverLowers(t *testing.T) {
	base := []retrieval.Document{doc("p", 1), doc("q", 0.5), doc("r", 0.2)}
	extra := []retrieval.Document{doc("s", 1), doc("p", 0.3)}

	one := scoreOf(Fuse(60, base), "p")
	two := scoreOf(Fuse(60, base, extra), "p")
	if two < one {
		t.Errorf("score fell from %v to %v when p appeared in another list", one, two)
	}
}

func TestFuse_StableTies(t *testing.T) {
	a := []retrieval.Document{doc("first", 1)}
	b := []retrieval.Document{doc("second", 1)}
	got := Fuse(60, a, b)
	if fmt.Sprint(ids(got)) != "[first second]" {
		t.Errorf("Fuse() = %v", ids(got))
	}
}

func TestFuse_ContentIdentity(t *testing.T) {
	a := []retrieval.Document{{Content: "cùng đoạn", Score: 1}}
	b := []retrieval.Document{{Content: "cùng đoạn", Score: 5}}
	if got := Fuse(60, a, b); len(got) != 1 {
		t.Errorf("Fuse() = %d docs, want 1", len(got))
	}
}

func TestFuse_DoesNotMutateInput(t *testing.T) {
	in := []retrieval.Document{doc("a", 0.5)}
	Fuse(60, in)
	if in[0].Score != 0.5 {
		t.Errorf("input score mutated to %v", in[0].Score)
	}
}

func scoreOf(docs []retrieval.Document, id string) float64 {
	for _, d := range docs {
		if d.ID == id {
			return d.Score
		}
	}
	return 0
}
