package imagepipeline

import (
	"testing"

	"github.com/vellumapp/platform/internal/domain"
)

func paintFixture() domain.Paint {
	return domain.Paint{
		ID: "p1",
		Layers: []domain.PaintLayer{
			{ID: "l1"},
			{ID: "l2"},
		},
	}
}

func TestParseSubject_Emote(t *testing.T) {
	target, err := parseSubject("cb.", "cb.emote.abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Kind != "emote" || target.ID != "abc123" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseSubject_ProfilePicture(t *testing.T) {
	target, err := parseSubject("cb.", "cb.profile-picture.u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Kind != "profile-picture" || target.ID != "u1" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseSubject_Badge(t *testing.T) {
	target, err := parseSubject("cb.", "cb.badge.og")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Kind != "badge" || target.ID != "og" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseSubject_PaintLayer(t *testing.T) {
	target, err := parseSubject("cb.", "cb.paint.p1.layer.l2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Kind != "paint" || target.ID != "p1" || target.LayerID != "l2" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseSubject_Unrecognized(t *testing.T) {
	if _, err := parseSubject("cb.", "cb.unknown.x"); err == nil {
		t.Fatal("expected error for unrecognized subject shape")
	}
}

func TestPaintLayer_FindsByID(t *testing.T) {
	paint := paintFixture()
	layer := paintLayer(&paint, "l2")
	if layer == nil {
		t.Fatal("expected to find layer l2")
	}
	if layer.ID != "l2" {
		t.Fatalf("unexpected layer: %+v", layer)
	}
}

func TestPaintLayer_MissingReturnsNil(t *testing.T) {
	paint := paintFixture()
	if paintLayer(&paint, "missing") != nil {
		t.Fatal("expected nil for unknown layer id")
	}
}
