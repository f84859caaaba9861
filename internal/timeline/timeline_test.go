package timeline_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/timeline"
)

func at(sec int) domain.Timestamp {
	return domain.Timestamp{Time: time.Unix(int64(sec), 0).UTC()}
}

func TestAssemble_NewestFirst(t *testing.T) {
	builds := []domain.Build{
		{ID: "T1", DateCreated: at(10)},
		{ID: "T2", DateCreated: at(30)},
	}
	seed := domain.Seed{Commit: &domain.Commit{SHA: "T0", DateCommitted: at(5)}}

	items := timeline.Assemble(builds, seed)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Build.ID != "T2" || items[1].Build.ID != "T1" {
		t.Errorf("unexpected build order: %s, %s", items[0].Build.ID, items[1].Build.ID)
	}
	if items[2].Kind != timeline.KindCommit || items[2].Commit.SHA != "T0" {
		t.Errorf("expected commit last, got %+v", items[2])
	}
}

func TestAssemble_TiesKeepInputOrder(t *testing.T) {
	builds := []domain.Build{
		{ID: "a", DateCreated: at(10)},
		{ID: "b", DateCreated: at(10)},
	}
	seed := domain.Seed{Diff: &domain.Diff{ID: "d", DateCreated: at(10)}}

	items := timeline.Assemble(builds, seed)
	got := []string{items[0].Build.ID, items[1].Build.ID, string(items[2].Kind)}
	want := []string{"a", "b", string(timeline.KindDiff)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestAssemble_DiffUpdatesUseUpdateTime(t *testing.T) {
	seed := domain.Seed{
		Diff: &domain.Diff{ID: "d", DateCreated: at(1)},
		Updates: []domain.DiffUpdate{
			{DiffID: 1, DateCreated: at(2), Builds: []domain.Build{{ID: "x"}}},
			{DiffID: 2, DateCreated: at(20)},
		},
	}
	builds := []domain.Build{{ID: "x", DateCreated: at(3)}}

	items := timeline.Assemble(builds, seed)
	kinds := make([]timeline.Kind, len(items))
	for i, it := range items {
		kinds[i] = it.Kind
	}
	want := []timeline.Kind{timeline.KindDiffUpdate, timeline.KindBuild, timeline.KindDiffUpdate, timeline.KindDiff}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("expected %v, got %v", want, kinds)
	}
	if items[0].Update.DiffID != 2 {
		t.Errorf("expected newest update first, got %d", items[0].Update.DiffID)
	}
	if seed.Updates[0].Builds == nil {
		t.Error("Assemble must not mutate its input")
	}
}

func TestAssemble_IsIdempotent(t *testing.T) {
	builds := []domain.Build{{ID: "a", DateCreated: at(4)}, {ID: "b", DateCreated: at(4)}, {ID: "c", DateCreated: at(9)}}
	seed := domain.Seed{Commit: &domain.Commit{DateCreated: at(4)}}

	first := timeline.Assemble(builds, seed)
	second := timeline.Assemble(builds, seed)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}
	ids := timeline.Builds(first)
	if len(ids) != 3 || ids[0].ID != "c" || ids[1].ID != "a" || ids[2].ID != "b" {
		t.Errorf("unexpected build order: %+v", ids)
	}
}

func TestAssemble_EmptySeed(t *testing.T) {
	if items := timeline.Assemble(nil, domain.Seed{}); len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}
