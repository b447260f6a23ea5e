package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"risk-sentinel/internal/ml"
)

func TestMemoryModelStore_EmptyLoad(t *testing.T) {
	store := NewMemoryModelStore()
	if _, _, err := store.Load(context.Background()); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestMemoryModelStore_RoundTrip(t *testing.T) {
	store := NewMemoryModelStore()
	ctx := context.Background()

	names := []string{"gpa_sem1", "attendance", "behavioral_risk_score"}
	tree := ml.Tree{Nodes: []ml.Node{
		{Feature: 1, Threshold: 50, Left: 1, Right: 2, Cover: 10},
		{Leaf: true, Value: 0.3, Cover: 4},
		{Leaf: true, Value: -0.1, Cover: 6},
	}}
	ens := &ml.Ensemble{
		Classes:      []string{"low", "medium", "high"},
		FeatureNames: names,
		Trees:        [][]ml.Tree{{tree}, {tree}, {tree}},
		Params:       ml.DefaultParams(),
		TrainedAt:    time.Now().UTC().Truncate(time.Second),
	}
	meta := ModelMetadata{FeatureNames: names, TrainedAt: ens.TrainedAt, Trained: true}

	if err := store.Save(ctx, ens, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, loadedMeta, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// El sidecar debe reproducir la lista canónica idéntica en contenido y
	// orden, y el ensamble debe predecir igual que antes de persistir.
	if len(loadedMeta.FeatureNames) != len(names) {
		t.Fatalf("sidecar has %d features, want %d", len(loadedMeta.FeatureNames), len(names))
	}
	for i := range names {
		if loadedMeta.FeatureNames[i] != names[i] {
			t.Fatalf("sidecar feature %d = %q, want %q", i, loadedMeta.FeatureNames[i], names[i])
		}
	}
	if !loadedMeta.Trained {
		t.Error("sidecar lost the trained flag")
	}

	x := []float64{3.2, 40, 1.5}
	want := ens.RawScores(x)
	got := loaded.RawScores(x)
	for k := range want {
		if want[k] != got[k] {
			t.Fatalf("class %d: raw score %v after round-trip, want %v", k, got[k], want[k])
		}
	}
}
