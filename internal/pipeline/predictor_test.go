package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"risk-sentinel/internal/domain"
	"risk-sentinel/internal/ml"
	"risk-sentinel/internal/repository"
)

func crisisStudent() domain.StudentRecord {
	return domain.StudentRecord{
		ID:                    "STU900",
		Name:                  "Tinashe M.",
		GPA:                   []float64{3.4, 2.5, 1.7},
		Attendance:            ptr(30),
		LMSLogins:             ptr(1),
		FacilityAccess:        ptr(0),
		LibraryVisits:         ptr(0),
		AfterHoursSessions:    ptr(16),
		AssignmentSubmissions: ptr(1),
	}
}

func engagedStudent() domain.StudentRecord {
	return domain.StudentRecord{
		ID:                    "STU901",
		Name:                  "Rudo C.",
		GPA:                   []float64{3.7, 3.8, 3.8},
		Attendance:            ptr(95),
		LMSLogins:             ptr(28),
		FacilityAccess:        ptr(12),
		LibraryVisits:         ptr(9),
		AfterHoursSessions:    ptr(1),
		AssignmentSubmissions: ptr(10),
	}
}

func trainedPredictor(t *testing.T) (*Predictor, repository.ModelStore) {
	t.Helper()
	store := repository.NewMemoryModelStore()
	trainer, holder := newTestTrainer(store)
	if _, err := trainer.Train(context.Background(), syntheticRows(20), true); err != nil {
		t.Fatalf("train: %v", err)
	}
	return NewPredictor(holder, store), store
}

func TestPredict_ModelNotTrained(t *testing.T) {
	p := NewPredictor(NewModelHolder(), repository.NewMemoryModelStore())

	_, err := p.PredictOne(context.Background(), crisisStudent())
	if !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestPredict_EndToEnd(t *testing.T) {
	p, _ := trainedPredictor(t)
	ctx := context.Background()

	crisis, err := p.PredictOne(ctx, crisisStudent())
	if err != nil {
		t.Fatalf("predict crisis: %v", err)
	}
	if crisis.Tier != domain.TierHigh {
		t.Errorf("crisis profile tier = %s (risk %.3f), want high", crisis.Tier, crisis.Risk)
	}
	if crisis.Risk < 0.7 || crisis.Risk > 1 {
		t.Errorf("crisis risk = %.3f, want in [0.7, 1]", crisis.Risk)
	}
	if crisis.RawClass != domain.TierHigh {
		t.Errorf("crisis raw class = %s, want high", crisis.RawClass)
	}
	if len(crisis.Intervention) == 0 || crisis.Intervention[0] != "URGENT: Same-day counsellor contact required" {
		t.Errorf("unexpected high-tier interventions: %v", crisis.Intervention)
	}
	if crisis.Explanation == "" {
		t.Error("expected a narrative explanation")
	}

	if len(crisis.Attributions) == 0 || len(crisis.Attributions) > 6 {
		t.Fatalf("attribution count = %d, want 1..6", len(crisis.Attributions))
	}
	for i := 1; i < len(crisis.Attributions); i++ {
		if math.Abs(crisis.Attributions[i].Value) > math.Abs(crisis.Attributions[i-1].Value) {
			t.Fatalf("attributions not sorted by magnitude at %d", i)
		}
	}
	for _, a := range crisis.Attributions {
		wantDir := -1
		if a.Value > 0 {
			wantDir = 1
		}
		if a.Direction != wantDir {
			t.Errorf("attribution %q: dir %d does not match sign of %v", a.Feature, a.Direction, a.Value)
		}
	}

	engaged, err := p.PredictOne(ctx, engagedStudent())
	if err != nil {
		t.Fatalf("predict engaged: %v", err)
	}
	if engaged.Tier != domain.TierLow {
		t.Errorf("engaged profile tier = %s (risk %.3f), want low", engaged.Tier, engaged.Risk)
	}
	if engaged.Risk >= 0.4 {
		t.Errorf("engaged risk = %.3f, want < 0.4", engaged.Risk)
	}
}

func TestPredict_Deterministic(t *testing.T) {
	p, _ := trainedPredictor(t)
	ctx := context.Background()

	a, err := p.PredictOne(ctx, crisisStudent())
	if err != nil {
		t.Fatalf("first predict: %v", err)
	}
	b, err := p.PredictOne(ctx, crisisStudent())
	if err != nil {
		t.Fatalf("second predict: %v", err)
	}
	if a.Risk != b.Risk || a.Tier != b.Tier || a.RawClass != b.RawClass {
		t.Fatalf("inference is not deterministic: %+v vs %+v", a.PredictionResult, b.PredictionResult)
	}
}

func TestPredict_LoadsPersistedModel(t *testing.T) {
	p, store := trainedPredictor(t)
	ctx := context.Background()

	resident, err := p.PredictOne(ctx, crisisStudent())
	if err != nil {
		t.Fatalf("resident predict: %v", err)
	}

	// Un proceso nuevo sin modelo residente debe cargar el persistido y
	// producir exactamente el mismo resultado.
	fresh := NewPredictor(NewModelHolder(), store)
	reloaded, err := fresh.PredictOne(ctx, crisisStudent())
	if err != nil {
		t.Fatalf("reloaded predict: %v", err)
	}
	if resident.Risk != reloaded.Risk || resident.Tier != reloaded.Tier {
		t.Fatalf("persisted model predicts differently: %.6f/%s vs %.6f/%s",
			resident.Risk, resident.Tier, reloaded.Risk, reloaded.Tier)
	}
}

func TestPredict_FeatureSkew(t *testing.T) {
	store := repository.NewMemoryModelStore()
	ens, err := ml.Train([][]float64{{1, 0}, {0, 1}, {2, 2}}, []int{0, 1, 2}, riskClasses, []string{"a", "b"}, testParams())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	meta := repository.ModelMetadata{FeatureNames: []string{"a", "c"}, Trained: true}
	if err := store.Save(context.Background(), ens, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	p := NewPredictor(NewModelHolder(), store)
	_, err = p.PredictOne(context.Background(), crisisStudent())
	var skew *FeatureSkewError
	if !errors.As(err, &skew) {
		t.Fatalf("expected FeatureSkewError, got %v", err)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		risk float64
		want string
	}{
		{0.7, domain.TierHigh},
		{0.6999, domain.TierMedium},
		{0.4, domain.TierMedium},
		{0.3999, domain.TierLow},
		{0, domain.TierLow},
		{1, domain.TierHigh},
	}
	for _, tc := range cases {
		if got := tierFor(tc.risk); got != tc.want {
			t.Errorf("tierFor(%v) = %s, want %s", tc.risk, got, tc.want)
		}
	}
}

func TestClip01(t *testing.T) {
	if clip01(-0.2) != 0 || clip01(1.3) != 1 || clip01(0.5) != 0.5 {
		t.Fatal("clip01 does not clamp to [0,1]")
	}
}
