package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/surveyledger/surveyledger/internal/services/engine/domain/snapshot"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/state"
	"github.com/surveyledger/surveyledger/internal/services/engine/domain/survey"
	"github.com/surveyledger/surveyledger/internal/services/engine/storage"
)

func sampleCalc() state.CalculatedState {
	calc := state.NewCalculatedState()
	calc.Surveys["s-1"] = survey.Survey{
		ID:          "s-1",
		Creator:     "creator-1",
		Questions:   []string{"q1"},
		TokenReward: big.NewInt(10),
	}
	calc.TotalSurveys = 1
	return calc
}

func TestStateRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, _, err := s.GetState(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty get error = %v, want %v", err, storage.ErrNotFound)
	}

	if err := s.SetState(ctx, 3, sampleCalc()); err != nil {
		t.Fatalf("set state: %v", err)
	}

	ordinal, calc, err := s.GetState(ctx)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if ordinal != 3 {
		t.Fatalf("ordinal = %d, want 3", ordinal)
	}
	if calc.TotalSurveys != 1 {
		t.Fatalf("total surveys = %d, want 1", calc.TotalSurveys)
	}

	// Mutating the returned copy must not touch the stored record.
	calc.TotalSurveys = 99
	calc.Surveys["s-1"].TokenReward.SetInt64(0)
	_, again, err := s.GetState(ctx)
	if err != nil {
		t.Fatalf("get state again: %v", err)
	}
	if again.TotalSurveys != 1 || again.Surveys["s-1"].TokenReward.Cmp(big.NewInt(10)) != 0 {
		t.Fatal("stored state aliased by caller mutation")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty latest error = %v, want %v", err, storage.ErrNotFound)
	}

	for ordinal := uint64(1); ordinal <= 3; ordinal++ {
		snap := snapshot.Take(sampleCalc(), ordinal-1, time.Now())
		if err := s.PutSnapshot(ctx, snap); err != nil {
			t.Fatalf("put snapshot %d: %v", ordinal, err)
		}
	}

	got, err := s.GetSnapshot(ctx, 2)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.Ordinal != 2 {
		t.Fatalf("ordinal = %d, want 2", got.Ordinal)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if latest.Ordinal != 3 {
		t.Fatalf("latest ordinal = %d, want 3", latest.Ordinal)
	}

	if _, err := s.GetSnapshot(ctx, 9); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing snapshot error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListSnapshotsDescending(t *testing.T) {
	s := New()
	ctx := context.Background()

	for ordinal := uint64(1); ordinal <= 5; ordinal++ {
		if err := s.PutSnapshot(ctx, snapshot.Take(sampleCalc(), ordinal-1, time.Now())); err != nil {
			t.Fatalf("put snapshot %d: %v", ordinal, err)
		}
	}

	got, err := s.ListSnapshots(ctx, 3)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(got))
	}
	for i, want := range []uint64{5, 4, 3} {
		if got[i].Ordinal != want {
			t.Fatalf("snapshot %d ordinal = %d, want %d", i, got[i].Ordinal, want)
		}
	}
}

func TestTelemetryRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		evt := storage.TelemetryEvent{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Operation: "batch.applied",
			Code:      "OK",
		}
		if err := s.AppendTelemetryEvent(ctx, evt); err != nil {
			t.Fatalf("append telemetry: %v", err)
		}
	}

	got, err := s.ListTelemetryEvents(ctx, 2)
	if err != nil {
		t.Fatalf("list telemetry: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if !got[0].Timestamp.After(got[1].Timestamp) {
		t.Fatal("events not ordered by time descending")
	}
}
