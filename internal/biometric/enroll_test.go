package biometric

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voxdial/voxdial/internal/observe"
)

func TestEnrollSample(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("samples accumulate until enrolled", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1"})
		enr := NewEnroller(store)

		var last EnrollmentProgress
		for i := 0; i < DefaultRequiredSamples; i++ {
			p, err := enr.EnrollSample(ctx, "m-1", Sample{Quality: 0.8})
			if err != nil {
				t.Fatalf("sample %d: unexpected error: %v", i+1, err)
			}
			if p.Percent < last.Percent {
				t.Fatalf("progress went backwards: %d after %d", p.Percent, last.Percent)
			}
			last = p
		}

		if last.State != StateEnrolled {
			t.Fatalf("want enrolled after %d samples, got %s", DefaultRequiredSamples, last.State)
		}
		if last.Percent != 100 {
			t.Fatalf("want 100%%, got %d", last.Percent)
		}

		got, err := store.Get(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.EnrolledAt.IsZero() {
			t.Fatal("want enrolled-at timestamp set")
		}
	})

	t.Run("progress caps at 100 past the required count", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1", RequiredSamples: 2})
		enr := NewEnroller(store)

		for i := 0; i < 4; i++ {
			if _, err := enr.EnrollSample(ctx, "m-1", Sample{Quality: 0.5}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		p, err := enr.Progress(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Percent != 100 || p.Samples != 4 {
			t.Fatalf("want 100%% with 4 samples, got %+v", p)
		}
	})

	t.Run("owner samples get quality bonus", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1", Owner: true})
		enr := NewEnroller(store)

		if _, err := enr.EnrollSample(ctx, "m-1", Sample{Quality: 0.88}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.Get(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(got.Quality-0.93) > 1e-9 {
			t.Fatalf("want quality 0.93 (0.88 + owner bonus), got %v", got.Quality)
		}
		if got.QualityGrade() != "excellent" {
			t.Fatalf("want excellent grade, got %s", got.QualityGrade())
		}
	})

	t.Run("voiceprint is the running mean of features", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1"})
		enr := NewEnroller(store)

		if _, err := enr.EnrollSample(ctx, "m-1", Sample{Features: []float32{1, 3}, Quality: 0.5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := enr.EnrollSample(ctx, "m-1", Sample{Features: []float32{3, 5}, Quality: 0.5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.Get(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []float32{2, 4}
		if len(got.Voiceprint) != 2 || got.Voiceprint[0] != want[0] || got.Voiceprint[1] != want[1] {
			t.Fatalf("want voiceprint %v, got %v", want, got.Voiceprint)
		}
	})

	t.Run("sample without features keeps existing voiceprint", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1"})
		enr := NewEnroller(store)

		if _, err := enr.EnrollSample(ctx, "m-1", Sample{Features: []float32{2, 2}, Quality: 0.5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := enr.EnrollSample(ctx, "m-1", Sample{Quality: 0.5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.Get(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Voiceprint) != 2 || got.Voiceprint[0] != 2 {
			t.Fatalf("want voiceprint preserved, got %v", got.Voiceprint)
		}
	})

	t.Run("enrolling unknown member fails", func(t *testing.T) {
		t.Parallel()
		enr := NewEnroller(NewMemStore())
		if _, err := enr.EnrollSample(ctx, "ghost", Sample{Quality: 0.5}); err == nil {
			t.Fatal("want error for unknown member")
		}
	})

	t.Run("concurrent submissions lose no samples", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1"})
		enr := NewEnroller(store)

		const submissions = 3
		var wg sync.WaitGroup
		errs := make([]error, submissions)
		for i := 0; i < submissions; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = enr.EnrollSample(ctx, "m-1", Sample{Quality: 0.5})
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("submission %d: unexpected error: %v", i, err)
			}
		}
		got, err := store.Get(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Samples != submissions {
			t.Fatalf("want %d samples, got %d", submissions, got.Samples)
		}
	})
}

func TestEnrollSampleRecordsMetric(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1"})
	enr := NewEnroller(store,
		WithMetrics(metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	for i := 0; i < 3; i++ {
		if _, err := enr.EnrollSample(ctx, "m-1", Sample{Quality: 0.5}); err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i+1, err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			if met.Name != "voxdial.enrollment.samples" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", met.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 3 {
		t.Fatalf("want 3 recorded enrollment samples, got %d", total)
	}
}

func TestUpdateIfSamples(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stale count rejected", func(t *testing.T) {
		t.Parallel()
		store := seedProfile(t, VoiceProfile{MemberID: "m-1", AccountID: "acc-1"})

		p, err := store.Get(ctx, "m-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Another writer bumps the count first.
		bumped := p
		bumped.Samples++
		if err := store.Update(ctx, bumped); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		p.Samples++
		if err := store.UpdateIfSamples(ctx, p, 0); !errors.Is(err, ErrStaleProfile) {
			t.Fatalf("want ErrStaleProfile, got %v", err)
		}
	})

	t.Run("unknown member", func(t *testing.T) {
		t.Parallel()
		store := NewMemStore()
		err := store.UpdateIfSamples(ctx, VoiceProfile{MemberID: "ghost"}, 0)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})
}
