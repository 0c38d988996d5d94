package biometric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxdial/voxdial/internal/observe"
)

// Sample is one enrollment submission produced by the transcription
// front-end: a feature vector extracted from the member's voice plus the
// front-end's quality estimate for the recording.
type Sample struct {
	// Features is the extracted voice feature vector. May be empty when the
	// front-end provides no embedding; the sample still counts.
	Features []float32

	// Quality is the recording quality estimate in [0, 1].
	Quality float64
}

// EnrollmentProgress is the result of one enrollment submission.
type EnrollmentProgress struct {
	// MemberID is the enrolling member.
	MemberID string

	// State is the profile state after this submission.
	State EnrollmentState

	// Samples is the accepted sample count after this submission.
	Samples int

	// RequiredSamples is the count needed to complete enrollment.
	RequiredSamples int

	// Percent is the completion percentage, capped at 100.
	Percent int

	// QualityGrade labels the best quality seen so far
	// (excellent, good, or fair).
	QualityGrade string
}

// Enroller processes enrollment submissions against a profile [Store].
//
// All methods are safe for concurrent use if the underlying store is:
// submissions for the same member are serialised through
// [Store.UpdateIfSamples], so no sample increment is ever lost.
type Enroller struct {
	store   Store
	logger  *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time
}

// EnrollerOption configures an [Enroller].
type EnrollerOption func(*Enroller)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) EnrollerOption {
	return func(e *Enroller) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) EnrollerOption {
	return func(e *Enroller) {
		e.metrics = m
	}
}

// NewEnroller returns an [Enroller] backed by store.
func NewEnroller(store Store, opts ...EnrollerOption) *Enroller {
	e := &Enroller{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// enrollAttempts bounds the optimistic-concurrency retries when submissions
// for the same member race.
const enrollAttempts = 3

// EnrollSample records one accepted voice sample for memberID and returns
// the member's updated enrollment progress.
//
// The sample counter is incremented, the voiceprint is merged with the
// sample's feature vector (running mean), and the state flips to
// [StateEnrolled] once the counter reaches the required count. Owner samples
// receive a quality bonus, mirroring the higher trust placed in the account
// owner's recordings. Progress is monotonic: a submission never lowers the
// reported percentage.
func (e *Enroller) EnrollSample(ctx context.Context, memberID string, sample Sample) (EnrollmentProgress, error) {
	for attempt := 1; ; attempt++ {
		progress, err := e.enrollOnce(ctx, memberID, sample)
		if errors.Is(err, ErrStaleProfile) && attempt < enrollAttempts {
			continue
		}
		if err != nil {
			return EnrollmentProgress{}, fmt.Errorf("biometric: enroll sample: %w", err)
		}
		return progress, nil
	}
}

func (e *Enroller) enrollOnce(ctx context.Context, memberID string, sample Sample) (EnrollmentProgress, error) {
	p, err := e.store.Get(ctx, memberID)
	if err != nil {
		return EnrollmentProgress{}, err
	}
	expected := p.Samples

	quality := sample.Quality
	if p.Owner {
		quality += ownerQualityBonus
	}
	quality = min(quality, 1)

	p.Samples++
	if quality > p.Quality {
		p.Quality = quality
	}
	p.Voiceprint = mergeVoiceprint(p.Voiceprint, sample.Features, p.Samples)

	required := p.RequiredSamples
	if required <= 0 {
		required = DefaultRequiredSamples
		p.RequiredSamples = required
	}

	completed := false
	switch {
	case p.Samples >= required:
		if p.State != StateEnrolled {
			p.EnrolledAt = e.now()
			completed = true
		}
		p.State = StateEnrolled
	default:
		p.State = StatePartial
	}

	if err := e.store.UpdateIfSamples(ctx, p, expected); err != nil {
		return EnrollmentProgress{}, err
	}

	e.metrics.RecordEnrollmentSample(ctx, string(p.State))
	if completed {
		e.logger.Info("voice enrollment completed",
			"member_id", memberID,
			"samples", p.Samples,
			"quality", p.QualityGrade(),
		)
	}
	return progressOf(p), nil
}

// Progress returns the current enrollment progress for memberID without
// mutating the profile. Idempotent to query at any time.
func (e *Enroller) Progress(ctx context.Context, memberID string) (EnrollmentProgress, error) {
	p, err := e.store.Get(ctx, memberID)
	if err != nil {
		return EnrollmentProgress{}, fmt.Errorf("biometric: progress: %w", err)
	}
	return progressOf(p), nil
}

// progressOf builds an [EnrollmentProgress] snapshot from a profile.
func progressOf(p VoiceProfile) EnrollmentProgress {
	required := p.RequiredSamples
	if required <= 0 {
		required = DefaultRequiredSamples
	}
	return EnrollmentProgress{
		MemberID:        p.MemberID,
		State:           p.State,
		Samples:         p.Samples,
		RequiredSamples: required,
		Percent:         p.Progress(),
		QualityGrade:    p.QualityGrade(),
	}
}

// mergeVoiceprint folds a new feature vector into the running mean voiceprint.
// n is the total sample count including the new sample. A nil or
// mismatched-length feature vector leaves the voiceprint unchanged.
func mergeVoiceprint(current, features []float32, n int) []float32 {
	if len(features) == 0 {
		return current
	}
	if len(current) == 0 {
		merged := make([]float32, len(features))
		copy(merged, features)
		return merged
	}
	if len(current) != len(features) || n <= 0 {
		return current
	}

	merged := make([]float32, len(current))
	for i := range current {
		merged[i] = current[i] + (features[i]-current[i])/float32(n)
	}
	return merged
}
