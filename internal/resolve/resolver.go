// Package resolve composes the authority gate, usage gate, match scorer and
// lifecycle tracker into the single request/response cycle that turns an
// utterance into a dispatched action.
//
// The pipeline short-circuits on the first denial and creates the action
// record last, so an upstream denial never leaves an orphaned record behind.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxdial/voxdial/internal/biometric"
	"github.com/voxdial/voxdial/internal/intent"
	"github.com/voxdial/voxdial/internal/lifecycle"
	"github.com/voxdial/voxdial/internal/observe"
	"github.com/voxdial/voxdial/internal/registry"
	"github.com/voxdial/voxdial/internal/subscription"
	"github.com/voxdial/voxdial/pkg/platform"
)

// Request is one resolution attempt.
type Request struct {
	// AccountID is the account the command runs against.
	AccountID string

	// SpeakerClaim is the member ID the transcription layer attributed the
	// utterance to.
	SpeakerClaim string

	// ConfidenceObserved is the voice-match confidence reported by the
	// recognition front-end, in [0, 1].
	ConfidenceObserved float64

	// Utterance is the transcribed command text.
	Utterance string
}

// DispatchResult is the successful outcome of a resolution.
type DispatchResult struct {
	// RecordID identifies the action record created in its initiated state.
	RecordID string

	// MemberID is the authorized speaker.
	MemberID string

	// Candidate is the resolved target.
	Candidate registry.Candidate

	// Kind is the dispatched action kind.
	Kind lifecycle.ActionKind

	// Score is the winning match score.
	Score int
}

// Resolver runs the resolution pipeline. All methods are safe for
// concurrent use; beyond the stores, concurrent resolutions share only the
// live-call handle table, which has its own lock.
type Resolver struct {
	authority     *biometric.Gate
	subscriptions subscription.Store
	candidates    registry.Store
	tracker       *lifecycle.Tracker
	dispatcher    platform.Dispatcher
	logger        *slog.Logger
	metrics       *observe.Metrics
	now           func() time.Time

	mu        sync.Mutex
	liveCalls map[string]platform.CallHandle // record id → platform handle
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithDispatcher sets the platform layer that [Resolver.Dispatch] hands
// resolved actions to. Without it, Dispatch returns an error.
func WithDispatcher(d platform.Dispatcher) ResolverOption {
	return func(r *Resolver) {
		r.dispatcher = d
	}
}

// NewResolver wires the pipeline stages together.
func NewResolver(authority *biometric.Gate, subscriptions subscription.Store, candidates registry.Store, tracker *lifecycle.Tracker, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		authority:     authority,
		subscriptions: subscriptions,
		candidates:    candidates,
		tracker:       tracker,
		now:           func() time.Time { return time.Now().UTC() },
		liveCalls:     make(map[string]platform.CallHandle),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Resolve runs the full pipeline: authority gate, intent classification,
// usage gate, match scorer, then record creation. Failures carry a typed
// [*Error]; inspect the kind with [KindOf].
func (r *Resolver) Resolve(ctx context.Context, req Request) (DispatchResult, error) {
	start := r.now()
	result, err := r.resolve(ctx, req)
	r.observe(ctx, req, result, err, r.now().Sub(start))
	return result, err
}

func (r *Resolver) resolve(ctx context.Context, req Request) (DispatchResult, error) {
	decision, err := r.authority.Authorize(ctx, req.AccountID, req.SpeakerClaim, req.ConfidenceObserved)
	if err != nil {
		return DispatchResult{}, newError(KindStorageUnavailable, "authority", "voice profile lookup failed", err)
	}
	if !decision.Authorized {
		return DispatchResult{}, newError(authorityKind(decision.Reason), "authority",
			fmt.Sprintf("speaker %q denied: %s", req.SpeakerClaim, decision.Reason), nil)
	}

	cmd, err := intent.Classify(req.Utterance)
	if err != nil {
		return DispatchResult{}, newError(KindNoMatch, "intent", "utterance is not a recognised command", err)
	}

	usage, err := subscription.Check(ctx, r.subscriptions, req.AccountID, actionFor(cmd.Kind))
	if err != nil {
		return DispatchResult{}, newError(KindStorageUnavailable, "usage", "subscription check failed", err)
	}
	if !usage.Allowed {
		return DispatchResult{}, newError(usageKind(usage.Reason), "usage", usage.Detail, nil)
	}

	candidates, err := r.candidates.List(ctx, req.AccountID, candidateKind(cmd.Kind))
	if err != nil {
		return DispatchResult{}, newError(KindStorageUnavailable, "scorer", "candidate listing failed", err)
	}
	if len(candidates) == 0 {
		return DispatchResult{}, newError(KindNoMatch, "scorer",
			fmt.Sprintf("account has no %s candidates", candidateKind(cmd.Kind)), nil)
	}
	matches := Score(candidates, cmd.Target)
	best := matches[0]
	if best.Score == 0 {
		return DispatchResult{}, newError(KindAmbiguousZeroScore, "scorer",
			fmt.Sprintf("no scoring rule matched %q", cmd.Target), nil)
	}

	record, err := r.tracker.Create(ctx, lifecycle.ActionRecord{
		AccountID:   req.AccountID,
		CandidateID: best.Candidate.ID,
		Kind:        cmd.Kind,
		Phrase:      req.Utterance,
		Score:       best.Score,
	})
	if err != nil {
		return DispatchResult{}, newError(KindStorageUnavailable, "lifecycle", "record creation failed", err)
	}

	// Dispatch bookkeeping on the winning candidate. A failure here is
	// logged, not surfaced: the action was dispatched and the record exists,
	// only the affinity counters missed an increment.
	if err := r.candidates.RecordDispatch(ctx, best.Candidate.ID, r.now()); err != nil {
		r.logger.Warn("dispatch bookkeeping failed",
			"candidate_id", best.Candidate.ID,
			"record_id", record.ID,
			"error", err,
		)
	}

	r.logger.Info("utterance resolved",
		"account_id", req.AccountID,
		"member_id", decision.MemberID,
		"kind", cmd.Kind,
		"candidate_id", best.Candidate.ID,
		"score", best.Score,
		"record_id", record.ID,
	)
	return DispatchResult{
		RecordID:  record.ID,
		MemberID:  decision.MemberID,
		Candidate: best.Candidate,
		Kind:      cmd.Kind,
		Score:     best.Score,
	}, nil
}

func (r *Resolver) observe(ctx context.Context, req Request, result DispatchResult, err error, elapsed time.Duration) {
	r.metrics.ResolveDuration.Record(ctx, elapsed.Seconds())
	kind := string(result.Kind)
	if kind == "" {
		kind = "unknown"
	}
	if err == nil {
		r.metrics.RecordResolution(ctx, kind, "ok")
		return
	}
	r.metrics.RecordResolution(ctx, kind, "denied")
	r.metrics.RecordDenial(ctx, string(KindOf(err)))
	r.logger.Info("resolution denied",
		"account_id", req.AccountID,
		"speaker_claim", req.SpeakerClaim,
		"kind", KindOf(err),
		"error", err,
	)
}

// Dispatch hands a resolved action to the platform layer and advances its
// record: a placed call moves to connected, a launched application
// completes immediately, and a dispatcher failure marks the record failed
// with the dispatcher's error text. The handle of a placed call is retained
// so [Resolver.Cancel] can tear the call down.
func (r *Resolver) Dispatch(ctx context.Context, res DispatchResult) (lifecycle.ActionRecord, error) {
	if r.dispatcher == nil {
		return lifecycle.ActionRecord{}, errors.New("resolve: no dispatcher configured")
	}

	if res.Kind == lifecycle.KindLaunch {
		if err := r.dispatcher.LaunchApp(ctx, res.RecordID, res.Candidate.Name); err != nil {
			return r.dispatchFailed(ctx, res.RecordID, err)
		}
		return r.Transition(ctx, res.RecordID, lifecycle.StateCompleted, "")
	}

	handle, err := r.dispatcher.PlaceCall(ctx, res.RecordID, res.Candidate.Address)
	if err != nil {
		return r.dispatchFailed(ctx, res.RecordID, err)
	}
	if handle != "" {
		r.mu.Lock()
		r.liveCalls[res.RecordID] = handle
		r.mu.Unlock()
	}
	record, err := r.Transition(ctx, res.RecordID, lifecycle.StateConnected, "")
	if err != nil {
		// The record raced to a terminal state; the call must not outlive it.
		r.releaseCall(ctx, res.RecordID, true)
		return lifecycle.ActionRecord{}, err
	}
	return record, nil
}

func (r *Resolver) dispatchFailed(ctx context.Context, recordID string, cause error) (lifecycle.ActionRecord, error) {
	record, err := r.Transition(ctx, recordID, lifecycle.StateFailed, cause.Error())
	if err != nil {
		r.logger.Warn("failed to record dispatch failure",
			"record_id", recordID,
			"error", err,
		)
	}
	return record, fmt.Errorf("resolve: dispatch %s: %w", recordID, cause)
}

// Transition forwards a lifecycle transition request, translating tracker
// errors into resolution error kinds.
func (r *Resolver) Transition(ctx context.Context, recordID string, target lifecycle.State, failureReason string) (lifecycle.ActionRecord, error) {
	record, err := r.tracker.Transition(ctx, recordID, target, failureReason)
	if err != nil {
		return lifecycle.ActionRecord{}, lifecycleError(recordID, err)
	}
	if record.State.Terminal() {
		r.releaseCall(ctx, recordID, record.State == lifecycle.StateCancelled)
	}
	return record, nil
}

// Cancel cancels a live record and tears down its platform call, if one is
// in flight. Cancelling an already finished record reports
// [KindAlreadyTerminal].
func (r *Resolver) Cancel(ctx context.Context, recordID string) (lifecycle.ActionRecord, error) {
	record, err := r.tracker.Cancel(ctx, recordID)
	if err != nil {
		return lifecycle.ActionRecord{}, lifecycleError(recordID, err)
	}
	r.releaseCall(ctx, recordID, true)
	return record, nil
}

// releaseCall forgets the live call handle for recordID. When hangUp is set
// the platform call is cancelled first; a cancellation failure is logged,
// since the record is already terminal either way.
func (r *Resolver) releaseCall(ctx context.Context, recordID string, hangUp bool) {
	r.mu.Lock()
	handle, ok := r.liveCalls[recordID]
	delete(r.liveCalls, recordID)
	r.mu.Unlock()

	if !ok || !hangUp || r.dispatcher == nil {
		return
	}
	if err := r.dispatcher.CancelCall(ctx, handle); err != nil {
		r.logger.Warn("platform call cancellation failed",
			"record_id", recordID,
			"handle", string(handle),
			"error", err,
		)
	}
}

func lifecycleError(recordID string, err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyTerminal):
		return newError(KindAlreadyTerminal, "lifecycle", "record "+recordID+" already finished", err)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return newError(KindInvalidTransition, "lifecycle", "transition not permitted", err)
	case errors.Is(err, lifecycle.ErrNotFound):
		return newError(KindInvalidTransition, "lifecycle", "record "+recordID+" not found", err)
	default:
		return newError(KindStorageUnavailable, "lifecycle", "transition failed", err)
	}
}

func authorityKind(reason biometric.DenyReason) Kind {
	switch reason {
	case biometric.DenyInsufficientAuthority:
		return KindInsufficientAuthority
	case biometric.DenyLowConfidence:
		return KindLowConfidence
	default:
		return KindNotEnrolled
	}
}

func usageKind(reason subscription.DenyReason) Kind {
	if reason == subscription.DenyFeatureNotInPlan {
		return KindFeatureNotInPlan
	}
	return KindLimitExceeded
}

func actionFor(kind lifecycle.ActionKind) subscription.ActionType {
	if kind == lifecycle.KindLaunch {
		return subscription.ActionLaunchApp
	}
	return subscription.ActionPlaceCall
}

func candidateKind(kind lifecycle.ActionKind) registry.Kind {
	if kind == lifecycle.KindLaunch {
		return registry.KindApplication
	}
	return registry.KindContact
}
