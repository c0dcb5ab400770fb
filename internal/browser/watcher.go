package browser

import (
	"context"
	"time"

	"webchat-bridge/pkg/apperr"

	"go.uber.org/zap"
)

// Phase is the detector state over the lifetime of one submitted prompt.
type Phase string

const (
	PhaseSettling   Phase = "settling"
	PhaseGenerating Phase = "generating"
	PhaseStable     Phase = "stable"
	PhaseExtracted  Phase = "extracted"
	PhaseTimedOut   Phase = "timed_out"
)

// ReplyProbe is the view of the page the detector polls. The session
// handle implements it against live selectors; tests fake it.
type ReplyProbe interface {
	// GenerationInProgress reports whether the "still generating"
	// marker is visible. Probe failures read as "not generating".
	GenerationInProgress(ctx context.Context) bool

	// LatestReply extracts the text of the most recent reply container.
	LatestReply(ctx context.Context) (string, error)
}

// Watcher decides when a submitted prompt's reply has finished
// streaming. The UI offers no completion event, so it polls: a fixed
// grace delay after submit, then the generating marker at a fixed
// interval, then one extra settle tick before extraction to let the
// DOM finish its final paint. The settle tick is the only guard against
// a marker that clears transiently mid-stream; its duration is a
// tunable safety margin, not a correctness guarantee.
type Watcher struct {
	probe  ReplyProbe
	poll   time.Duration
	settle time.Duration
	logger *zap.Logger

	phase Phase
}

func NewWatcher(probe ReplyProbe, poll, settle time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		probe:  probe,
		poll:   poll,
		settle: settle,
		logger: logger,
		phase:  PhaseSettling,
	}
}

// Phase reports the current detector state.
func (w *Watcher) Phase() Phase {
	return w.phase
}

// Await blocks until the reply is extracted or the deadline expires.
// Elapsed time accumulates per poll tick; the deadline is measured
// against polling time, so the detector never times out earlier than
// the caller asked for.
func (w *Watcher) Await(ctx context.Context, deadline time.Duration) (string, error) {
	const op = "Await"

	w.phase = PhaseSettling

	if err := sleepCtx(ctx, w.poll); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "context_cancelled")
	}

	w.phase = PhaseGenerating

	var elapsed time.Duration

	for {
		if !w.probe.GenerationInProgress(ctx) {
			if err := sleepCtx(ctx, w.settle); err != nil {
				return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "context_cancelled")
			}

			w.phase = PhaseStable

			break
		}

		if elapsed >= deadline {
			w.phase = PhaseTimedOut
			w.logger.Warn("Response wait timed out", zap.Duration("deadline", deadline))

			return "", apperr.Wrap(op, apperr.CodeTimeout, nil, map[string]any{
				apperr.MetaReason: "response_timeout",
				apperr.MetaStage:  apperr.StageDetection,
			})
		}

		if err := sleepCtx(ctx, w.poll); err != nil {
			return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "context_cancelled")
		}

		elapsed += w.poll
	}

	text, err := w.probe.LatestReply(ctx)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeExtraction, err, map[string]any{
			apperr.MetaReason: "reply_extraction_failed",
			apperr.MetaStage:  apperr.StageExtraction,
		})
	}

	// A rendered-but-empty container extracts without error; treat it as
	// a failed extraction, never as a successful empty reply.
	if text == "" {
		return "", apperr.Wrap(op, apperr.CodeExtraction, nil, map[string]any{
			apperr.MetaReason: "empty_reply_text",
			apperr.MetaStage:  apperr.StageExtraction,
		})
	}

	w.phase = PhaseExtracted
	w.logger.Debug("Reply extracted", zap.Int("length", len(text)))

	return text, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
