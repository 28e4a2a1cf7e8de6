package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/authcore/codes"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/tokens"
	"github.com/MrEthical07/authcore/twofactor"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine orchestrates registration, login, token rotation, revocation,
// password changes and two-factor enrollment. It is safe for concurrent use.
type Engine struct {
	config Config
	now    func() time.Time

	repo        identity.Repository
	store       store.Store
	tokens      *tokens.Issuer
	passwords   *password.Pool
	policy      password.Policy
	credentials *credential.Verifier
	codes       *codes.Service
	twoFactor   *twofactor.Service
	loginTokens *loginTokenStore
	limiter     *rate.Limiter

	sender  mail.Sender
	mail    *mailDispatcher
	metrics *Metrics
	tracer  trace.Tracer
}

// Close flushes queued mail and stops the dispatcher. The Engine must not
// be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.mail != nil {
		e.mail.Close()
	}
}

// Ping checks the ephemeral store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

// MailDropped returns how many code emails were dropped because the
// delivery queue was full.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mail == nil {
		return 0
	}
	return e.mail.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "authcore."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

// sendCode delivers a one-time code, through the queue when async mail is on.
// Delivery failures never fail the calling operation.
func (e *Engine) sendCode(ctx context.Context, email string, purpose mail.Purpose, code string) {
	if e.mail != nil {
		e.mail.Enqueue(email, purpose, code)
		return
	}
	if e.config.Mail.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Mail.SendTimeout)
		defer cancel()
	}
	if err := e.sender.SendCode(ctx, email, purpose, code); err != nil {
		e.metricInc(MetricMailFailed)
		logf("%s mail delivery failed: %v", purpose, err)
		return
	}
	e.metricInc(MetricMailSent)
}

func logf(format string, args ...any) {
	log.Printf("authcore: "+format, args...)
}

// repoErr classifies an unexpected repository failure.
func repoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// mapCodeError folds the attempt-budget error into a mismatch so callers
// see one error for "wrong code".
func mapCodeError(err error) error {
	if errors.Is(err, codes.ErrCodeAttemptsExceeded) {
		return fmt.Errorf("%w: %w", ErrCodeMismatch, ErrCodeAttemptsExceeded)
	}
	return err
}

// findActive loads an identity by id and requires it to be ACTIVE.
func (e *Engine) findActive(ctx context.Context, userID string) (identity.Identity, error) {
	ident, err := e.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Identity{}, ErrUserNotFound
		}
		return identity.Identity{}, repoErr(err)
	}
	if ident.Status != identity.StatusActive {
		return identity.Identity{}, ErrAccountNotActive
	}
	return ident, nil
}

// revokeEverything revokes every session of userID, drops a pending
// two-factor login challenge and stamps the password-changed marker so
// outstanding access tokens die too.
func (e *Engine) revokeEverything(ctx context.Context, userID string) error {
	n, err := e.tokens.RevokeAllRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	// the temporary token has no session entry to blacklist
	if err := e.loginTokens.Discard(ctx, userID); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	return e.tokens.MarkPasswordChanged(ctx, userID, e.now())
}
