package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/identity"
	"go.opentelemetry.io/otel/attribute"
)

// DisableAccount sets userID to INACTIVE.
func (e *Engine) DisableAccount(ctx context.Context, userID string) error {
	err := e.UpdateAccountStatus(ctx, userID, AccountInactive)
	if err == nil {
		e.metricInc(MetricAccountDisabled)
	}
	return err
}

// SuspendAccount sets userID to SUSPENDED.
func (e *Engine) SuspendAccount(ctx context.Context, userID string) error {
	err := e.UpdateAccountStatus(ctx, userID, AccountSuspended)
	if err == nil {
		e.metricInc(MetricAccountDisabled)
	}
	return err
}

// EnableAccount restores userID to ACTIVE. Sessions revoked earlier stay revoked.
func (e *Engine) EnableAccount(ctx context.Context, userID string) error {
	return e.UpdateAccountStatus(ctx, userID, AccountActive)
}

// DeleteAccount soft-deletes userID. The identity row is kept with status
// DELETED.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	err := e.UpdateAccountStatus(ctx, userID, AccountDeleted)
	if err == nil {
		e.metricInc(MetricAccountDeleted)
	}
	return err
}

// UpdateAccountStatus persists status for userID. Any status other than
// ACTIVE also revokes every session and invalidates issued access tokens.
func (e *Engine) UpdateAccountStatus(ctx context.Context, userID string, status AccountStatus) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "UpdateAccountStatus")
	span.SetAttributes(attribute.String("authcore.account.status", string(status)))
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return ErrInvalidStatus
	}
	if err := e.repo.UpdateStatus(ctx, userID, status); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return repoErr(err)
	}
	if status == identity.StatusActive {
		return nil
	}
	return e.revokeEverything(ctx, userID)
}
