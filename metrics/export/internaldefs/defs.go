package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one authcore counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one authcore latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exported, in exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Logins that issued a token pair."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Logins rejected for bad credentials or inactive accounts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the attempt limiter."},
	{ID: authcore.MetricLoginEmailNotVerified, Name: "authcore_login_email_not_verified_total", Help: "Logins rejected because the email is unverified."},
	{ID: authcore.MetricTwoFactorRequired, Name: "authcore_two_factor_required_total", Help: "Logins that staged a two-factor token."},
	{ID: authcore.MetricTwoFactorLoginSuccess, Name: "authcore_two_factor_login_success_total", Help: "Accepted second factors."},
	{ID: authcore.MetricTwoFactorLoginFailure, Name: "authcore_two_factor_login_failure_total", Help: "Rejected second factors."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after revocation."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logouts."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Rejected access tokens."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeInvalidOld, Name: "authcore_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: authcore.MetricPasswordChangeReuseRejected, Name: "authcore_password_change_reuse_rejected_total", Help: "Password changes rejected as unchanged."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Reset codes issued."},
	{ID: authcore.MetricPasswordResetConfirmSuccess, Name: "authcore_password_reset_confirm_success_total", Help: "Successful password resets."},
	{ID: authcore.MetricPasswordResetConfirmFailure, Name: "authcore_password_reset_confirm_failure_total", Help: "Failed password resets."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Password hashes upgraded on login."},
	{ID: authcore.MetricEmailVerificationRequest, Name: "authcore_email_verification_request_total", Help: "Verification codes issued."},
	{ID: authcore.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authcore.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: authcore.MetricCodeAttemptsExceeded, Name: "authcore_code_attempts_exceeded_total", Help: "Codes invalidated after too many wrong guesses."},
	{ID: authcore.MetricTwoFactorEnabled, Name: "authcore_two_factor_enabled_total", Help: "Two-factor enrollments."},
	{ID: authcore.MetricTwoFactorDisabled, Name: "authcore_two_factor_disabled_total", Help: "Two-factor removals."},
	{ID: authcore.MetricMailSent, Name: "authcore_mail_sent_total", Help: "Delivered code emails."},
	{ID: authcore.MetricMailFailed, Name: "authcore_mail_failed_total", Help: "Code emails the sender rejected."},
	{ID: authcore.MetricMailDropped, Name: "authcore_mail_dropped_total", Help: "Code emails dropped because the queue was full."},
	{ID: authcore.MetricAccountDisabled, Name: "authcore_account_disabled_total", Help: "Accounts disabled or suspended."},
	{ID: authcore.MetricAccountDeleted, Name: "authcore_account_deleted_total", Help: "Accounts soft-deleted."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "ValidateAccess latency."},
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency."},
}

// BucketCount is the number of buckets in a snapshot histogram, the last
// being the overflow bucket.
const BucketCount = 8

// HistogramBounds are the finite upper bounds in seconds. The overflow
// bucket is implicit.
var HistogramBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, overflow included, for exporters
// that flatten buckets into gauges.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
