package store

// Keys builds the namespaced key layout. Prefix is optional and prepended
// verbatim, so "app:" yields "app:verify:a@x.com".
type Keys struct {
	Prefix string
}

func (k Keys) join(parts ...string) string {
	n := len(k.Prefix)
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	b = append(b, k.Prefix...)
	for _, p := range parts {
		b = append(b, p...)
	}
	return string(b)
}

// Code returns the one-time code key for a purpose namespace ("verify" or "reset").
func (k Keys) Code(namespace, email string) string {
	return k.join(namespace, ":", email)
}

// Session returns the refresh session record key.
func (k Keys) Session(userID, sessionID string) string {
	return k.join("refresh:", userID, ":", sessionID)
}

// SessionIndex returns the per-user set of live session ids.
func (k Keys) SessionIndex(userID string) string {
	return k.join("session:", userID)
}

// Blacklist returns the revoked-session key.
func (k Keys) Blacklist(sessionID string) string {
	return k.join("blacklist:", sessionID)
}

// PasswordChanged returns the password-changed marker key.
func (k Keys) PasswordChanged(userID string) string {
	return k.join("password_changed:", userID)
}

// TwoFactorSetup returns the staged enrollment secret key.
func (k Keys) TwoFactorSetup(userID string) string {
	return k.join("2fa:setup:", userID)
}

// TwoFactorLogin returns the staged 2FA-login token key.
func (k Keys) TwoFactorLogin(userID string) string {
	return k.join("2fa:temp:", userID)
}

// RateLimit returns a fixed-window counter key.
func (k Keys) RateLimit(scope, subject string) string {
	return k.join("ratelimit:", scope, ":", subject)
}
