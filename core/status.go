package core

import (
	"strings"
	"time"
)

// StatusInputs carries the environment DeriveStatus evaluates a record
// against. Zero values fall back to sane defaults so callers only set what
// they care about. RefreshLead widens the Expired rule: a token due for
// renewal within the lead window already reports Expired.
type StatusInputs struct {
	OrgCurrency string
	Now         time.Time
	RefreshLead time.Duration
}

// DeriveStatus resolves the connection status for one mode. It is pure: the
// record is the only state, and the first matching rule wins.
//
// Priority: missing credentials > failed validity probe > currency mismatch >
// expiring token > connected. Expired is informational; callers that gate
// charges treat it like connected.
func DeriveStatus(record *ConnectionRecord, inputs StatusInputs) ConnectionStatus {
	if record == nil {
		return ConnectionStatusDisconnected
	}

	if !record.HasTokens() {
		return ConnectionStatusMissing
	}

	if !record.LastProbeOK {
		return ConnectionStatusInvalid
	}

	org := strings.TrimSpace(strings.ToUpper(inputs.OrgCurrency))
	loc := strings.TrimSpace(strings.ToUpper(record.LocationCurrency))
	if org != "" && loc != "" && org != loc {
		return ConnectionStatusCurrencyMismatch
	}

	if refreshDue(*record, inputs.Now, inputs.RefreshLead) {
		return ConnectionStatusExpired
	}

	return ConnectionStatusConnected
}

// StatusBlocksCharges reports whether a derived status must fail a charge
// fast instead of letting the gateway reject it.
func StatusBlocksCharges(status ConnectionStatus) bool {
	switch status {
	case ConnectionStatusConnected, ConnectionStatusExpired:
		return false
	default:
		return true
	}
}

// refreshDue reports whether the record's token needs renewal. Lead is how
// far before expiry renewal starts; zero lead means due only once expired.
func refreshDue(record ConnectionRecord, now time.Time, lead time.Duration) bool {
	if !record.HasTokens() {
		return false
	}
	if record.TokenExpiresAt.IsZero() {
		return false
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return !now.Before(record.TokenExpiresAt.Add(-lead))
}
