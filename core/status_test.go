package core

import (
	"testing"
	"time"
)

func TestDeriveStatusPriority(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name   string
		record *ConnectionRecord
		lead   time.Duration
		want   ConnectionStatus
	}{
		{
			name:   "no record",
			record: nil,
			want:   ConnectionStatusDisconnected,
		},
		{
			name: "missing tokens",
			record: &ConnectionRecord{
				Mode:        ModeTest,
				AccessToken: "",
				LastProbeOK: true,
			},
			want: ConnectionStatusMissing,
		},
		{
			name: "missing refresh token",
			record: &ConnectionRecord{
				Mode:        ModeTest,
				AccessToken: "access",
				LastProbeOK: true,
			},
			want: ConnectionStatusMissing,
		},
		{
			name: "failed probe wins over currency mismatch",
			record: &ConnectionRecord{
				Mode:             ModeTest,
				AccessToken:      "access",
				RefreshToken:     "refresh",
				LocationCurrency: "EUR",
				LastProbeOK:      false,
			},
			want: ConnectionStatusInvalid,
		},
		{
			name: "currency mismatch wins over expiry",
			record: &ConnectionRecord{
				Mode:             ModeTest,
				AccessToken:      "access",
				RefreshToken:     "refresh",
				LocationCurrency: "EUR",
				TokenExpiresAt:   past,
				LastProbeOK:      true,
			},
			want: ConnectionStatusCurrencyMismatch,
		},
		{
			name: "expired token",
			record: &ConnectionRecord{
				Mode:             ModeTest,
				AccessToken:      "access",
				RefreshToken:     "refresh",
				LocationCurrency: "USD",
				TokenExpiresAt:   past,
				LastProbeOK:      true,
			},
			want: ConnectionStatusExpired,
		},
		{
			name: "expiring inside the lead window",
			record: &ConnectionRecord{
				Mode:             ModeTest,
				AccessToken:      "access",
				RefreshToken:     "refresh",
				LocationCurrency: "USD",
				TokenExpiresAt:   now.Add(7 * 24 * time.Hour),
				LastProbeOK:      true,
			},
			lead: 14 * 24 * time.Hour,
			want: ConnectionStatusExpired,
		},
		{
			name: "outside the lead window stays connected",
			record: &ConnectionRecord{
				Mode:             ModeTest,
				AccessToken:      "access",
				RefreshToken:     "refresh",
				LocationCurrency: "USD",
				TokenExpiresAt:   now.Add(30 * 24 * time.Hour),
				LastProbeOK:      true,
			},
			lead: 14 * 24 * time.Hour,
			want: ConnectionStatusConnected,
		},
		{
			name: "connected",
			record: &ConnectionRecord{
				Mode:             ModeTest,
				AccessToken:      "access",
				RefreshToken:     "refresh",
				LocationCurrency: "usd",
				TokenExpiresAt:   future,
				LastProbeOK:      true,
			},
			want: ConnectionStatusConnected,
		},
		{
			name: "connected without known location currency",
			record: &ConnectionRecord{
				Mode:           ModeTest,
				AccessToken:    "access",
				RefreshToken:   "refresh",
				TokenExpiresAt: future,
				LastProbeOK:    true,
			},
			want: ConnectionStatusConnected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.record, StatusInputs{OrgCurrency: "USD", Now: now, RefreshLead: tc.lead})
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStatusBlocksCharges(t *testing.T) {
	blocking := []ConnectionStatus{
		ConnectionStatusDisconnected,
		ConnectionStatusMissing,
		ConnectionStatusInvalid,
		ConnectionStatusCurrencyMismatch,
	}
	for _, status := range blocking {
		if !StatusBlocksCharges(status) {
			t.Fatalf("expected %s to block charges", status)
		}
	}
	for _, status := range []ConnectionStatus{ConnectionStatusConnected, ConnectionStatusExpired} {
		if StatusBlocksCharges(status) {
			t.Fatalf("expected %s to allow charges", status)
		}
	}
}

func TestRefreshDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	lead := 14 * 24 * time.Hour

	record := ConnectionRecord{
		AccessToken:    "access",
		RefreshToken:   "refresh",
		TokenExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	if refreshDue(record, now, lead) {
		t.Fatal("token well outside the lead window should not be due")
	}

	record.TokenExpiresAt = now.Add(10 * 24 * time.Hour)
	if !refreshDue(record, now, lead) {
		t.Fatal("token inside the lead window should be due")
	}

	record.TokenExpiresAt = now.Add(-time.Hour)
	if !refreshDue(record, now, lead) {
		t.Fatal("expired token should be due")
	}

	record.AccessToken = ""
	if refreshDue(record, now, lead) {
		t.Fatal("record without tokens has nothing to refresh")
	}
}
