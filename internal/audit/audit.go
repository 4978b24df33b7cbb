// Package audit defines the event logging interface of the authorization
// server. Events never carry credentials. A failed redemption may carry the
// credential's fingerprint from common.Redact so repeated attempts correlate.
package audit

import (
	"context"
	"log/slog"
)

const (
	EventTypeCodeIssued           = "code_issued"
	EventTypeConsentDenied        = "consent_denied"
	EventTypeTokenExchanged       = "token_exchanged"
	EventTypeExchangeFailed       = "exchange_failed"
	EventTypeTokenRefreshed       = "token_refreshed"
	EventTypeRefreshFailed        = "refresh_failed"
	EventTypeAuthorizationRevoked = "authorization_revoked"
	EventTypeMembershipRevoked    = "membership_revoked"
	EventTypeRateLimited          = "rate_limited"
)

type Event struct {
	Type            string
	UserID          uint
	OrganizationID  uint
	AuthorizationID uint
	ClientName      string
	IP              string
	Credential      string
	Reason          string
}

type Recorder interface {
	Record(ctx context.Context, event Event)
}

// SlogRecorder writes audit events as structured log lines.
type SlogRecorder struct {
	logger *slog.Logger
}

func (r *SlogRecorder) Record(ctx context.Context, event Event) {
	attrs := []slog.Attr{slog.String("event", event.Type)}
	if event.UserID != 0 {
		attrs = append(attrs, slog.Uint64("user_id", uint64(event.UserID)))
	}
	if event.OrganizationID != 0 {
		attrs = append(attrs, slog.Uint64("organization_id", uint64(event.OrganizationID)))
	}
	if event.AuthorizationID != 0 {
		attrs = append(attrs, slog.Uint64("authorization_id", uint64(event.AuthorizationID)))
	}
	if event.ClientName != "" {
		attrs = append(attrs, slog.String("client_name", event.ClientName))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Credential != "" {
		attrs = append(attrs, slog.String("credential", event.Credential))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger.With("component", "audit")}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) {}

// Nop discards every event.
var Nop Recorder = nopRecorder{}
