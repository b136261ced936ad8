package diagnostic

import (
	"context"
	"time"
	"unicode/utf8"
)

// MaxRawLength caps the raw capability input carried by an event.
const MaxRawLength = 512

// Reason tags why a capability was rejected.
type Reason string

const (
	ReasonMalformed        Reason = "malformed"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonExpired          Reason = "expired"
	ReasonKindMismatch     Reason = "kind_mismatch"
	ReasonReplayed         Reason = "replayed"
)

// Event describes one rejected redemption.
type Event struct {
	ID         int64
	Kind       string
	Reason     Reason
	Raw        string
	Detail     string
	RemoteAddr string
	OccurredAt time.Time
}

// Sink receives rejection events. Report must not block the caller.
type Sink interface {
	Report(ctx context.Context, event Event)
}

// Truncate shortens raw to MaxRawLength bytes without splitting a rune.
func Truncate(raw string) string {
	if len(raw) <= MaxRawLength {
		return raw
	}
	cut := MaxRawLength
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut]
}

type remoteAddrKey struct{}

// WithRemoteAddr records the client address for events reported under ctx.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

// RemoteAddrFrom returns the address stored by WithRemoteAddr.
func RemoteAddrFrom(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}
