// Package trailmap flattens audit trail entries into a transport agnostic
// activity shape for feeds and exports.
package trailmap

import (
	"strings"
	"time"

	accounts "github.com/goliatone/go-accounts"
)

const (
	// MetadataKeySeverity carries the entry severity.
	MetadataKeySeverity = "severity"
	// MetadataKeyActorEmail carries the acting user's email.
	MetadataKeyActorEmail = "actor_email"
	// MetadataKeySessionID carries the client session id.
	MetadataKeySessionID = "session_id"
)

const (
	defaultObjectType = accounts.EntityTypeUser
	defaultActorID    = "system"
)

// Normalized is a flattened trail entry.
type Normalized struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(accounts.AuditEntry) string
	now              func() time.Time
}

// Normalize converts an audit entry into the flattened shape. The entry is
// not modified.
func Normalize(entry accounts.AuditEntry, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := entry.Timestamp
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ID: entry.ID,
		ActorID: firstNonEmpty(
			strings.TrimSpace(entry.UserID),
			strings.TrimSpace(options.actorFallback),
		),
		Verb:       Verb(entry.Action),
		ObjectType: firstNonEmpty(strings.TrimSpace(entry.EntityType), options.objectType),
		ObjectID:   resolveObjectID(entry, options.objectIDResolver),
		Channel:    firstNonEmpty(options.channel, strings.ToLower(string(entry.Category))),
		Metadata:   normalizeMetadata(entry),
		OccurredAt: occurredAt,
	}
}

// NormalizeAll maps every entry.
func NormalizeAll(entries []accounts.AuditEntry, opts ...Option) []Normalized {
	out := make([]Normalized, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Normalize(entry, opts...))
	}
	return out
}

// Verb turns an action such as DISABLE_ACCOUNT into disable.account.
func Verb(action string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(action), "_", "."))
}

// WithChannel forces the channel instead of deriving it from the category.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type used when the entry has none.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object id extraction.
func WithObjectIDResolver(resolver func(accounts.AuditEntry) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the entry has none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for entries without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

// resolveObjectID prefers the entity id, then the target email of the
// details.
func resolveObjectID(entry accounts.AuditEntry, resolver func(accounts.AuditEntry) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(entry))
	}
	return firstNonEmpty(
		strings.TrimSpace(entry.EntityID),
		strings.TrimSpace(entry.DetailString("targetEmail")),
	)
}

func normalizeMetadata(entry accounts.AuditEntry) map[string]any {
	metadata := accounts.CloneDocument(entry.Details)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if entry.Severity != "" {
		metadata[MetadataKeySeverity] = string(entry.Severity)
	}
	if email := strings.TrimSpace(entry.UserEmail); email != "" {
		if _, exists := metadata[MetadataKeyActorEmail]; !exists {
			metadata[MetadataKeyActorEmail] = email
		}
	}
	if session := strings.TrimSpace(entry.ClientInfo.SessionID); session != "" {
		metadata[MetadataKeySessionID] = session
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
