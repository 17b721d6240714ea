// Package newsletter maintains the subscriber collection in object storage.
//
// The collection is a single JSON object holding the full subscriber set; the
// write path is load, check, append, store. There is no conditional write, so
// two concurrent subscriptions for the same address can both pass the
// existence check and produce a duplicate entry. That window is accepted:
// subscription runs as a background side effect of login, reads tolerate
// duplicates (first hit wins), and the export tooling de-duplicates.
package newsletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/havoptic/havoptic/pkg/blob"
)

// Config names the objects the service maintains.
type Config struct {
	SubscribersKey string `env:"NEWSLETTER_SUBSCRIBERS_KEY" envDefault:"newsletter/subscribers.json"`
	AuditKey       string `env:"NEWSLETTER_AUDIT_KEY" envDefault:"newsletter/audit.log"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		SubscribersKey: "newsletter/subscribers.json",
		AuditKey:       "newsletter/audit.log",
	}
}

// Subscriber is one entry in the collection.
type Subscriber struct {
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
	Source       string    `json:"source"`
}

// collection is the serialized form of the subscriber set.
type collection struct {
	Subscribers []Subscriber `json:"subscribers"`
}

type Service struct {
	store blob.Store
	cfg   Config
	log   *slog.Logger
}

func NewService(store blob.Store, cfg Config, log *slog.Logger) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// Subscribe adds the normalized email to the collection if absent.
// Idempotent for sequential calls; see the package comment for the
// concurrent-write caveat.
func (s *Service) Subscribe(ctx context.Context, email, source string) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil
	}

	coll := s.load(ctx)
	for _, sub := range coll.Subscribers {
		if sub.Email == normalized {
			return nil
		}
	}

	coll.Subscribers = append(coll.Subscribers, Subscriber{
		Email:        normalized,
		SubscribedAt: time.Now().UTC(),
		Source:       source,
	})

	data, err := json.Marshal(coll)
	if err != nil {
		return fmt.Errorf("marshal subscriber collection: %w", err)
	}
	if err := s.store.Put(ctx, s.cfg.SubscribersKey, data, "application/json"); err != nil {
		return fmt.Errorf("write subscriber collection: %w", err)
	}

	s.appendAudit(ctx, normalized, source)
	return nil
}

// IsSubscribed reports membership for the normalized email.
func (s *Service) IsSubscribed(ctx context.Context, email string) (bool, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return false, nil
	}

	for _, sub := range s.load(ctx).Subscribers {
		if sub.Email == normalized {
			return true, nil
		}
	}
	return false, nil
}

// load returns the current collection. Missing or unparsable objects read as
// empty so a corrupted collection never blocks new subscriptions.
func (s *Service) load(ctx context.Context) collection {
	var coll collection

	data, err := s.store.Get(ctx, s.cfg.SubscribersKey)
	if err != nil {
		return coll
	}

	if err := json.Unmarshal(data, &coll); err != nil {
		s.log.Warn("subscriber collection unparsable, treating as empty",
			slog.String("key", s.cfg.SubscribersKey),
			slog.String("error", err.Error()),
		)
		return collection{}
	}
	return coll
}

// appendAudit records the subscription in the audit object. Failures are
// swallowed: the audit trail is advisory and must never fail a subscription.
func (s *Service) appendAudit(ctx context.Context, email, source string) {
	existing, err := s.store.Get(ctx, s.cfg.AuditKey)
	if err != nil {
		existing = nil
	}

	line := fmt.Sprintf("%s\t%s\t%s\n", time.Now().UTC().Format(time.RFC3339), email, source)
	if err := s.store.Put(ctx, s.cfg.AuditKey, append(existing, line...), "text/plain"); err != nil {
		s.log.Warn("audit append failed",
			slog.String("key", s.cfg.AuditKey),
			slog.String("error", err.Error()),
		)
	}
}

// NormalizeEmail lowercases and trims an address; the collection is keyed on
// this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
