package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"shebacred/internal/credential/metrics"
	"shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/platform/circuit"
	"shebacred/pkg/platform/sentinel"
)

const (
	fingerprintKeyPrefix = "sheba:cred:fp:"
	identifierKeyPrefix  = "sheba:cred:ident:"

	indexFingerprint = "fingerprint"
	indexIdentifier  = "identifier"
)

// Backend is the authoritative store wrapped by CachedStore.
type Backend interface {
	Save(ctx context.Context, cred *models.TrustedCredential) error
	Update(ctx context.Context, cred *models.TrustedCredential) error
	FindByID(ctx context.Context, credID id.CredentialID) (*models.TrustedCredential, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*models.TrustedCredential, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.TrustedCredential, error)
	ListByIssuer(ctx context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error)
}

// CachedStore is a read-through Redis cache over the fingerprint and
// identifier indexes. Concurrent misses for the same key share one backend
// read. Writes go to the backend first and then evict every key the old and
// new versions of the record could be cached under. Redis failures degrade to
// backend reads, and a run of failures opens a breaker that skips Redis reads
// until a probe succeeds. Evictions are always attempted.
type CachedStore struct {
	backend Backend
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(s *CachedStore) { s.metrics = m }
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(s *CachedStore) { s.logger = logger }
}

func WithCacheBreaker(b *circuit.Breaker) CacheOption {
	return func(s *CachedStore) { s.breaker = b }
}

func NewCachedStore(backend Backend, client *redis.Client, ttl time.Duration, opts ...CacheOption) *CachedStore {
	s := &CachedStore{
		backend: backend,
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("registry-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type cachedCredential struct {
	ID          string            `json:"id"`
	IssuerID    string            `json:"issuer_id"`
	Fields      map[string]string `json:"fields"`
	Fingerprint string            `json:"fingerprint"`
	Identifier  string            `json:"identifier"`
	Status      string            `json:"status"`
	IssuedAt    time.Time         `json:"issued_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (s *CachedStore) Save(ctx context.Context, cred *models.TrustedCredential) error {
	if err := s.backend.Save(ctx, cred); err != nil {
		return err
	}
	s.evict(ctx, cred)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, cred *models.TrustedCredential) error {
	previous, err := s.backend.FindByID(ctx, cred.ID)
	if err != nil {
		return err
	}
	if err := s.backend.Update(ctx, cred); err != nil {
		return err
	}
	s.evict(ctx, previous, cred)
	return nil
}

func (s *CachedStore) FindByID(ctx context.Context, credID id.CredentialID) (*models.TrustedCredential, error) {
	return s.backend.FindByID(ctx, credID)
}

func (s *CachedStore) ListByIssuer(ctx context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error) {
	return s.backend.ListByIssuer(ctx, issuer)
}

func (s *CachedStore) FindByFingerprint(ctx context.Context, fingerprint string) (*models.TrustedCredential, error) {
	return s.readThrough(ctx, indexFingerprint, fingerprintKeyPrefix+fingerprint, func(ctx context.Context) (*models.TrustedCredential, error) {
		return s.backend.FindByFingerprint(ctx, fingerprint)
	})
}

func (s *CachedStore) FindByIdentifier(ctx context.Context, identifier string) (*models.TrustedCredential, error) {
	identifier = models.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.readThrough(ctx, indexIdentifier, identifierKeyPrefix+identifier, func(ctx context.Context) (*models.TrustedCredential, error) {
		return s.backend.FindByIdentifier(ctx, identifier)
	})
}

func (s *CachedStore) readThrough(
	ctx context.Context,
	index, key string,
	load func(context.Context) (*models.TrustedCredential, error),
) (*models.TrustedCredential, error) {
	start := time.Now()
	defer s.metrics.ObserveLookup(index, start)

	if !s.breaker.Allow() {
		s.metrics.RecordCacheLookup(index, "bypass")
	} else {
		raw, err := s.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			s.recordRedis(ctx, nil)
			cred, decodeErr := decodeCached(raw)
			if decodeErr == nil {
				s.metrics.RecordCacheLookup(index, "hit")
				return cred, nil
			}
			s.logger.WarnContext(ctx, "discarding undecodable registry cache entry", "index", index, "error", decodeErr)
		case errors.Is(err, redis.Nil):
			s.recordRedis(ctx, nil)
		default:
			s.recordRedis(ctx, err)
			s.metrics.RecordCacheLookup(index, "error")
			s.logger.WarnContext(ctx, "registry cache read failed", "index", index, "error", err)
		}
		s.metrics.RecordCacheLookup(index, "miss")
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		cred, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if s.breaker.IsOpen() {
			return cred, nil
		}
		if payload, encErr := encodeCached(cred); encErr == nil {
			setErr := s.client.Set(ctx, key, payload, s.ttl).Err()
			s.recordRedis(ctx, setErr)
			if setErr != nil {
				s.logger.WarnContext(ctx, "registry cache write failed", "index", index, "error", setErr)
			}
		}
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.(*models.TrustedCredential)), nil
}

func (s *CachedStore) evict(ctx context.Context, creds ...*models.TrustedCredential) {
	keys := make([]string, 0, 2*len(creds))
	for _, cred := range creds {
		if cred == nil {
			continue
		}
		keys = append(keys, fingerprintKeyPrefix+cred.Fingerprint)
		if cred.Identifier != "" {
			keys = append(keys, identifierKeyPrefix+cred.Identifier)
		}
	}
	if len(keys) == 0 {
		return
	}
	err := s.client.Del(ctx, keys...).Err()
	s.recordRedis(ctx, err)
	if err != nil {
		s.logger.WarnContext(ctx, "registry cache eviction failed", "keys", len(keys), "error", err)
	}
}

func (s *CachedStore) recordRedis(ctx context.Context, err error) {
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "registry cache circuit closed", "breaker", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "registry cache circuit opened", "breaker", s.breaker.Name())
	}
}

func encodeCached(cred *models.TrustedCredential) ([]byte, error) {
	return json.Marshal(cachedCredential{
		ID:          cred.ID.String(),
		IssuerID:    cred.IssuerID.String(),
		Fields:      cred.Fields,
		Fingerprint: cred.Fingerprint,
		Identifier:  cred.Identifier,
		Status:      string(cred.Status),
		IssuedAt:    cred.IssuedAt,
		UpdatedAt:   cred.UpdatedAt,
	})
}

func decodeCached(raw []byte) (*models.TrustedCredential, error) {
	var c cachedCredential
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cached credential: %w", err)
	}
	credID, err := id.ParseCredentialID(c.ID)
	if err != nil {
		return nil, err
	}
	issuerID, err := id.ParseIssuerID(c.IssuerID)
	if err != nil {
		return nil, err
	}
	cred := &models.TrustedCredential{
		ID:          credID,
		IssuerID:    issuerID,
		Fields:      models.Fields(c.Fields),
		Fingerprint: c.Fingerprint,
		Identifier:  c.Identifier,
		Status:      models.Status(c.Status),
		IssuedAt:    c.IssuedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}
