package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

const (
	// SessionTTL bounds how long an untouched conversation survives.
	SessionTTL = 24 * time.Hour
	// OrderTTL bounds order-by-reference lookups.
	OrderTTL = 7 * 24 * time.Hour
	// InquiryTTL covers cupcake inquiries, callbacks and agent requests.
	InquiryTTL = 7 * 24 * time.Hour
	// MediaTTL outlives OrderTTL so payment proofs stay auditable.
	MediaTTL = 30 * 24 * time.Hour

	logMaxEntries = 500
)

// ErrOrderNotFound is returned when no order matches a reference or phone.
// Expired orders surface the same way; retention lapse is not an error.
var ErrOrderNotFound = errors.New("session: order not found")

// ErrMediaNotFound is returned when no stored attachment matches a key.
var ErrMediaNotFound = errors.New("session: media not found")

// Store owns the lifetime of session, order, inquiry, media and log records.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
	logger *logging.Logger
}

func NewStore(redisClient *redis.Client, logger *logging.Logger) *Store {
	if redisClient == nil {
		panic("session: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		redis:  redisClient,
		tracer: otel.Tracer("orderbot.internal.session"),
		logger: logger,
	}
}

func sessionKey(identity string) string { return "session:" + identity }
func orderKey(ref string) string        { return "order:" + ref }
func inquiryKey(id string) string       { return "inquiry:" + id }
func callbackKey(id string) string      { return "callback:" + id }
func logKey(identity string) string     { return "log:" + identity }

// MediaKey derives the storage key for an attachment. kind is "design" or
// "payment"; ref may be a staging key when no order exists yet.
func MediaKey(ref, kind string) string { return fmt.Sprintf("media:%s:%s", ref, kind) }

// Get loads the session for an identity, returning a fresh default record
// when none exists. Absence is not an error.
func (s *Store) Get(ctx context.Context, identity string) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewRecord(identity), nil
		}
		span.RecordError(err)
		return NewRecord(identity), fmt.Errorf("session: load %s: %w", identity, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record routes back to the initial step rather than
		// wedging the conversation.
		span.RecordError(err)
		s.logger.Warn("discarding corrupt session record", "identity", identity, "error", err)
		return NewRecord(identity), nil
	}
	if rec.Identity == "" {
		rec.Identity = identity
	}
	return rec, nil
}

// Put overwrites the stored record. Last write wins; every write refreshes
// the session TTL.
func (s *Store) Put(ctx context.Context, identity string, rec Record) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()

	rec.Identity = identity
	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal %s: %w", identity, err)
	}
	if err := s.redis.Set(ctx, sessionKey(identity), data, SessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist %s: %w", identity, err)
	}
	s.AppendLog(ctx, identity, LogEntry{Direction: "state", Kind: "raw", Payload: data})
	return nil
}

// AppendLog records an interaction-log entry, trimming the ring buffer to
// its fixed depth. Best effort: failures are logged and swallowed so they
// can never interrupt a conversation turn.
func (s *Store) AppendLog(ctx context.Context, identity string, entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("failed to encode interaction log entry", "identity", identity, "error", err)
		return
	}
	key := logKey(identity)
	pipe := s.redis.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, logMaxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed to append interaction log", "identity", identity, "error", err)
	}
}

// Log returns up to n most recent interaction-log entries.
func (s *Store) Log(ctx context.Context, identity string, n int64) ([]LogEntry, error) {
	raw, err := s.redis.LRange(ctx, logKey(identity), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: read log %s: %w", identity, err)
	}
	entries := make([]LogEntry, 0, len(raw))
	for _, item := range raw {
		var entry LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SaveOrder persists a confirmed order under its reference code.
func (s *Store) SaveOrder(ctx context.Context, ref string, rec OrderRecord) error {
	ctx, span := s.tracer.Start(ctx, "session.save_order")
	defer span.End()

	rec.Ref = ref
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal order %s: %w", ref, err)
	}
	if err := s.redis.Set(ctx, orderKey(ref), data, OrderTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist order %s: %w", ref, err)
	}
	return nil
}

// GetOrder looks up an order by reference code.
func (s *Store) GetOrder(ctx context.Context, ref string) (OrderRecord, error) {
	data, err := s.redis.Get(ctx, orderKey(strings.ToUpper(ref))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OrderRecord{}, ErrOrderNotFound
		}
		return OrderRecord{}, fmt.Errorf("session: load order %s: %w", ref, err)
	}
	var rec OrderRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return OrderRecord{}, fmt.Errorf("session: decode order %s: %w", ref, err)
	}
	return rec, nil
}

// UpdateOrderStatus is the one permitted mutation of a stored order.
func (s *Store) UpdateOrderStatus(ctx context.Context, ref, status string) error {
	rec, err := s.GetOrder(ctx, ref)
	if err != nil {
		return err
	}
	rec.Status = status
	return s.SaveOrder(ctx, ref, rec)
}

// FindOrderByPhone scans every stored order for one whose contact matches
// any loose format variant of the given phone. O(n) over all orders and
// substring-based; kept for compatibility with the original lookup and
// documented as a known limitation, not a feature.
func (s *Store) FindOrderByPhone(ctx context.Context, phone string) (OrderRecord, error) {
	ctx, span := s.tracer.Start(ctx, "session.find_order_by_phone")
	defer span.End()

	variants := Variants(Normalize(phone))
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, "order:*", 100).Result()
		if err != nil {
			span.RecordError(err)
			return OrderRecord{}, fmt.Errorf("session: scan orders: %w", err)
		}
		for _, key := range keys {
			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var rec OrderRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			if matchesPhone(rec.Fields.Contact, variants) {
				return rec, nil
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return OrderRecord{}, ErrOrderNotFound
}

func matchesPhone(stored string, variants []string) bool {
	if stored == "" {
		return false
	}
	candidates := append([]string{stored}, Variants(Normalize(stored))...)
	for _, cand := range candidates {
		for _, v := range variants {
			if v != "" && strings.Contains(cand, v) {
				return true
			}
		}
	}
	return false
}

// SaveInquiry persists a cupcake inquiry under a generated id.
func (s *Store) SaveInquiry(ctx context.Context, id string, rec InquiryRecord) error {
	return s.saveInquiryRecord(ctx, inquiryKey(id), rec)
}

// SaveCallback persists a callback request under a generated id.
func (s *Store) SaveCallback(ctx context.Context, id string, rec InquiryRecord) error {
	return s.saveInquiryRecord(ctx, callbackKey(id), rec)
}

func (s *Store) saveInquiryRecord(ctx context.Context, key string, rec InquiryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, InquiryTTL).Err(); err != nil {
		return fmt.Errorf("session: persist %s: %w", key, err)
	}
	return nil
}

// SaveMedia stores attachment bytes under a media key with the long
// retention window.
func (s *Store) SaveMedia(ctx context.Context, key string, rec MediaRecord) error {
	ctx, span := s.tracer.Start(ctx, "session.save_media")
	defer span.End()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal media %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, MediaTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist media %s: %w", key, err)
	}
	return nil
}

// GetMedia loads stored attachment bytes.
func (s *Store) GetMedia(ctx context.Context, key string) (MediaRecord, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return MediaRecord{}, ErrMediaNotFound
		}
		return MediaRecord{}, fmt.Errorf("session: load media %s: %w", key, err)
	}
	var rec MediaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return MediaRecord{}, fmt.Errorf("session: decode media %s: %w", key, err)
	}
	return rec, nil
}

// RenameMedia moves a staged attachment under its final order reference,
// refreshing the retention window.
func (s *Store) RenameMedia(ctx context.Context, fromKey, toKey string) error {
	rec, err := s.GetMedia(ctx, fromKey)
	if err != nil {
		return err
	}
	if err := s.SaveMedia(ctx, toKey, rec); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, fromKey).Err(); err != nil {
		s.logger.Warn("failed to delete staged media", "key", fromKey, "error", err)
	}
	return nil
}
