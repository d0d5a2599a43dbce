package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, logging.Default()), mr
}

func TestGetReturnsDefaultForUnseenIdentity(t *testing.T) {
	store, _ := newTestStore(t)

	rec, err := store.Get(context.Background(), "+263785019494")
	require.NoError(t, err)
	assert.Equal(t, StepWelcome, rec.Step)
	assert.Equal(t, "+263785019494", rec.Identity)
}

func TestPutRefreshesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	identity := "+263785019494"

	rec := NewRecord(identity)
	rec.Step = StepMainMenu
	require.NoError(t, store.Put(ctx, identity, rec))
	assert.Equal(t, SessionTTL, mr.TTL(sessionKey(identity)))

	// Half the window passes, then another write resets the clock.
	mr.FastForward(12 * time.Hour)
	rec.Step = StepOrderDecision
	require.NoError(t, store.Put(ctx, identity, rec))
	assert.Equal(t, SessionTTL, mr.TTL(sessionKey(identity)))

	got, err := store.Get(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, StepOrderDecision, got.Step)
}

func TestSessionExpiresAfterRetentionWindow(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	identity := "+263785019494"

	rec := NewRecord(identity)
	rec.Step = StepConfirmOrder
	rec.Order.Name = "Rudo"
	require.NoError(t, store.Put(ctx, identity, rec))

	mr.FastForward(SessionTTL + time.Minute)

	got, err := store.Get(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, StepWelcome, got.Step, "expired session must decay to the initial step")
	assert.Empty(t, got.Order.Name)
}

func TestCorruptSessionDecodesToInitialStep(t *testing.T) {
	store, mr := newTestStore(t)
	identity := "+263785019494"
	mr.Set(sessionKey(identity), "{not json")

	rec, err := store.Get(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, StepWelcome, rec.Step)
}

func TestUnknownStepTagDecodesToWelcome(t *testing.T) {
	store, mr := newTestStore(t)
	identity := "+263785019494"
	mr.Set(sessionKey(identity), `{"identity":"+263785019494","step":"step_from_the_future"}`)

	rec, err := store.Get(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, StepWelcome, rec.Step)
}

func TestOrderRetention(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	order := OrderRecord{
		Fields:       OrderFields{Name: "Rudo", Contact: "+263785019494"},
		SelectedItem: "Cake Fairy Cake - $20",
		Status:       "pending",
	}
	require.NoError(t, store.SaveOrder(ctx, "AB12CD34", order))

	mr.FastForward(6 * 24 * time.Hour)
	got, err := store.GetOrder(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "AB12CD34", got.Ref)

	mr.FastForward(2 * 24 * time.Hour)
	_, err = store.GetOrder(ctx, "AB12CD34")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderIsCaseInsensitiveOnRef(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveOrder(ctx, "AB12CD34", OrderRecord{Status: "pending"}))

	got, err := store.GetOrder(ctx, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", got.Ref)
}

func TestUpdateOrderStatus(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveOrder(ctx, "AB12CD34", OrderRecord{Status: "pending"}))

	require.NoError(t, store.UpdateOrderStatus(ctx, "AB12CD34", "ready"))
	got, err := store.GetOrder(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "ready", got.Status)
}

func TestFindOrderByPhoneVariants(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveOrder(ctx, "AB12CD34", OrderRecord{
		Fields: OrderFields{Contact: "+263785019494"},
		Status: "pending",
	}))

	for _, phone := range []string{"+263785019494", "263785019494", "0785019494"} {
		got, err := store.FindOrderByPhone(ctx, phone)
		require.NoError(t, err, "phone variant %s", phone)
		assert.Equal(t, "AB12CD34", got.Ref)
	}

	_, err := store.FindOrderByPhone(ctx, "+263700000000")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAppendLogTrimsRingBuffer(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	identity := "+263785019494"

	for i := 0; i < logMaxEntries+40; i++ {
		payload, _ := json.Marshal(map[string]string{"text": fmt.Sprintf("msg %d", i)})
		store.AppendLog(ctx, identity, LogEntry{Direction: "in", Kind: "text", Payload: payload})
	}

	entries, err := mr.List(logKey(identity))
	require.NoError(t, err)
	assert.Len(t, entries, logMaxEntries)

	latest, err := store.Log(ctx, identity, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Contains(t, string(latest[0].Payload), fmt.Sprintf("msg %d", logMaxEntries+39))
}

func TestAppendLogFailureDoesNotPropagate(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()
	// Must not panic or error; logging is strictly best-effort.
	store.AppendLog(context.Background(), "+263785019494", LogEntry{Direction: "in", Kind: "text"})
}

func TestMediaOutlivesOrder(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveOrder(ctx, "AB12CD34", OrderRecord{Status: "pending"}))
	key := MediaKey("AB12CD34", "payment")
	require.NoError(t, store.SaveMedia(ctx, key, MediaRecord{
		OrderRef:    "AB12CD34",
		MediaID:     "wamid.123",
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8, 0xff},
	}))

	mr.FastForward(10 * 24 * time.Hour)
	_, err := store.GetOrder(ctx, "AB12CD34")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	media, err := store.GetMedia(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", media.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, media.Data)
}

func TestRenameMedia(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	staged := MediaKey("pending:+263785019494", "design")
	require.NoError(t, store.SaveMedia(ctx, staged, MediaRecord{MediaID: "wamid.9", Data: []byte("img")}))

	final := MediaKey("AB12CD34", "design")
	require.NoError(t, store.RenameMedia(ctx, staged, final))

	_, err := store.GetMedia(ctx, staged)
	assert.ErrorIs(t, err, ErrMediaNotFound)
	rec, err := store.GetMedia(ctx, final)
	require.NoError(t, err)
	assert.Equal(t, "wamid.9", rec.MediaID)
}

func TestSaveInquiryAndCallbackTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveInquiry(ctx, "INQ123", InquiryRecord{Details: "3 dozen vanilla", Identity: "+263785019494"}))
	require.NoError(t, store.SaveCallback(ctx, "CB4567", InquiryRecord{Details: "call after 5pm", Identity: "+263785019494"}))

	assert.Equal(t, InquiryTTL, mr.TTL(inquiryKey("INQ123")))
	assert.Equal(t, InquiryTTL, mr.TTL(callbackKey("CB4567")))
}
