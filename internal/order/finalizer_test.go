package order

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
)

const (
	customer = "+263771234567"
	owner    = "+263785019494"
)

type textSink struct {
	sent map[string][]string
}

func (s *textSink) SendText(_ context.Context, identity, text string) error {
	if s.sent == nil {
		s.sent = map[string][]string{}
	}
	s.sent[identity] = append(s.sent[identity], text)
	return nil
}

func stagingRef(identity string) string { return "staging:" + identity }

func newTestFinalizer(t *testing.T) (*Finalizer, *session.Store, *textSink) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, nil)
	sink := &textSink{}
	fin := NewFinalizer(store, sink, owner, stagingRef, nil)
	fin.newRef = func() (string, error) { return "CAKE1234", nil }
	return fin, store, sink
}

func completedRecord() session.Record {
	rec := session.NewRecord(customer)
	rec.Step = session.StepConfirmOrder
	rec.SelectedItem = "fc_cake_fairy"
	rec.CakeType = "Fresh Cream Cakes"
	rec.Order = session.OrderFields{
		Name:            "Tariro",
		Contact:         customer,
		Flavors:         []string{"chocolate"},
		Filling:         "fresh cream",
		Icing:           "ganache",
		Shape:           "round",
		Theme:           "birthday",
		DueDate:         "25 December",
		DueTime:         "10am",
		Colors:          "gold",
		Message:         "Happy Birthday!",
		Referral:        "a friend",
		SpecialRequests: "none",
		CollectionPoint: "Harare CBD",
		PaymentMethod:   "Ecocash",
	}
	return rec
}

func TestFinalizePersistsSnapshot(t *testing.T) {
	fin, store, _ := newTestFinalizer(t)

	order, err := fin.Finalize(context.Background(), completedRecord(), 25)
	require.NoError(t, err)
	assert.Equal(t, "CAKE1234", order.Ref)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 25, order.TotalPrice)

	stored, err := store.GetOrder(context.Background(), "CAKE1234")
	require.NoError(t, err)
	assert.Equal(t, "fc_cake_fairy", stored.SelectedItem)
	assert.Equal(t, []string{"chocolate"}, stored.Fields.Flavors)
	assert.Equal(t, "Ecocash", stored.Fields.PaymentMethod)
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, time.Minute)
}

func TestFinalizeNotifiesOwnerWithEveryField(t *testing.T) {
	fin, _, sink := newTestFinalizer(t)

	_, err := fin.Finalize(context.Background(), completedRecord(), 25)
	require.NoError(t, err)

	require.Len(t, sink.sent[owner], 1)
	note := sink.sent[owner][0]
	for _, want := range []string{
		"CAKE1234", customer, "Tariro", "chocolate", "fresh cream", "ganache",
		"round", "birthday", "25 December", "10am", "gold", "Happy Birthday!",
		"a friend", "Harare CBD", "Ecocash", "$25",
	} {
		assert.Contains(t, note, want)
	}
}

func TestFinalizeAttachesStagedDesignImage(t *testing.T) {
	fin, store, _ := newTestFinalizer(t)
	ctx := context.Background()

	stagedKey := session.MediaKey(stagingRef(customer), "design")
	require.NoError(t, store.SaveMedia(ctx, stagedKey, session.MediaRecord{
		MediaID:     "wamid-900",
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8},
	}))

	order, err := fin.Finalize(ctx, completedRecord(), 25)
	require.NoError(t, err)
	assert.Equal(t, session.MediaKey("CAKE1234", "design"), order.DesignMediaKey)

	media, err := store.GetMedia(ctx, order.DesignMediaKey)
	require.NoError(t, err)
	assert.Equal(t, "wamid-900", media.MediaID)

	_, err = store.GetMedia(ctx, stagedKey)
	assert.ErrorIs(t, err, session.ErrMediaNotFound, "staged copy is moved, not duplicated")
}

func TestFinalizeWithoutStagedMedia(t *testing.T) {
	fin, _, _ := newTestFinalizer(t)

	order, err := fin.Finalize(context.Background(), completedRecord(), 20)
	require.NoError(t, err)
	assert.Empty(t, order.DesignMediaKey)
}

func TestRefCodeShape(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		ref, err := RefCode()
		require.NoError(t, err)
		require.Len(t, ref, refLength)
		for _, c := range ref {
			assert.Contains(t, refAlphabet, string(c))
		}
		seen[ref] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "references are not constant")
}

func TestOwnerIsNotNotifiedAboutTheirOwnOrder(t *testing.T) {
	fin, _, sink := newTestFinalizer(t)

	rec := completedRecord()
	rec.Identity = owner
	_, err := fin.Finalize(context.Background(), rec, 25)
	require.NoError(t, err)
	assert.Empty(t, sink.sent[owner])
}
