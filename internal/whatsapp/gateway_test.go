package whatsapp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
)

type sentMessage struct {
	shape string
	to    string
	body  string
	opts  []Option
	descs map[string]string
}

type fakeTransport struct {
	sent        []sentMessage
	failButtons bool
	failList    bool
	failText    int // fail the first N text sends
}

func (f *fakeTransport) SendText(_ context.Context, to, body string) error {
	if f.failText > 0 {
		f.failText--
		return errors.New("transport unavailable")
	}
	f.sent = append(f.sent, sentMessage{shape: "text", to: to, body: body})
	return nil
}

func (f *fakeTransport) SendButtons(_ context.Context, to, body string, buttons []Option) error {
	if f.failButtons {
		return errors.New("interactive rejected")
	}
	f.sent = append(f.sent, sentMessage{shape: "buttons", to: to, body: body, opts: buttons})
	return nil
}

func (f *fakeTransport) SendList(_ context.Context, to, body, _, _ string, rows []Option, descs map[string]string) error {
	if f.failList {
		return errors.New("interactive rejected")
	}
	f.sent = append(f.sent, sentMessage{shape: "list", to: to, body: body, opts: rows, descs: descs})
	return nil
}

func (f *fakeTransport) SendImageByID(_ context.Context, to, mediaID, caption string) error {
	f.sent = append(f.sent, sentMessage{shape: "image", to: to, body: mediaID})
	return nil
}

type memLog struct {
	entries []session.LogEntry
}

func (m *memLog) AppendLog(_ context.Context, _ string, entry session.LogEntry) {
	m.entries = append(m.entries, entry)
}

func newTestGateway(tr *fakeTransport) (*Gateway, *memLog) {
	log := &memLog{}
	return NewGateway(tr, log, nil, nil), log
}

func TestSendTextChunksLongBodies(t *testing.T) {
	tr := &fakeTransport{}
	gw, log := newTestGateway(tr)

	text := strings.Repeat("a", TextChunkSize*2+100)
	require.NoError(t, gw.SendText(context.Background(), "+263785019494", text))

	require.Len(t, tr.sent, 3)
	assert.Len(t, tr.sent[0].body, TextChunkSize)
	assert.Len(t, tr.sent[1].body, TextChunkSize)
	assert.Len(t, tr.sent[2].body, 100)
	assert.Len(t, log.entries, 3, "each delivered chunk is logged")
}

func TestSendTextPartialChunkFailureContinues(t *testing.T) {
	tr := &fakeTransport{failText: 1}
	gw, log := newTestGateway(tr)

	text := strings.Repeat("a", TextChunkSize+10)
	err := gw.SendText(context.Background(), "+263785019494", text)
	assert.Error(t, err, "one failed chunk reports failure")
	require.Len(t, tr.sent, 1, "second chunk still attempted after first failed")
	assert.Len(t, tr.sent[0].body, 10)
	assert.Len(t, log.entries, 1, "failed chunk is not logged as out")
}

func TestSendButtonsTruncatesAndRepairs(t *testing.T) {
	tr := &fakeTransport{}
	gw, _ := newTestGateway(tr)

	err := gw.SendButtons(context.Background(), "+263785019494", "Pick one", []Option{
		{ID: "a", Label: "Yes"},
		{Label: "A title that is far too long for a button"},
		{ID: "c", Label: "No"},
		{ID: "d", Label: "Dropped"},
	})
	require.NoError(t, err)
	require.Len(t, tr.sent, 1)
	opts := tr.sent[0].opts
	require.Len(t, opts, MaxButtons, "fourth button dropped")
	assert.Equal(t, "button_2", opts[1].ID, "missing id repaired positionally")
	assert.Len(t, opts[1].Label, MaxButtonTitleLength)
	assert.True(t, strings.HasSuffix(opts[1].Label, "..."))
}

func TestSendButtonsFallsBackToTextOnRejection(t *testing.T) {
	tr := &fakeTransport{failButtons: true}
	gw, log := newTestGateway(tr)

	err := gw.SendButtons(context.Background(), "+263785019494", "Pick one", []Option{
		{ID: "yes", Label: "Yes"},
		{ID: "no", Label: "No"},
	})
	assert.Error(t, err, "fallback delivery still reports the attempt as failed")

	require.Len(t, tr.sent, 1)
	assert.Equal(t, "text", tr.sent[0].shape)
	assert.Contains(t, tr.sent[0].body, "Pick one")
	assert.Contains(t, tr.sent[0].body, "- Yes")
	assert.Contains(t, tr.sent[0].body, "- No")
	require.Len(t, log.entries, 1)
	assert.Equal(t, "text", log.entries[0].Kind, "only the fallback text is logged")
}

func TestSendListTruncatesToTenRows(t *testing.T) {
	tr := &fakeTransport{}
	gw, _ := newTestGateway(tr)

	options := make([]Option, 11)
	for i := range options {
		options[i] = Option{Label: "Item"}
	}
	require.NoError(t, gw.SendList(context.Background(), "+263785019494", "Menu", options))
	require.Len(t, tr.sent, 1)
	assert.Len(t, tr.sent[0].opts, MaxListRows)
	assert.Equal(t, "option_1", tr.sent[0].opts[0].ID)
}

func TestSendListSpillsLongTitleIntoDescription(t *testing.T) {
	tr := &fakeTransport{}
	gw, _ := newTestGateway(tr)

	long := "Double Delite (2 flavours) - $25"
	require.NoError(t, gw.SendList(context.Background(), "+263785019494", "Menu", []Option{
		{ID: "dd", Label: long},
	}))
	row := tr.sent[0].opts[0]
	assert.Equal(t, long[:MaxRowTitleLength], row.Label)
	assert.Equal(t, long[MaxRowTitleLength:], tr.sent[0].descs["dd"])
}

func TestSendListFallsBackToNumberedText(t *testing.T) {
	tr := &fakeTransport{failList: true}
	gw, _ := newTestGateway(tr)

	err := gw.SendList(context.Background(), "+263785019494", "Menu", []Option{
		{ID: "a", Label: "First"},
		{ID: "b", Label: "Second"},
	})
	assert.Error(t, err)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "text", tr.sent[0].shape)
	assert.Contains(t, tr.sent[0].body, "1. First")
	assert.Contains(t, tr.sent[0].body, "2. Second")
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", MaxBodyLength+50)
	got := truncateBody(long)
	assert.Len(t, got, MaxBodyLength)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "New message", truncateBody("  \x00 "))
}

func TestTruncateBodyNeverSplitsRunes(t *testing.T) {
	// 🎂 is four bytes, so some cut point lands mid-rune.
	long := strings.Repeat("🎂", MaxBodyLength/4+20)
	got := truncateBody(long)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxBodyLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateTitleNeverSplitsRunes(t *testing.T) {
	got := truncateTitle(strings.Repeat("🧁", 20), MaxButtonTitleLength)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxButtonTitleLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestChunkNeverSplitsRunes(t *testing.T) {
	// The leading ASCII shifts every rune off the chunk-size alignment.
	text := "ab" + strings.Repeat("🍰", TextChunkSize/4+100)
	parts := chunk(text, TextChunkSize)
	require.Greater(t, len(parts), 1)
	var rejoined strings.Builder
	for _, part := range parts {
		assert.True(t, utf8.ValidString(part))
		assert.LessOrEqual(t, len(part), TextChunkSize)
		rejoined.WriteString(part)
	}
	assert.Equal(t, text, rejoined.String(), "chunking loses nothing")
}

func TestListSpillCutsOnRuneBoundary(t *testing.T) {
	tr := &fakeTransport{}
	gw, _ := newTestGateway(tr)

	long := "x🎂🎂🎂🎂🎂🎂🎂🎂🎂🎂" // 41 bytes, the title cap lands mid-rune
	require.NoError(t, gw.SendList(context.Background(), "+263785019494", "Menu", []Option{
		{ID: "emoji", Label: long},
	}))
	row := tr.sent[0].opts[0]
	assert.True(t, utf8.ValidString(row.Label))
	assert.True(t, utf8.ValidString(tr.sent[0].descs["emoji"]))
	assert.Equal(t, long, row.Label+tr.sent[0].descs["emoji"])
}
