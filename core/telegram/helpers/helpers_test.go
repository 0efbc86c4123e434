package helpers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/core/telegram/sender"
)

type sendCtx struct {
	tele.Context
	mu       sync.Mutex
	store    map[string]any
	sent     []string
	answered []*tele.CallbackResponse
}

func newSendCtx() *sendCtx { return &sendCtx{store: map[string]any{}} }

func (c *sendCtx) Update() tele.Update { return tele.Update{ID: 3} }
func (c *sendCtx) Sender() *tele.User  { return &tele.User{ID: 11} }
func (c *sendCtx) Chat() *tele.Chat    { return &tele.Chat{ID: 11} }
func (c *sendCtx) Get(k string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[k]
}
func (c *sendCtx) Set(k string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[k] = v
}
func (c *sendCtx) Send(what any, _ ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, what.(string))
	return nil
}
func (c *sendCtx) Respond(resp ...*tele.CallbackResponse) error {
	c.answered = append(c.answered, resp...)
	return nil
}

func (c *sendCtx) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func TestSendTextWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)
	c := newSendCtx()
	ResetCounters(c)

	require.NoError(t, SendText(c, "Balance: ₹0", nil))
	require.NoError(t, SendText(c, "menu", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}}))

	assert.Equal(t, []string{"Balance: ₹0", "menu"}, c.sentTexts())
	n, kb := Counters(c)
	assert.Equal(t, 2, n)
	assert.True(t, kb)
}

func TestSendTextThroughDispatcher(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, QueueSize: 4})
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	c := newSendCtx()
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, SendText(c, text, nil))
	}
	d.Close()

	assert.Equal(t, []string{"one", "two", "three"}, c.sentTexts())
	n, kb := Counters(c)
	assert.Equal(t, 3, n)
	assert.False(t, kb)
}

func TestSendTextFallsBackWhenQueueClosed(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, QueueSize: 1})
	d.Close()
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	c := newSendCtx()
	require.NoError(t, SendText(c, "still delivered", nil))
	assert.Equal(t, []string{"still delivered"}, c.sentTexts())
}

func TestAnswer(t *testing.T) {
	c := newSendCtx()
	ResetCounters(c)

	require.NoError(t, Answer(c, nil))
	require.NoError(t, Answer(c, &tele.CallbackResponse{Text: "Moved ₹100", ShowAlert: true}))

	require.Len(t, c.answered, 1)
	assert.Equal(t, "Moved ₹100", c.answered[0].Text)
	n, _ := Counters(c)
	assert.Equal(t, 1, n)
}

func TestBuildContextReusesStoredContext(t *testing.T) {
	c := newSendCtx()
	c.Set("rid", "given")

	ctx := BuildContext(c)
	assert.Equal(t, "given", logger.RIDFrom(ctx))
	assert.Equal(t, int64(11), logger.ChatIDFrom(ctx))
	assert.Equal(t, 3, logger.UpdateIDFrom(ctx))

	tagged := WithHandler(c, "balance")
	assert.Equal(t, "balance", logger.HandlerFrom(tagged))
	assert.Equal(t, "balance", logger.HandlerFrom(BuildContext(c)))
	assert.Equal(t, tagged, WithHandler(c, "balance"))
}
