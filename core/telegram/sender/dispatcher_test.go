package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/growbot/core/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func chatCtx(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 512})

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 40; i++ {
		for _, chat := range []int64{7, 8, -100123} {
			chat, i := chat, i
			err := d.Enqueue(chatCtx(chat), "send.text", "sendMessage", func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}
	}
	d.Close()

	for chat, seq := range got {
		require.Len(t, seq, 40, "chat %d", chat)
		for i, v := range seq {
			assert.Equal(t, i, v, "chat %d out of order", chat)
		}
	}
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		if calls.Add(1) == 1 {
			return &net.DNSError{Err: "i/o timeout", IsTimeout: true}
		}
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	d.Close()
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("telegram: bad request (400)")
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), "send.text", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), "send.text", "", nil))
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"timeout":  context.DeadlineExceeded,
		"dns":      &net.DNSError{Err: "no such host"},
		"dial":     &net.OpError{Op: "dial", Err: errors.New("refused")},
		"http_4xx": errors.New("telegram: chat not found (400)"),
		"http_5xx": &tele.Error{Code: 502, Description: "bad gateway"},
		"unknown":  errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, errorKind(err), err.Error())
	}
	assert.Empty(t, errorKind(nil))
}

func TestRedactToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-x_yz/sendMessage": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, redactToken(err))
}

func TestDispatcherCloseWhileEnqueueing(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				err := d.Enqueue(chatCtx(chat), "send.text", "sendMessage", func() error { return nil })
				if errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}(int64(i))
	}
	d.Close()
	wg.Wait()
}
