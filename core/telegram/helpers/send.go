package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by SendText. nil makes
// every send synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// SendText queues text for the chat of the current update. Without a
// dispatcher, or when its queue is full or closed, the message is sent from
// the calling goroutine instead.
func SendText(c tele.Context, text string, opts *tele.SendOptions) error {
	countSent(c, opts != nil && opts.ReplyMarkup != nil)
	return enqueue(c, "send.text", "sendMessage", func() error {
		if opts != nil {
			return c.Send(text, opts)
		}
		return c.Send(text)
	})
}

// Answer responds to the callback query of the current update right away.
// A response with text counts as a sent message.
func Answer(c tele.Context, resp *tele.CallbackResponse) error {
	if resp == nil {
		return c.Respond()
	}
	if resp.Text != "" {
		countSent(c, false)
	}
	return c.Respond(resp)
}

func enqueue(c tele.Context, action, endpoint string, run func() error) error {
	disp := dispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
