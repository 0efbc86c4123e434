package bot

import (
	"errors"

	tghelpers "github.com/m3rciful/growbot/core/telegram/helpers"
	"github.com/m3rciful/growbot/core/telegram/keyboard"
	"github.com/m3rciful/growbot/internal/handlers"

	tele "gopkg.in/telebot.v4"
)

// Render delivers directives in order and returns handlerErr joined with any
// send failure. A callback query is always answered, with an alert when one
// of the directives asks for it.
func Render(c tele.Context, ds []handlers.Directive, handlerErr error) error {
	errs := []error{handlerErr}
	answered := false
	for _, d := range ds {
		if d.Alert && c.Callback() != nil {
			if !answered {
				errs = append(errs, tghelpers.Answer(c, &tele.CallbackResponse{Text: d.Text, ShowAlert: true}))
				answered = true
			}
			continue
		}
		errs = append(errs, tghelpers.SendText(c, d.Text, sendOptions(d)))
	}
	if c.Callback() != nil && !answered {
		errs = append(errs, tghelpers.Answer(c, nil))
	}
	return errors.Join(errs...)
}

func sendOptions(d handlers.Directive) *tele.SendOptions {
	opts := &tele.SendOptions{DisableWebPagePreview: d.DisablePreview}
	if d.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	switch {
	case len(d.Inline) > 0:
		btns := make([]keyboard.InlineBtn, 0, len(d.Inline))
		for _, b := range d.Inline {
			btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: b.Unique})
		}
		opts.ReplyMarkup = keyboard.InlineButtons(btns)
	case len(d.Menu) > 0:
		opts.ReplyMarkup = keyboard.ReplyButtons(d.Menu...)
	}
	return opts
}
