// Package keyboard builds Telegram reply and inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one inline button. Unique routes the press; Data is passed
// to the handler as the callback payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// ReplyButtons builds a resized reply keyboard, one row per slice. Empty
// rows are skipped.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		if len(labels) == 0 {
			continue
		}
		row := make(tele.Row, len(labels))
		for i, label := range labels {
			row[i] = markup.Text(label)
		}
		keyboard = append(keyboard, row)
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtons builds an inline keyboard with every button on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		inline = append(inline, []tele.InlineButton{*markup.Data(b.Text, b.Unique, b.Data).Inline()})
	}
	markup.InlineKeyboard = inline
	return markup
}
