package helpers

import tele "gopkg.in/telebot.v4"

const (
	sentKey     = "messages"
	keyboardKey = "kb"
)

// ResetCounters zeroes the response counters of the current update.
func ResetCounters(c tele.Context) {
	c.Set(sentKey, 0)
	c.Set(keyboardKey, false)
}

func countSent(c tele.Context, withKeyboard bool) {
	n, _ := c.Get(sentKey).(int)
	c.Set(sentKey, n+1)
	if withKeyboard {
		c.Set(keyboardKey, true)
	}
}

// Counters reports how many messages the update produced so far and whether
// any of them carried a keyboard.
func Counters(c tele.Context) (int, bool) {
	n, _ := c.Get(sentKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return n, kb
}
