// Package commands describes slash commands kept in the telegram registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one slash command. Aliases route to the same handler; Hidden
// commands are routed but left out of the published command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}
