package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

// Registry maps slash commands, reply keyboard labels and callback keys to
// handlers. Bots fill it once before routes are built.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	texts     map[string]tele.HandlerFunc
	callbacks map[string]tele.HandlerFunc

	unknownCallback tele.HandlerFunc
	unknownText     tele.HandlerFunc
}

// NewRegistry returns an empty Registry. Unknown callbacks are answered with
// a short alert until SetCallbackNotFound replaces the handler.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		texts:     map[string]tele.HandlerFunc{},
		callbacks: map[string]tele.HandlerFunc{},
		unknownCallback: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func rejected(kind, name, reason string) {
	logger.Warn(context.Background(), wireComponent, "register."+kind+".skip",
		slog.String("name", name),
		slog.String("reason", reason),
	)
}

// RegisterCommand adds a slash command. Invalid or duplicate entries are
// logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	switch {
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		rejected("command", name, "invalid")
		return
	case !strings.HasPrefix(name, "/"):
		rejected("command", name, "no_slash_prefix")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		rejected("command", name, "duplicate")
		return
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases["/"+strings.TrimPrefix(alias, "/")] = name
	}
}

// RegisterText binds an exact message text, usually a reply keyboard label.
func (r *Registry) RegisterText(label string, handler tele.HandlerFunc) {
	label = strings.TrimSpace(label)
	if label == "" || handler == nil {
		rejected("text", label, "invalid")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.texts[label]; dup {
		rejected("text", label, "duplicate")
		return
	}
	r.texts[label] = handler
}

// RegisterCallback binds an inline button key. Unlike the other Register
// methods it reports failures, since a lost callback leaves a dead button.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		rejected("callback", key, "invalid")
		return fmt.Errorf("telegram: invalid callback registration %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		rejected("callback", key, "duplicate")
		return fmt.Errorf("telegram: callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// LookupText returns the handler bound to text, ignoring surrounding spaces.
func (r *Registry) LookupText(text string) (tele.HandlerFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.texts[strings.TrimSpace(text)]
	return h, ok
}

// LookupCommand resolves a command name or alias, with or without the
// leading slash, to its canonical name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = "/" + strings.TrimPrefix(strings.TrimSpace(name), "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// Texts returns the number of registered labels.
func (r *Registry) Texts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.texts)
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ListCommands returns the command menu sorted by name. Hidden commands are
// left out when visibleOnly is set.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if visibleOnly && cmd.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.unknownCallback = h
	}
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc { return r.unknownCallback }

// SetTextFallback sets the handler for text nothing else claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) { r.unknownText = h }

// TextFallback returns the handler for unclaimed text, if any.
func (r *Registry) TextFallback() tele.HandlerFunc { return r.unknownText }

// SetupCommands publishes the visible commands as the bot's command menu.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	ctx := context.Background()
	if err := bot.SetCommands(list); err != nil {
		logger.Error(ctx, wireComponent, "register.commands.fail", slog.String("err", err.Error()))
		return
	}
	logger.Info(ctx, wireComponent, "register.commands.set", slog.Int("count", len(list)))
}
