package bot

import (
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/spendbot/core/buildinfo"
	"github.com/m3rciful/spendbot/core/logger"
	tg "github.com/m3rciful/spendbot/core/telegram"
	"github.com/m3rciful/spendbot/core/telegram/callbacks"
	"github.com/m3rciful/spendbot/core/telegram/commands"
	"github.com/m3rciful/spendbot/core/telegram/helpers"
	"github.com/m3rciful/spendbot/core/telegram/ui"
	"github.com/m3rciful/spendbot/internal/session"
)

// Router connects the engine to telebot: the /start command, the menu and
// category callbacks, and free text while a flow is in progress. It
// satisfies the text router's FSM interface.
type Router struct {
	engine *Engine
}

var _ ui.FallbackProvider = (*Router)(nil)

// NewRouter wraps an Engine for transport wiring.
func NewRouter(engine *Engine) *Router {
	return &Router{engine: engine}
}

// Register fills the registry with the bot's command and callback handlers.
func (r *Router) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     r.handleStart,
		Description: "Перезапустить бота",
	})
	reg.RegisterCommand("/version", commands.Command{
		Handler: func(c tele.Context) error {
			return helpers.SendText(c, fmt.Sprintf("spendbot %s (%s)", buildinfo.Version, buildinfo.Commit))
		},
		Description: "Версия бота",
		Hidden:      true,
	})

	for _, action := range []string{cbLogin, cbRegister, cbExpenses, cbAdd, cbUpdate, cbDelete, cbProfile} {
		action := action
		_ = reg.RegisterCallback(action, func(c tele.Context) error {
			reply := r.engine.Action(helpers.BuildContext(c), c.Sender().ID, action)
			return r.deliver(c, reply)
		})
	}

	_ = reg.RegisterCallback(cbAddCategory, r.categoryHandler(session.StepAddCategory))
	_ = reg.RegisterCallback(cbUpdateCategory, r.categoryHandler(session.StepUpdateCategory))
}

func (r *Router) handleStart(c tele.Context) error {
	return r.deliver(c, r.engine.Start(helpers.BuildContext(c), c.Sender().ID))
}

func (r *Router) categoryHandler(step session.Step) tele.HandlerFunc {
	return func(c tele.Context) error {
		categoryID, err := callbacks.PayloadInt64(c)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: msgStateReset, ShowAlert: true})
		}
		reply := r.engine.Category(helpers.BuildContext(c), c.Sender().ID, step, categoryID)
		return r.deliver(c, reply)
	}
}

// InProgress reports whether the user is inside a dialog flow.
func (r *Router) InProgress(userID int64) bool {
	return r.engine.Sessions().InProgress(userID)
}

// ManagerHandler feeds free text into the user's active flow.
func (r *Router) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	ctx := helpers.BuildContext(c)
	logger.Debug(ctx, "session", "fsm.step",
		slog.Int64("user_id", userID),
		slog.String("step", string(r.engine.Sessions().Peek(userID).Step)),
	)

	reply := r.engine.Text(ctx, userID, strings.TrimSpace(c.Text()))
	return r.deliver(c, reply)
}

// UnknownText answers stray text outside any flow with the menu matching
// the user's auth state.
func (r *Router) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return r.deliver(c, r.engine.Start(helpers.BuildContext(c), c.Sender().ID))
	}
}

// UnknownCallback answers button presses that no handler claims.
func (r *Router) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: msgStateReset})
	}
}

// deliver answers the callback (if any) and sends the reply text.
func (r *Router) deliver(c tele.Context, reply Reply) error {
	if reply.Alert != "" {
		return c.Respond(&tele.CallbackResponse{Text: reply.Alert, ShowAlert: true})
	}
	if c.Callback() != nil {
		_ = c.Respond()
	}
	if reply.Text == "" {
		return nil
	}
	if reply.Keyboard != nil {
		return helpers.SendText(c, reply.Text, &tele.SendOptions{ReplyMarkup: reply.Keyboard})
	}
	return helpers.SendText(c, reply.Text)
}
