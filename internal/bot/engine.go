// Package bot implements the conversation engine: a per-user state machine
// that drives the login, registration and expense CRUD dialogs against the
// expense service.
package bot

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/spendbot/core/logger"
	"github.com/m3rciful/spendbot/internal/api"
	"github.com/m3rciful/spendbot/internal/session"
)

// Reply is what the engine wants sent back for one inbound event. A
// non-empty Alert means "answer the callback with a popup, send nothing".
// The engine never talks to the transport itself; the wiring layer delivers
// replies, which keeps every dialog step testable without a live bot.
type Reply struct {
	Text     string
	Keyboard *tele.ReplyMarkup
	Alert    string
}

// Engine interprets chat events against each user's session and calls the
// expense service. One inbound event per user is processed at a time; the
// session manager serializes them.
type Engine struct {
	api      *api.Client
	sessions *session.Manager
	now      func() time.Time
}

// NewEngine builds an Engine over the given API client and session store.
func NewEngine(client *api.Client, sessions *session.Manager) *Engine {
	return &Engine{
		api:      client,
		sessions: sessions,
		now:      time.Now,
	}
}

// Sessions exposes the underlying session store for transport wiring.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Start handles the /start command: greet newcomers with the auth menu,
// returning users with the main one.
func (e *Engine) Start(ctx context.Context, userID int64) Reply {
	return e.withSession(userID, func(s *session.Session) Reply {
		if !s.LoggedIn() {
			return Reply{Text: msgGreeting, Keyboard: authKeyboard()}
		}
		return Reply{Text: msgWelcomeBack, Keyboard: mainKeyboard()}
	})
}

// Action handles a menu button press identified by its callback unique.
func (e *Engine) Action(ctx context.Context, userID int64, action string) Reply {
	return e.withSession(userID, func(s *session.Session) Reply {
		switch action {
		case cbLogin:
			s.StartFlow(session.StepLoginCreds)
			return Reply{Text: msgLoginPrompt}
		case cbRegister:
			s.StartFlow(session.StepRegisterCreds)
			return Reply{Text: msgRegisterPrompt}
		}

		// The rest of the menu needs tokens.
		if !s.LoggedIn() {
			return Reply{Text: msgLoginFirst, Keyboard: authKeyboard()}
		}

		switch action {
		case cbExpenses:
			return e.listExpenses(ctx, s)
		case cbProfile:
			return e.showProfile(ctx, s)
		case cbAdd:
			s.StartFlow(session.StepAddAmount)
			return Reply{Text: msgAmountPrompt}
		case cbUpdate:
			s.StartFlow(session.StepUpdateSelect)
			return Reply{Text: msgUpdatePrompt}
		case cbDelete:
			s.StartFlow(session.StepDeleteSelect)
			return Reply{Text: msgDeletePrompt}
		default:
			return Reply{Alert: msgStateReset}
		}
	})
}

// Text handles free-form input, dispatching on the user's current step.
// Outside a flow the engine stays silent; command routing happens elsewhere.
func (e *Engine) Text(ctx context.Context, userID int64, text string) Reply {
	return e.withSession(userID, func(s *session.Session) Reply {
		switch s.Step {
		case session.StepLoginCreds:
			return e.loginStep(ctx, s, text)
		case session.StepRegisterCreds:
			return e.registerStep(ctx, s, text)
		case session.StepAddAmount:
			return e.addAmountStep(s, text)
		case session.StepAddDescription:
			return e.addDescriptionStep(ctx, s, text)
		case session.StepUpdateSelect:
			return e.updateSelectStep(ctx, s, text)
		case session.StepUpdateField:
			return e.updateFieldStep(ctx, s, text)
		case session.StepUpdateValue:
			return e.updateValueStep(ctx, s, text)
		case session.StepDeleteSelect:
			return e.deleteSelectStep(ctx, s, text)
		default:
			return Reply{}
		}
	})
}

// Category handles a category button press. The event must match the step
// the session is actually waiting in; a stale or replayed button press is
// answered with a popup and changes nothing.
func (e *Engine) Category(ctx context.Context, userID int64, step session.Step, categoryID int64) Reply {
	return e.withSession(userID, func(s *session.Session) Reply {
		if s.Step != step || !s.LoggedIn() {
			logger.Debug(ctx, "tg", "category.stale",
				slog.String("step", string(s.Step)),
				slog.Int64("category_id", categoryID),
			)
			return Reply{Alert: msgStateReset}
		}

		switch step {
		case session.StepAddCategory:
			return e.addCategoryStep(ctx, s, categoryID)
		case session.StepUpdateCategory:
			return e.updateCategoryStep(ctx, s, categoryID)
		default:
			return Reply{Alert: msgStateReset}
		}
	})
}

func (e *Engine) withSession(userID int64, fn func(*session.Session) Reply) Reply {
	var r Reply
	e.sessions.Do(userID, func(s *session.Session) {
		r = fn(s)
	})
	return r
}

// flowError converts an API failure at a flow boundary. Authentication
// failures drop the tokens and push the user back to the auth menu; anything
// else keeps the tokens, aborts the flow and shows the flow's own message.
func (e *Engine) flowError(ctx context.Context, s *session.Session, op string, err error, failText string) Reply {
	logger.Warn(ctx, "tg", op+".failed", slog.String("error", err.Error()))

	if api.IsAuthError(err) {
		s.Logout()
		return Reply{Text: msgSessionExpired, Keyboard: authKeyboard()}
	}

	s.EndFlow()
	return Reply{Text: failText, Keyboard: mainKeyboard()}
}
