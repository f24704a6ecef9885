// Package app assembles the bot: configuration, the expense API client,
// the session store, the conversation engine and the Telegram wiring.
package app

import (
	"fmt"

	"github.com/m3rciful/spendbot/core/bootstrap"
	corecmd "github.com/m3rciful/spendbot/core/cmd"
	"github.com/m3rciful/spendbot/core/httpx"
	coretelegram "github.com/m3rciful/spendbot/core/telegram"
	"github.com/m3rciful/spendbot/core/telegram/router"
	"github.com/m3rciful/spendbot/internal/api"
	"github.com/m3rciful/spendbot/internal/bot"
	"github.com/m3rciful/spendbot/internal/config"
	"github.com/m3rciful/spendbot/internal/session"
)

// App holds the built components between bootstrap and run.
type App struct {
	cfg      *config.Config
	registry *coretelegram.Registry
	router   *bot.Router
}

// LoadConfig adapts config.Load to the runner's carrier interface.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return config.Load(path)
}

// Bootstrap initializes logging and constructs the engine with its wiring.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	if err := bootstrap.Run(bootstrap.Options{Config: cfg.CoreConfig()}); err != nil {
		return nil, err
	}

	client := api.New(cfg.API.BaseURL, httpx.New(httpx.Options{Timeout: cfg.API.Timeout()}))
	engine := bot.NewEngine(client, session.NewManager())
	botRouter := bot.NewRouter(engine)

	registry := coretelegram.NewRegistry()
	botRouter.Register(registry)

	return &App{cfg: cfg, registry: registry, router: botRouter}, nil
}

// TelegramRunOptions assembles the runtime wiring: middleware chain plus
// command, callback and text routes.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{
		NotFound: a.router.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a.router, a.registry, router.TextOptions{
		UnknownText: a.router.UnknownText(),
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
	}, nil
}
