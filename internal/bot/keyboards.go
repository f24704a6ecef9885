package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/spendbot/core/telegram/keyboard"
	"github.com/m3rciful/spendbot/internal/api"
)

// Callback uniques for the menu buttons and category pickers.
const (
	cbLogin    = "login"
	cbRegister = "register"
	cbExpenses = "expenses"
	cbAdd      = "add"
	cbUpdate   = "update"
	cbDelete   = "delete"
	cbProfile  = "profile"

	cbAddCategory    = "add_cat"
	cbUpdateCategory = "upd_cat"
)

// authKeyboard is the menu shown to users without tokens.
func authKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🔐 Войти", Unique: cbLogin},
		{Text: "📝 Регистрация", Unique: cbRegister},
	})
}

// mainKeyboard is the menu shown to authenticated users.
func mainKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "📋 Мои расходы", Unique: cbExpenses},
		{Text: "➕ Добавить расход", Unique: cbAdd},
		{Text: "✏️ Обновить расход", Unique: cbUpdate},
		{Text: "🗑️ Удалить расход", Unique: cbDelete},
		{Text: "👤 Профиль", Unique: cbProfile},
	})
}

// categoryKeyboard renders one button per category carrying its id.
func categoryKeyboard(unique string, categories []api.Category) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(categories))
	for _, c := range categories {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   c.Name,
			Unique: unique,
			Data:   strconv.FormatInt(c.ID, 10),
		})
	}
	return keyboard.InlineButtons(buttons)
}
