package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/spendbot/core/telegram/format"
	"github.com/m3rciful/spendbot/core/telegram/helpers"
	"github.com/m3rciful/spendbot/internal/api"
	"github.com/m3rciful/spendbot/internal/session"
)

const dateLayout = "2006-01-02"

// updatableFields is the set a user may name in the update flow.
var updatableFields = map[string]bool{
	"amount":      true,
	"description": true,
	"date":        true,
	"category":    true,
}

func (e *Engine) loginStep(ctx context.Context, s *session.Session, text string) Reply {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Reply{Text: msgLoginPrompt}
	}

	tokens, err := e.api.Login(ctx, fields[0], fields[1])
	s.EndFlow()
	if err != nil {
		return Reply{Text: msgLoginFailed}
	}

	s.Tokens = tokens
	return Reply{Text: msgLoginOK, Keyboard: mainKeyboard()}
}

func (e *Engine) registerStep(ctx context.Context, s *session.Session, text string) Reply {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return Reply{Text: msgRegisterPrompt}
	}
	email, password := fields[0], fields[1]
	name := strings.Join(fields[2:], " ")

	// Registration never touches tokens, so failures here clear nothing.
	err := e.api.Register(ctx, name, email, password)
	s.EndFlow()
	var se *api.StatusError
	switch {
	case err == nil:
		return Reply{Text: msgRegisterOK, Keyboard: authKeyboard()}
	case errors.Is(err, api.ErrEmailTaken):
		return Reply{Text: msgEmailTaken}
	case errors.Is(err, api.ErrRegisterPayload):
		return Reply{Text: msgRegisterBad}
	case errors.As(err, &se) && se.Message != "":
		return Reply{Text: fmt.Sprintf("❌ Ошибка регистрации: %s", se.Message)}
	default:
		return Reply{Text: msgRegisterRetry}
	}
}

func (e *Engine) addAmountStep(s *session.Session, text string) Reply {
	amount, ok := parseAmount(text)
	if !ok {
		return Reply{Text: msgAmountInvalid}
	}
	s.Draft.Amount = amount
	s.Step = session.StepAddDescription
	return Reply{Text: msgDescPrompt}
}

func (e *Engine) addDescriptionStep(ctx context.Context, s *session.Session, text string) Reply {
	s.Draft.Description = text
	s.Draft.Date = e.now().Format(dateLayout)

	categories, err := e.ensureCategories(ctx, s)
	if err != nil {
		return e.flowError(ctx, s, "categories", err, msgCategoriesError)
	}

	s.Step = session.StepAddCategory
	return Reply{
		Text:     msgCategoryPrompt + categoryLegend(categories),
		Keyboard: categoryKeyboard(cbAddCategory, categories),
	}
}

func (e *Engine) addCategoryStep(ctx context.Context, s *session.Session, categoryID int64) Reply {
	expense := api.Expense{
		Amount:      s.Draft.Amount,
		Description: s.Draft.Description,
		Date:        s.Draft.Date,
		CategoryID:  categoryID,
	}

	tokens, err := e.api.CreateExpense(ctx, s.Tokens, expense)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "expense.create", err, msgAddError)
	}

	s.EndFlow()
	return Reply{Text: msgExpenseAdded, Keyboard: mainKeyboard()}
}

func (e *Engine) updateSelectStep(ctx context.Context, s *session.Session, text string) Reply {
	index, ok := parseIndex(text)
	if !ok {
		return Reply{Text: msgIndexInvalid}
	}

	expense, reply, found := e.resolveIndex(ctx, s, index)
	if !found {
		return reply
	}

	s.Draft.Target = expense
	s.Step = session.StepUpdateField
	return Reply{Text: msgFieldPrompt}
}

func (e *Engine) updateFieldStep(ctx context.Context, s *session.Session, text string) Reply {
	field := strings.ToLower(strings.TrimSpace(text))
	if !updatableFields[field] {
		return Reply{Text: msgFieldInvalid}
	}

	if field == "category" {
		categories, err := e.ensureCategories(ctx, s)
		if err != nil {
			return e.flowError(ctx, s, "categories", err, msgCategoriesError)
		}
		s.Step = session.StepUpdateCategory
		return Reply{
			Text:     msgNewCategoryPrompt + categoryLegend(categories),
			Keyboard: categoryKeyboard(cbUpdateCategory, categories),
		}
	}

	s.Draft.Field = field
	s.Step = session.StepUpdateValue
	return Reply{Text: fmt.Sprintf("Введите новое значение для %s:", field)}
}

func (e *Engine) updateValueStep(ctx context.Context, s *session.Session, text string) Reply {
	target := s.Draft.Target

	switch s.Draft.Field {
	case "amount":
		amount, ok := parseAmount(text)
		if !ok {
			return Reply{Text: msgAmountInvalid}
		}
		target.Amount = amount
	case "date":
		t, ok := helpers.ParseFlexibleDate(text)
		if !ok {
			return Reply{Text: msgDateInvalid}
		}
		target.Date = t.Format(dateLayout)
	default:
		target.Description = text
	}

	tokens, err := e.api.UpdateExpense(ctx, s.Tokens, target.ID, target)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "expense.update", err, msgUpdateError)
	}

	s.EndFlow()
	return Reply{Text: msgExpenseUpdated, Keyboard: mainKeyboard()}
}

func (e *Engine) updateCategoryStep(ctx context.Context, s *session.Session, categoryID int64) Reply {
	target := s.Draft.Target
	target.CategoryID = categoryID

	tokens, err := e.api.UpdateExpense(ctx, s.Tokens, target.ID, target)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "expense.update", err, msgUpdateError)
	}

	s.EndFlow()
	return Reply{Text: msgCategoryUpdated, Keyboard: mainKeyboard()}
}

func (e *Engine) deleteSelectStep(ctx context.Context, s *session.Session, text string) Reply {
	index, ok := parseIndex(text)
	if !ok {
		return Reply{Text: msgIndexInvalid}
	}

	expense, reply, found := e.resolveIndex(ctx, s, index)
	if !found {
		return reply
	}

	tokens, err := e.api.DeleteExpense(ctx, s.Tokens, expense.ID)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "expense.delete", err, msgDeleteError)
	}

	s.EndFlow()
	return Reply{Text: msgExpenseDeleted, Keyboard: mainKeyboard()}
}

func (e *Engine) listExpenses(ctx context.Context, s *session.Session) Reply {
	expenses, tokens, err := e.api.Expenses(ctx, s.Tokens)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "expense.list", err, msgExpensesError)
	}

	if len(expenses) == 0 {
		return Reply{Text: msgNoExpenses, Keyboard: mainKeyboard()}
	}

	categories, tokens, err := e.api.Categories(ctx, s.Tokens)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "categories", err, msgExpensesError)
	}

	return Reply{Text: renderExpenses(expenses, categories), Keyboard: mainKeyboard()}
}

func (e *Engine) showProfile(ctx context.Context, s *session.Session) Reply {
	profile, tokens, err := e.api.Me(ctx, s.Tokens)
	s.Tokens = tokens
	if err != nil {
		return e.flowError(ctx, s, "profile", err, msgProfileError)
	}

	text := fmt.Sprintf("👤 Профиль\n\nИмя: %s\nEmail: %s", profile.Name, profile.Email)
	return Reply{Text: text, Keyboard: mainKeyboard()}
}

// resolveIndex re-fetches the listing and resolves a 1-based display index
// against it. Stale indexes from an earlier listing never reach the API.
func (e *Engine) resolveIndex(ctx context.Context, s *session.Session, index int) (api.Expense, Reply, bool) {
	expenses, tokens, err := e.api.Expenses(ctx, s.Tokens)
	s.Tokens = tokens
	if err != nil {
		return api.Expense{}, e.flowError(ctx, s, "expense.list", err, msgExpensesError), false
	}

	for _, expense := range expenses {
		if expense.Index == index {
			return expense, Reply{}, true
		}
	}
	return api.Expense{}, Reply{Text: msgExpenseNotFound}, false
}

// ensureCategories fetches the category list once per flow and caches it in
// the draft for re-rendering within the same flow.
func (e *Engine) ensureCategories(ctx context.Context, s *session.Session) ([]api.Category, error) {
	if s.Draft.Categories != nil {
		return s.Draft.Categories, nil
	}

	categories, tokens, err := e.api.Categories(ctx, s.Tokens)
	s.Tokens = tokens
	if err != nil {
		return nil, err
	}
	s.Draft.Categories = categories
	return categories, nil
}

// parseAmount reads a decimal amount accepting both "." and "," separators.
func parseAmount(text string) (float64, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// parseIndex reads a 1-based display index.
func parseIndex(text string) (int, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || index < 1 {
		return 0, false
	}
	return index, true
}

// categoryLegend lists category descriptions under the selection prompt,
// skipping categories that have none.
func categoryLegend(categories []api.Category) string {
	var b strings.Builder
	for _, c := range categories {
		desc := format.DerefString(c.Description, "")
		if desc == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", c.Name, desc)
	}
	return b.String()
}

func renderExpenses(expenses []api.Expense, categories []api.Category) string {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	entries := make([]string, 0, len(expenses))
	for _, e := range expenses {
		name, ok := names[e.CategoryID]
		if !ok {
			name = "—"
		}
		entries = append(entries, fmt.Sprintf(
			"%d. Сумма: %s ₽\nОписание: %s\nДата: %s\nКатегория: %s",
			e.Index, formatAmount(e.Amount), e.Description, e.Date, name,
		))
	}
	return strings.Join(entries, "\n\n")
}

// formatAmount prints whole amounts without a fraction: 990, 12.5, 0.99.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
