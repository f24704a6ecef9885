package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/spendbot/internal/api"
	"github.com/m3rciful/spendbot/internal/session"
)

// fakeService is an in-memory stand-in for the expense REST service with
// rotating bearer tokens.
type fakeService struct {
	mu sync.Mutex

	users      map[string]string
	expenses   []api.Expense
	categories []api.Category
	nextID     int64

	access  string
	refresh string
	gen     int

	refreshCalls  int
	categoryCalls int
	deleteCalls   int
	updateCalls   int
}

func newFakeService() *fakeService {
	return &fakeService{
		users: map[string]string{"user@example.com": "secret"},
		categories: []api.Category{
			{ID: 1, Name: "Продукты"},
			{ID: 2, Name: "Транспорт"},
			{ID: 3, Name: "Развлечения"},
		},
		nextID: 1,
	}
}

func (f *fakeService) rotate() {
	f.gen++
	f.access = fmt.Sprintf("acc-%d", f.gen)
	f.refresh = fmt.Sprintf("ref-%d", f.gen)
}

// expireAccess invalidates the access token but keeps the refresh token
// usable, so the next authorized call must refresh.
func (f *fakeService) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "expired"
}

// expireAll invalidates both tokens; refresh attempts fail.
func (f *fakeService) expireAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "expired"
	f.refresh = "expired"
}

func (f *fakeService) seed(e api.Expense) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.nextID
	f.nextID++
	f.expenses = append(f.expenses, e)
}

func (f *fakeService) expense(id int64) (api.Expense, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return api.Expense{}, false
}

func (f *fakeService) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.access
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if v != nil {
			_ = json.NewEncoder(w).Encode(v)
		}
	}

	switch {
	case r.URL.Path == "/auth/login":
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if f.users[req.Email] != req.Password || req.Password == "" {
			reply(http.StatusUnauthorized, nil)
			return
		}
		f.rotate()
		reply(http.StatusOK, api.TokenPair{Access: f.access, Refresh: f.refresh})

	case r.URL.Path == "/auth/register":
		var req struct{ Name, Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case req.Email == "" || req.Password == "" || req.Name == "":
			reply(http.StatusNotFound, nil)
		case f.users[req.Email] != "":
			reply(http.StatusConflict, nil)
		default:
			f.users[req.Email] = req.Password
			reply(http.StatusCreated, nil)
		}

	case r.URL.Path == "/auth/refresh":
		f.refreshCalls++
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != f.refresh || f.refresh == "expired" {
			reply(http.StatusUnauthorized, nil)
			return
		}
		f.rotate()
		reply(http.StatusOK, api.TokenPair{Access: f.access, Refresh: f.refresh})

	case !f.authorized(r):
		reply(http.StatusUnauthorized, nil)

	case r.URL.Path == "/users/me":
		reply(http.StatusOK, api.Profile{ID: 7, Name: "Аня", Email: "user@example.com"})

	case r.URL.Path == "/categories":
		f.categoryCalls++
		reply(http.StatusOK, f.categories)

	case r.URL.Path == "/expenses" && r.Method == http.MethodGet:
		reply(http.StatusOK, f.expenses)

	case r.URL.Path == "/expenses" && r.Method == http.MethodPost:
		var e api.Expense
		_ = json.NewDecoder(r.Body).Decode(&e)
		e.ID = f.nextID
		f.nextID++
		f.expenses = append(f.expenses, e)
		reply(http.StatusCreated, nil)

	case strings.HasPrefix(r.URL.Path, "/expenses/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/expenses/"), 10, 64)
		idx := -1
		for i, e := range f.expenses {
			if e.ID == id {
				idx = i
			}
		}
		if idx < 0 {
			reply(http.StatusNotFound, map[string]string{"message": "expense not found"})
			return
		}
		switch r.Method {
		case http.MethodPut:
			f.updateCalls++
			var e api.Expense
			_ = json.NewDecoder(r.Body).Decode(&e)
			e.ID = id
			f.expenses[idx] = e
			reply(http.StatusOK, nil)
		case http.MethodDelete:
			f.deleteCalls++
			f.expenses = append(f.expenses[:idx], f.expenses[idx+1:]...)
			reply(http.StatusOK, nil)
		default:
			reply(http.StatusMethodNotAllowed, nil)
		}

	default:
		reply(http.StatusNotFound, nil)
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeService) {
	t.Helper()
	svc := newFakeService()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	eng := NewEngine(api.New(srv.URL, srv.Client()), session.NewManager())
	eng.now = func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
	return eng, svc
}

const testUser int64 = 1001

func login(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	eng.Action(ctx, testUser, cbLogin)
	reply := eng.Text(ctx, testUser, "user@example.com secret")
	require.Equal(t, msgLoginOK, reply.Text)
}

func keyboardLabels(reply Reply) []string {
	if reply.Keyboard == nil {
		return nil
	}
	var labels []string
	for _, row := range reply.Keyboard.InlineKeyboard {
		for _, btn := range row {
			labels = append(labels, btn.Text)
		}
	}
	return labels
}

func TestStartMenus(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	reply := eng.Start(ctx, testUser)
	assert.Equal(t, msgGreeting, reply.Text)
	assert.Equal(t, []string{"🔐 Войти", "📝 Регистрация"}, keyboardLabels(reply))

	login(t, eng)

	reply = eng.Start(ctx, testUser)
	assert.Equal(t, msgWelcomeBack, reply.Text)
	assert.Len(t, keyboardLabels(reply), 5)
}

func TestLoginFlow(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	reply := eng.Action(ctx, testUser, cbLogin)
	assert.Equal(t, msgLoginPrompt, reply.Text)
	assert.Equal(t, session.StepLoginCreds, eng.sessions.Peek(testUser).Step)

	// Single word keeps the prompt and the step.
	reply = eng.Text(ctx, testUser, "user@example.com")
	assert.Equal(t, msgLoginPrompt, reply.Text)
	assert.Equal(t, session.StepLoginCreds, eng.sessions.Peek(testUser).Step)

	reply = eng.Text(ctx, testUser, "user@example.com wrongpass")
	assert.Equal(t, msgLoginFailed, reply.Text)
	s := eng.sessions.Peek(testUser)
	assert.False(t, s.LoggedIn())
	assert.Equal(t, session.StepIdle, s.Step)

	eng.Action(ctx, testUser, cbLogin)
	reply = eng.Text(ctx, testUser, "user@example.com secret")
	assert.Equal(t, msgLoginOK, reply.Text)
	loggedIn := eng.sessions.Peek(testUser)
	assert.True(t, loggedIn.LoggedIn())
}

func TestRegisterFlow(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	eng.Action(ctx, testUser, cbRegister)
	reply := eng.Text(ctx, testUser, "new@example.com pass Вася")
	assert.Equal(t, msgRegisterOK, reply.Text)
	registered := eng.sessions.Peek(testUser)
	assert.False(t, registered.LoggedIn(), "registration must not log in")

	// Duplicate email gets its own message, not the generic one.
	eng.Action(ctx, testUser, cbRegister)
	reply = eng.Text(ctx, testUser, "user@example.com pass Вася")
	assert.Equal(t, msgEmailTaken, reply.Text)

	eng.Action(ctx, testUser, cbRegister)
	reply = eng.Text(ctx, testUser, "a b")
	assert.Equal(t, msgRegisterPrompt, reply.Text)
	assert.Equal(t, session.StepRegisterCreds, eng.sessions.Peek(testUser).Step)
}

func TestMenuRequiresLogin(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for _, action := range []string{cbExpenses, cbAdd, cbUpdate, cbDelete, cbProfile} {
		reply := eng.Action(ctx, testUser, action)
		assert.Equal(t, msgLoginFirst, reply.Text, action)
	}
}

func TestListEmptyAccount(t *testing.T) {
	eng, _ := newTestEngine(t)
	login(t, eng)

	reply := eng.Action(context.Background(), testUser, cbExpenses)
	assert.Equal(t, msgNoExpenses, reply.Text)
}

func TestAddFlowRoundTrip(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	login(t, eng)

	reply := eng.Action(ctx, testUser, cbAdd)
	assert.Equal(t, msgAmountPrompt, reply.Text)

	reply = eng.Text(ctx, testUser, "12,50")
	assert.Equal(t, msgDescPrompt, reply.Text)

	reply = eng.Text(ctx, testUser, "такси")
	assert.Equal(t, msgCategoryPrompt, reply.Text)
	require.NotNil(t, reply.Keyboard)
	require.Len(t, reply.Keyboard.InlineKeyboard, 3)
	assert.Equal(t, "Транспорт", reply.Keyboard.InlineKeyboard[1][0].Text)

	reply = eng.Category(ctx, testUser, session.StepAddCategory, 2)
	assert.Equal(t, msgExpenseAdded, reply.Text)
	assert.Equal(t, session.StepIdle, eng.sessions.Peek(testUser).Step)
	assert.Equal(t, 1, svc.categoryCalls, "categories fetched once per flow")

	reply = eng.Action(ctx, testUser, cbExpenses)
	assert.Equal(t,
		"1. Сумма: 12.5 ₽\nОписание: такси\nДата: 2026-08-28\nКатегория: Транспорт",
		reply.Text,
	)
}

func TestAddAmountValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	login(t, eng)
	eng.Action(ctx, testUser, cbAdd)

	for _, input := range []string{"abc", "-5", "0", ""} {
		reply := eng.Text(ctx, testUser, input)
		assert.Equal(t, msgAmountInvalid, reply.Text, "input %q", input)
		assert.Equal(t, session.StepAddAmount, eng.sessions.Peek(testUser).Step)
	}

	reply := eng.Text(ctx, testUser, "100")
	assert.Equal(t, msgDescPrompt, reply.Text)
}

func TestCategoryPromptLegend(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	desc := "транспортные расходы"
	svc.mu.Lock()
	svc.categories[1].Description = &desc
	svc.mu.Unlock()
	login(t, eng)

	eng.Action(ctx, testUser, cbAdd)
	eng.Text(ctx, testUser, "50")
	reply := eng.Text(ctx, testUser, "метро")

	assert.Equal(t, msgCategoryPrompt+"\nТранспорт: транспортные расходы", reply.Text)
}

func TestUpdateFlowSingleField(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	svc.seed(api.Expense{Amount: 10, Description: "кофе", Date: "2026-08-01", CategoryID: 1})
	svc.seed(api.Expense{Amount: 20, Description: "обед", Date: "2026-08-02", CategoryID: 1})
	login(t, eng)

	reply := eng.Action(ctx, testUser, cbUpdate)
	assert.Equal(t, msgUpdatePrompt, reply.Text)

	reply = eng.Text(ctx, testUser, "2")
	assert.Equal(t, msgFieldPrompt, reply.Text)

	reply = eng.Text(ctx, testUser, "color")
	assert.Equal(t, msgFieldInvalid, reply.Text)
	assert.Equal(t, session.StepUpdateField, eng.sessions.Peek(testUser).Step)

	reply = eng.Text(ctx, testUser, "amount")
	assert.Equal(t, "Введите новое значение для amount:", reply.Text)

	reply = eng.Text(ctx, testUser, "99")
	assert.Equal(t, msgExpenseUpdated, reply.Text)

	updated, ok := svc.expense(2)
	require.True(t, ok)
	assert.Equal(t, 99.0, updated.Amount)
	assert.Equal(t, "обед", updated.Description)
	assert.Equal(t, "2026-08-02", updated.Date)
	assert.Equal(t, int64(1), updated.CategoryID)
}

func TestUpdateDateNormalized(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	svc.seed(api.Expense{Amount: 10, Description: "кофе", Date: "2026-08-01", CategoryID: 1})
	login(t, eng)

	eng.Action(ctx, testUser, cbUpdate)
	eng.Text(ctx, testUser, "1")
	eng.Text(ctx, testUser, "date")

	reply := eng.Text(ctx, testUser, "вчера")
	assert.Equal(t, msgDateInvalid, reply.Text)

	reply = eng.Text(ctx, testUser, "05.08.2026")
	assert.Equal(t, msgExpenseUpdated, reply.Text)

	updated, _ := svc.expense(1)
	assert.Equal(t, "2026-08-05", updated.Date)
}

func TestUpdateCategoryFlow(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	svc.seed(api.Expense{Amount: 10, Description: "кофе", Date: "2026-08-01", CategoryID: 1})
	login(t, eng)

	eng.Action(ctx, testUser, cbUpdate)
	eng.Text(ctx, testUser, "1")
	reply := eng.Text(ctx, testUser, "category")
	assert.Equal(t, msgNewCategoryPrompt, reply.Text)
	require.NotNil(t, reply.Keyboard)

	reply = eng.Category(ctx, testUser, session.StepUpdateCategory, 3)
	assert.Equal(t, msgCategoryUpdated, reply.Text)

	updated, _ := svc.expense(1)
	assert.Equal(t, int64(3), updated.CategoryID)
	assert.Equal(t, "кофе", updated.Description)
}

func TestDeleteFlow(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	svc.seed(api.Expense{Amount: 10, Description: "кофе", Date: "2026-08-01", CategoryID: 1})
	svc.seed(api.Expense{Amount: 20, Description: "обед", Date: "2026-08-02", CategoryID: 1})
	login(t, eng)

	eng.Action(ctx, testUser, cbDelete)

	// Out-of-range index never reaches the delete endpoint.
	reply := eng.Text(ctx, testUser, "5")
	assert.Equal(t, msgExpenseNotFound, reply.Text)
	assert.Zero(t, svc.deleteCalls)
	assert.Equal(t, session.StepDeleteSelect, eng.sessions.Peek(testUser).Step)

	reply = eng.Text(ctx, testUser, "1")
	assert.Equal(t, msgExpenseDeleted, reply.Text)
	assert.Equal(t, 1, svc.deleteCalls)

	_, ok := svc.expense(1)
	assert.False(t, ok)
	_, ok = svc.expense(2)
	assert.True(t, ok)
}

func TestProfile(t *testing.T) {
	eng, _ := newTestEngine(t)
	login(t, eng)

	reply := eng.Action(context.Background(), testUser, cbProfile)
	assert.Equal(t, "👤 Профиль\n\nИмя: Аня\nEmail: user@example.com", reply.Text)
}

func TestTokenRefreshTransparent(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	login(t, eng)
	before := eng.sessions.Peek(testUser).Tokens

	svc.expireAccess()

	reply := eng.Action(ctx, testUser, cbExpenses)
	assert.Equal(t, msgNoExpenses, reply.Text)
	assert.Equal(t, 1, svc.refreshCalls)

	after := eng.sessions.Peek(testUser).Tokens
	assert.NotEqual(t, before, after, "refreshed pair must be stored back")
	refreshed := eng.sessions.Peek(testUser)
	assert.True(t, refreshed.LoggedIn())
}

func TestSessionExpiredAbortsFlow(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	svc.seed(api.Expense{Amount: 10, Description: "кофе", Date: "2026-08-01", CategoryID: 1})
	login(t, eng)

	eng.Action(ctx, testUser, cbUpdate)
	svc.expireAll()

	reply := eng.Text(ctx, testUser, "1")
	assert.Equal(t, msgSessionExpired, reply.Text)
	assert.Equal(t, []string{"🔐 Войти", "📝 Регистрация"}, keyboardLabels(reply))

	s := eng.sessions.Peek(testUser)
	assert.False(t, s.LoggedIn())
	assert.Equal(t, session.StepIdle, s.Step)
	assert.Zero(t, s.Draft.Target.ID, "draft must be discarded")
}

func TestStaleCategoryCallback(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	login(t, eng)

	// No add flow is pending, the press is answered with a popup only.
	reply := eng.Category(ctx, testUser, session.StepAddCategory, 2)
	assert.Equal(t, msgStateReset, reply.Alert)
	assert.Empty(t, reply.Text)
	assert.Empty(t, svc.expenses)
}

func TestRequestFailedKeepsTokens(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()
	svc.seed(api.Expense{Amount: 10, Description: "кофе", Date: "2026-08-01", CategoryID: 1})
	login(t, eng)

	eng.Action(ctx, testUser, cbUpdate)
	eng.Text(ctx, testUser, "1")
	eng.Text(ctx, testUser, "amount")

	// Another client removes the expense before the update lands: the flow
	// aborts with its own message but the tokens survive.
	svc.mu.Lock()
	svc.expenses = nil
	svc.mu.Unlock()

	reply := eng.Text(ctx, testUser, "99")
	assert.Equal(t, msgUpdateError, reply.Text)

	s := eng.sessions.Peek(testUser)
	assert.True(t, s.LoggedIn())
	assert.Equal(t, session.StepIdle, s.Step)
}
