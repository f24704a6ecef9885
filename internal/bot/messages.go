package bot

// User-facing texts. The bot speaks Russian; callback uniques and field
// names stay latin because users type the latter verbatim.
const (
	msgGreeting    = "👋 Привет! Я бот для учёта расходов"
	msgWelcomeBack = "Вы снова в боте!"
	msgLoginFirst  = "⚠️ Сначала войдите"

	msgLoginPrompt    = "Введите email и пароль через пробел:"
	msgLoginOK        = "✅ Вы вошли"
	msgLoginFailed    = "❌ Ошибка входа: неверный email или пароль"
	msgRegisterPrompt = "Введите: email пароль имя"
	msgRegisterOK     = "✅ Регистрация успешна. Теперь войдите."
	msgEmailTaken     = "❌ Пользователь с таким email уже существует"
	msgRegisterBad    = "❌ Некорректные данные (email или пароль)"
	msgRegisterRetry  = "⚠️ Не удалось зарегистрироваться. Попробуйте позже."

	msgSessionExpired = "⚠️ Сессия истекла. Войдите снова."

	msgNoExpenses    = "Расходов пока нет."
	msgExpensesError = "⚠️ Ошибка получения расходов. Попробуйте позже."
	msgProfileError  = "⚠️ Ошибка загрузки профиля. Попробуйте позже."

	msgAmountPrompt      = "Введите сумму расхода:"
	msgAmountInvalid     = "Введите корректное число"
	msgDescPrompt        = "Введите описание расхода:"
	msgCategoryPrompt    = "Выберите категорию:"
	msgCategoriesError   = "⚠️ Не удалось загрузить категории. Попробуйте позже."
	msgExpenseAdded      = "✅ Расход добавлен"
	msgAddError          = "⚠️ Ошибка добавления. Попробуйте позже."
	msgUpdatePrompt      = "Введите номер расхода для обновления:"
	msgDeletePrompt      = "Введите номер расхода для удаления:"
	msgIndexInvalid      = "Введите корректный номер"
	msgExpenseNotFound   = "Расход с таким номером не найден"
	msgExpenseDeleted    = "✅ Расход удалён"
	msgDeleteError       = "⚠️ Ошибка удаления. Попробуйте позже."
	msgFieldPrompt       = "Введите поле для обновления (amount, description, date, category):"
	msgFieldInvalid      = "Некорректное поле. Введите: amount, description, date, category"
	msgDateInvalid       = "Введите дату в формате ГГГГ-ММ-ДД"
	msgNewCategoryPrompt = "Выберите новую категорию:"
	msgExpenseUpdated    = "✅ Расход обновлён"
	msgCategoryUpdated   = "✅ Категория обновлена"
	msgUpdateError       = "⚠️ Ошибка обновления. Попробуйте позже."

	msgStateReset = "❌ Состояние сброшено"
)
