package api

// TokenPair carries the bearer tokens issued by the expense service.
// Pairs are passed and returned by value; the client keeps no token state,
// so callers decide where the freshest pair lives.
type TokenPair struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken"`
}

// Valid reports whether both tokens are present.
func (t TokenPair) Valid() bool {
	return t.Access != "" && t.Refresh != ""
}

// Expense mirrors a single expense record of the remote service.
// Index is the 1-based display position assigned in listing order; it is
// not stored server-side and is recomputed on every fetch.
type Expense struct {
	ID          int64   `json:"id,omitempty"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	CategoryID  int64   `json:"categoryId"`

	Index int `json:"-"`
}

// Category is a spending category as served by the remote service.
type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Profile describes the authenticated account.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
