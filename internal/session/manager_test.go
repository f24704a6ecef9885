package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/spendbot/internal/api"
)

func TestPeekDefaultsToIdle(t *testing.T) {
	m := NewManager()

	s := m.Peek(100)
	assert.Equal(t, StepIdle, s.Step)
	assert.False(t, s.LoggedIn())
	assert.False(t, m.InProgress(100))
}

func TestDoPersistsChanges(t *testing.T) {
	m := NewManager()

	m.Do(7, func(s *Session) {
		s.Tokens = api.TokenPair{Access: "acc", Refresh: "ref"}
		s.StartFlow(StepAddAmount)
		s.Draft.Amount = 250
	})

	s := m.Peek(7)
	assert.Equal(t, StepAddAmount, s.Step)
	assert.Equal(t, 250.0, s.Draft.Amount)
	assert.True(t, s.LoggedIn())
	assert.True(t, m.InProgress(7))
}

func TestStartFlowClearsDraft(t *testing.T) {
	m := NewManager()

	m.Do(7, func(s *Session) {
		s.Draft.Description = "stale"
		s.StartFlow(StepAddAmount)
	})

	require.Empty(t, m.Peek(7).Draft.Description)
}

func TestResetKeepsTokens(t *testing.T) {
	m := NewManager()
	m.Do(7, func(s *Session) {
		s.Tokens = api.TokenPair{Access: "acc", Refresh: "ref"}
		s.StartFlow(StepUpdateSelect)
		s.Draft.Target = api.Expense{ID: 42}
	})

	m.Reset(7)

	s := m.Peek(7)
	assert.Equal(t, StepIdle, s.Step)
	assert.Zero(t, s.Draft.Target.ID)
	assert.True(t, s.LoggedIn())
}

func TestLogoutDropsEverything(t *testing.T) {
	m := NewManager()
	m.Do(7, func(s *Session) {
		s.Tokens = api.TokenPair{Access: "acc", Refresh: "ref"}
		s.StartFlow(StepAddAmount)
	})

	m.Do(7, func(s *Session) { s.Logout() })

	s := m.Peek(7)
	assert.False(t, s.LoggedIn())
	assert.Equal(t, StepIdle, s.Step)
}

func TestDoSerializesPerUser(t *testing.T) {
	m := NewManager()

	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				m.Do(1, func(s *Session) {
					s.Draft.Amount++
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(workers*rounds), m.Peek(1).Draft.Amount)
}
