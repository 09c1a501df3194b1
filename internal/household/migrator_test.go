package household

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

type fakeRelabeler struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	last  map[string]string
	scope map[string][]string
}

func newFakeRelabeler() *fakeRelabeler {
	return &fakeRelabeler{
		calls: make(map[string]int),
		fail:  make(map[string]bool),
		last:  make(map[string]string),
		scope: make(map[string][]string),
	}
}

func (f *fakeRelabeler) UpdateFields(_ context.Context, householdIDs []string, id string, update models.FieldUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	f.scope[id] = householdIDs
	if f.fail[id] {
		return errors.New("write rejected")
	}
	f.last[id] = *update.HouseholdID
	return nil
}

func (f *fakeRelabeler) setFail(id string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = fail
}

func (f *fakeRelabeler) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func TestMigrator_Reconcile(t *testing.T) {
	addr := Resolve(identity.User{UID: "uid1", Email: "you@x.com"}, "partner@y.com")
	snapshot := []models.Expense{
		{ID: "legacy-1", HouseholdID: addr.Legacy},
		{ID: "current-1", HouseholdID: addr.Current},
		{ID: "", HouseholdID: addr.Legacy},
	}

	t.Run("migrates legacy records exactly once", func(t *testing.T) {
		writer := newFakeRelabeler()
		m := NewMigrator(writer, nil)

		started := m.Reconcile(context.Background(), addr, snapshot)
		m.Wait()
		assert.Equal(t, 1, started)
		assert.Equal(t, 1, writer.count("legacy-1"))
		assert.Equal(t, addr.Current, writer.last["legacy-1"])
		assert.ElementsMatch(t, []string{addr.Current, addr.Legacy}, writer.scope["legacy-1"])
		assert.Equal(t, 0, writer.count("current-1"))

		// Same snapshot pushed again before the relabel is observed.
		assert.Equal(t, 0, m.Reconcile(context.Background(), addr, snapshot))
		m.Wait()
		assert.Equal(t, 1, writer.count("legacy-1"))
		assert.True(t, m.Attempted("legacy-1"))
	})

	t.Run("failure is retried on the next snapshot", func(t *testing.T) {
		writer := newFakeRelabeler()
		writer.setFail("legacy-1", true)
		m := NewMigrator(writer, nil)

		m.Reconcile(context.Background(), addr, snapshot)
		m.Wait()
		require.Equal(t, 1, writer.count("legacy-1"))
		assert.False(t, m.Attempted("legacy-1"))

		writer.setFail("legacy-1", false)
		assert.Equal(t, 1, m.Reconcile(context.Background(), addr, snapshot))
		m.Wait()
		assert.Equal(t, 2, writer.count("legacy-1"))
		assert.True(t, m.Attempted("legacy-1"))
	})

	t.Run("no-op without a distinct legacy id", func(t *testing.T) {
		writer := newFakeRelabeler()
		m := NewMigrator(writer, nil)

		single := Resolve(identity.User{UID: "uid1"}, "partner@y.com")
		assert.Equal(t, 0, m.Reconcile(context.Background(), single, []models.Expense{{ID: "x", HouseholdID: single.Legacy}}))
		assert.Equal(t, 0, m.Reconcile(context.Background(), Address{}, snapshot))
	})
}
