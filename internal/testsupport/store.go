package testsupport

import (
	"context"
	"testing"

	"courier/internal/config"
	"courier/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// InsertMessage persists msg for tests using the provided store.
func InsertMessage(t testing.TB, st *store.Store, msg store.Message) {
	t.Helper()

	if err := st.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("store.InsertMessage: %v", err)
	}
}
