package domain

import "testing"

func TestProductID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		if ProductID("Ferrari") != ProductID("Ferrari") {
			t.Error("same name must derive the same id")
		}
	})

	t.Run("distinct names derive distinct ids", func(t *testing.T) {
		if ProductID("Ferrari") == ProductID("Wiesmann") {
			t.Error("different names must not collide")
		}
	})

	t.Run("hex encoded sha-256", func(t *testing.T) {
		id := ProductID("Ferrari")
		if len(id) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(id))
		}
	})
}
