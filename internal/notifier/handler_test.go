package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopfront/ledger/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelope(t *testing.T, eventType string, payload any) domain.Envelope {
	t.Helper()
	env, err := domain.NewEnvelope(eventType, "test", payload)
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}
	return env
}

func TestNotificationHandler_Handle(t *testing.T) {
	t.Run("sends receipt for purchase event", func(t *testing.T) {
		var sent map[string]string
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/send" {
				t.Errorf("expected /send, got %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
				t.Fatalf("failed to decode email request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, emailServer.Client(), discardLogger())

		env := envelope(t, domain.EventProductPurchased, domain.PurchasePayload{
			ProductID:  "abc",
			Buyer:      "alice",
			Quantity:   3,
			TotalPrice: 135000,
		})
		if err := handler.Handle(context.Background(), env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if sent["to"] != "alice@example.com" {
			t.Errorf("expected alice@example.com, got %s", sent["to"])
		}
		if !strings.Contains(sent["body"], "135000") {
			t.Errorf("expected body to mention the total, got %s", sent["body"])
		}
	})

	t.Run("sends fulfilment notice", func(t *testing.T) {
		var sent map[string]string
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
				t.Fatalf("failed to decode email request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, emailServer.Client(), discardLogger())

		env := envelope(t, domain.EventCoOrderFulfilled, domain.CoOrderPayload{
			OrderID:   7,
			Buyer:     "bob",
			ProductID: "abc",
			Quantity:  2,
		})
		if err := handler.Handle(context.Background(), env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if sent["subject"] != "Co-Order Fulfilled: 7" {
			t.Errorf("unexpected subject: %s", sent["subject"])
		}
	})

	t.Run("sends refund notice", func(t *testing.T) {
		var sent map[string]string
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
				t.Fatalf("failed to decode email request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, emailServer.Client(), discardLogger())

		env := envelope(t, domain.EventCoOrderWithdrawn, domain.WithdrawalPayload{
			OrderID: 9,
			Buyer:   "carol",
			Amount:  30000,
		})
		if err := handler.Handle(context.Background(), env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if sent["to"] != "carol@example.com" {
			t.Errorf("expected carol@example.com, got %s", sent["to"])
		}
		if !strings.Contains(sent["body"], "30000") {
			t.Errorf("expected body to mention the refund, got %s", sent["body"])
		}
	})

	t.Run("skips unhandled event types", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no email expected for unhandled event types")
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, emailServer.Client(), discardLogger())

		env := envelope(t, domain.EventProductCreated, domain.ProductEventPayload{ProductID: "abc"})
		if err := handler.Handle(context.Background(), env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("propagates email service failure", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, emailServer.Client(), discardLogger())

		env := envelope(t, domain.EventProductPurchased, domain.PurchasePayload{Buyer: "alice"})
		if err := handler.Handle(context.Background(), env); err == nil {
			t.Error("expected error when email service fails")
		}
	})
}
