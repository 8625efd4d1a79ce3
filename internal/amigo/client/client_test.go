package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"datavend_backend/platform/logger"
)

func TestDispenseSendsVendorPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/data/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "amigo-key" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Dispensed","reference":"AMG-1"}`))
	}))
	defer srv.Close()

	c := New(&http.Client{Timeout: 5 * time.Second}, srv.URL, "amigo-key", logger.Discard())
	d, err := c.Dispense(context.Background(), Order{NetworkCode: 1, PhoneNumber: "08031234567", PlanCode: 1001, Ported: true})
	if err != nil {
		t.Fatalf("Dispense returned error: %v", err)
	}

	if got["network"].(float64) != 1 || got["plan"].(float64) != 1001 || got["mobile_number"] != "08031234567" || got["Ported_number"] != true {
		t.Fatalf("unexpected vendor payload %v", got)
	}
	if !d.Success || d.Message != "Dispensed" {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if string(d.Raw) != `{"success":true,"message":"Dispensed","reference":"AMG-1"}` {
		t.Fatalf("expected raw body to be kept verbatim, got %s", d.Raw)
	}
}

func TestDispenseVendorRefusalIsAnOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"Insufficient wallet balance"}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "k", logger.Discard())
	d, err := c.Dispense(context.Background(), Order{NetworkCode: 1, PhoneNumber: "0803", PlanCode: 1})
	if err != nil {
		t.Fatalf("expected refusal to be an outcome, got %v", err)
	}
	if d.Success || d.Message != "Insufficient wallet balance" {
		t.Fatalf("unexpected delivery %+v", d)
	}
}

func TestDispenseUndecodableResponseIsAnError(t *testing.T) {
	for name, body := range map[string]string{
		"html":       "<html>502 Bad Gateway</html>",
		"no success": `{"message":"hello"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := New(srv.Client(), srv.URL, "k", logger.Discard())
			if _, err := c.Dispense(context.Background(), Order{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
