package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondErrorDetails(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondErrorDetails(resp, http.StatusInternalServerError, "Upstream error", "raw body")

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Upstream error" || body["details"] != "raw body" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRespondErrorOmitsDetails(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondError(resp, http.StatusBadRequest, "Missing Gemini API key")

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("details should be absent: %v", body)
	}
}
