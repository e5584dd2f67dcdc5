package places

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/tradesite/internal/model"
)

func newOfflineService() *Service {
	return NewService(http.DefaultClient, slog.Default(), "")
}

// TestAutocomplete_OfflineMatch はオフラインリストでの部分一致を検証する。
func TestAutocomplete_OfflineMatch(t *testing.T) {
	s := newOfflineService()

	predictions, err := s.Autocomplete(context.Background(), "bondi", "")
	if err != nil {
		t.Fatalf("Autocomplete returned error: %v", err)
	}
	if len(predictions) != 2 {
		t.Fatalf("predictions = %d, want 2 (Bondi, Bondi Junction)", len(predictions))
	}

	first := predictions[0]
	if first.PlaceID != "mock-bondi-2026" {
		t.Errorf("PlaceID = %q, want mock-bondi-2026", first.PlaceID)
	}
	if first.Description != "Bondi, NSW 2026, Australia" {
		t.Errorf("Description = %q", first.Description)
	}
	if first.StructuredFormatting.MainText != "Bondi" {
		t.Errorf("MainText = %q", first.StructuredFormatting.MainText)
	}
	if first.StructuredFormatting.SecondaryText != "NSW 2026, Australia" {
		t.Errorf("SecondaryText = %q", first.StructuredFormatting.SecondaryText)
	}
}

// TestAutocomplete_OfflineStateMatch は州コードでの検索を検証する。
func TestAutocomplete_OfflineStateMatch(t *testing.T) {
	s := newOfflineService()

	predictions, err := s.Autocomplete(context.Background(), "VIC", "")
	if err != nil {
		t.Fatalf("Autocomplete returned error: %v", err)
	}
	if len(predictions) != 5 {
		t.Errorf("predictions = %d, want capped at 5", len(predictions))
	}
	for _, p := range predictions {
		if !strings.Contains(p.Description, "VIC") {
			t.Errorf("unexpected prediction %q", p.Description)
		}
	}
}

// TestAutocomplete_CaseInsensitive は大文字小文字を無視した一致を検証する。
func TestAutocomplete_CaseInsensitive(t *testing.T) {
	s := newOfflineService()

	predictions, err := s.Autocomplete(context.Background(), "FREMANTLE", "")
	if err != nil {
		t.Fatalf("Autocomplete returned error: %v", err)
	}
	if len(predictions) != 1 || predictions[0].PlaceID != "mock-fremantle-6160" {
		t.Errorf("predictions = %+v", predictions)
	}
}

// TestAutocomplete_EmptyInput は空入力の拒否を検証する。
func TestAutocomplete_EmptyInput(t *testing.T) {
	s := newOfflineService()

	_, err := s.Autocomplete(context.Background(), "  ", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}
}

// TestAutocomplete_ProxySuccess はAPIキー設定時のプロキシを検証する。
func TestAutocomplete_ProxySuccess(t *testing.T) {
	var gotQuery map[string][]string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"predictions": [
				{"place_id": "ChIJ123", "description": "Bondi NSW, Australia",
				 "structured_formatting": {"main_text": "Bondi", "secondary_text": "NSW, Australia"}}
			]
		}`))
	}))
	defer upstream.Close()

	s := NewService(upstream.Client(), slog.Default(), "test-key")
	s.autocompleteEndpoint = upstream.URL

	predictions, err := s.Autocomplete(context.Background(), "bondi", "(regions)")
	if err != nil {
		t.Fatalf("Autocomplete returned error: %v", err)
	}
	if len(predictions) != 1 || predictions[0].PlaceID != "ChIJ123" {
		t.Errorf("predictions = %+v", predictions)
	}

	if got := gotQuery["components"]; len(got) != 1 || got[0] != "country:au" {
		t.Errorf("components = %v, want country:au", got)
	}
	if got := gotQuery["types"]; len(got) != 1 || got[0] != "(regions)" {
		t.Errorf("types = %v", got)
	}
	if got := gotQuery["key"]; len(got) != 1 || got[0] != "test-key" {
		t.Errorf("key = %v", got)
	}
}

// TestAutocomplete_UpstreamFailureFallsBack は上流障害時のフォールバックを検証する。
func TestAutocomplete_UpstreamFailureFallsBack(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	s := NewService(upstream.Client(), slog.Default(), "test-key")
	s.autocompleteEndpoint = upstream.URL

	predictions, err := s.Autocomplete(context.Background(), "perth", "")
	if err != nil {
		t.Fatalf("Autocomplete should fall back, got error: %v", err)
	}
	if len(predictions) != 1 || predictions[0].PlaceID != "mock-perth-6000" {
		t.Errorf("predictions = %+v, want offline perth", predictions)
	}
}

// TestDetail_MockID はmock IDからの郵便番号復元を検証する。
func TestDetail_MockID(t *testing.T) {
	s := newOfflineService()

	details, err := s.Detail(context.Background(), "mock-bondi-junction-2022")
	if err != nil {
		t.Fatalf("Detail returned error: %v", err)
	}
	if details.Postcode != "2022" {
		t.Errorf("Postcode = %q, want 2022", details.Postcode)
	}
	if details.FormattedAddress != "Bondi Junction, Australia" {
		t.Errorf("FormattedAddress = %q", details.FormattedAddress)
	}
}

// TestDetail_EmptyID はplace_id未指定の拒否を検証する。
func TestDetail_EmptyID(t *testing.T) {
	s := newOfflineService()

	_, err := s.Detail(context.Background(), "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}
}

// TestDetail_RealIDWithoutKey はオフラインで実IDが解決できないことを検証する。
func TestDetail_RealIDWithoutKey(t *testing.T) {
	s := newOfflineService()

	_, err := s.Detail(context.Background(), "ChIJ123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}
}

// TestDetail_Proxy は外部APIからの郵便番号抽出を検証する。
func TestDetail_Proxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("place_id"); got != "ChIJ123" {
			t.Errorf("place_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"result": {
				"formatted_address": "Bondi NSW 2026, Australia",
				"address_components": [
					{"long_name": "Bondi", "types": ["locality"]},
					{"long_name": "2026", "types": ["postal_code"]}
				]
			}
		}`))
	}))
	defer upstream.Close()

	s := NewService(upstream.Client(), slog.Default(), "test-key")
	s.detailsEndpoint = upstream.URL

	details, err := s.Detail(context.Background(), "ChIJ123")
	if err != nil {
		t.Fatalf("Detail returned error: %v", err)
	}
	if details.Postcode != "2026" {
		t.Errorf("Postcode = %q, want 2026", details.Postcode)
	}
	if details.FormattedAddress != "Bondi NSW 2026, Australia" {
		t.Errorf("FormattedAddress = %q", details.FormattedAddress)
	}
}
