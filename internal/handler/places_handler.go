package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/tradesite/internal/places"
)

// PlacesServiceInterface は住所検索ハンドラーが必要とするサービスインターフェース。
type PlacesServiceInterface interface {
	Autocomplete(ctx context.Context, input, types string) ([]places.Prediction, error)
	Detail(ctx context.Context, placeID string) (*places.Details, error)
}

// PlacesHandler は住所オートコンプリートのHTTPハンドラー。
type PlacesHandler struct {
	service PlacesServiceInterface
}

// NewPlacesHandler はPlacesHandlerを生成する。
func NewPlacesHandler(service PlacesServiceInterface) *PlacesHandler {
	return &PlacesHandler{service: service}
}

// autocompleteResponse はオートコンプリートのレスポンス。
type autocompleteResponse struct {
	Predictions []places.Prediction `json:"predictions"`
}

// Autocomplete はオーストラリアの地名候補を返す。
// GET /api/places/autocomplete?input=...&types=...
func (h *PlacesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	predictions, err := h.service.Autocomplete(r.Context(), r.URL.Query().Get("input"), r.URL.Query().Get("types"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if predictions == nil {
		predictions = []places.Prediction{}
	}
	writeJSON(w, http.StatusOK, autocompleteResponse{Predictions: predictions})
}

// Detail は地点の詳細（郵便番号など）を返す。
// GET /api/places/details?place_id=...
func (h *PlacesHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	details, err := h.service.Detail(r.Context(), r.URL.Query().Get("place_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
