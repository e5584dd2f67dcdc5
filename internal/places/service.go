// Package places は対応エリア入力のためのサジェスト検索を提供する。
//
// APIキーが設定されている場合は外部のPlaces APIにプロキシし、未設定時と
// 上流障害時は固定のオーストラリア郊外リストにフォールバックする。
// フォールバックのplace_idは `mock-<name>-<postcode>` 形式で、詳細取得は
// idのサフィックスから郵便番号を復元する。
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/tradesite/internal/model"
)

const (
	autocompleteEndpoint = "https://maps.googleapis.com/maps/api/place/autocomplete/json"
	detailsEndpoint      = "https://maps.googleapis.com/maps/api/place/details/json"
	maxPredictions       = 5
	mockIDPrefix         = "mock-"
)

// Prediction はサジェスト結果の1件。
type Prediction struct {
	PlaceID              string               `json:"place_id"`
	Description          string               `json:"description"`
	StructuredFormatting StructuredFormatting `json:"structured_formatting"`
}

// StructuredFormatting はサジェストの表示用分割。
type StructuredFormatting struct {
	MainText      string `json:"main_text"`
	SecondaryText string `json:"secondary_text"`
}

// Details は詳細取得の結果。
type Details struct {
	Postcode         string `json:"postcode"`
	FormattedAddress string `json:"formatted_address,omitempty"`
}

// Service はサジェスト検索のサービス層。
type Service struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string

	// テスト用にエンドポイントを差し替え可能
	autocompleteEndpoint string
	detailsEndpoint      string
}

// NewService はServiceの新しいインスタンスを生成する。
// apiKeyが空の場合は常にオフラインリストで応答する。
func NewService(httpClient *http.Client, logger *slog.Logger, apiKey string) *Service {
	return &Service{
		httpClient:           httpClient,
		logger:               logger,
		apiKey:               apiKey,
		autocompleteEndpoint: autocompleteEndpoint,
		detailsEndpoint:      detailsEndpoint,
	}
}

// Autocomplete は入力文字列に対するサジェストを返す。
func (s *Service) Autocomplete(ctx context.Context, input, types string) ([]Prediction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, model.NewValidationError("検索文字列を入力してください。")
	}

	if s.apiKey != "" {
		predictions, err := s.proxyAutocomplete(ctx, input, types)
		if err == nil {
			return predictions, nil
		}
		s.logger.Warn("places api unavailable, falling back to offline list",
			slog.String("error", err.Error()),
		)
	}

	return offlinePredictions(input), nil
}

// Detail はplace_idの詳細（郵便番号・住所）を返す。
func (s *Service) Detail(ctx context.Context, placeID string) (*Details, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, model.NewValidationError("place_idを指定してください。")
	}

	if strings.HasPrefix(placeID, mockIDPrefix) {
		return mockDetails(placeID), nil
	}

	if s.apiKey == "" {
		// 実IDはオフラインでは解決できない
		return nil, model.NewValidationError("指定されたplace_idを解決できません。")
	}

	return s.proxyDetails(ctx, placeID)
}

// proxyAutocomplete は外部APIにサジェスト検索をプロキシする。
func (s *Service) proxyAutocomplete(ctx context.Context, input, types string) ([]Prediction, error) {
	reqURL, err := url.Parse(s.autocompleteEndpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("input", input)
	q.Set("components", "country:au")
	q.Set("key", s.apiKey)
	if types != "" {
		q.Set("types", types)
	}
	reqURL.RawQuery = q.Encode()

	body, err := s.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Status      string       `json:"status"`
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.Status != "OK" && result.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("Places APIがステータス %s を返しました", result.Status)
	}

	if len(result.Predictions) > maxPredictions {
		result.Predictions = result.Predictions[:maxPredictions]
	}
	return result.Predictions, nil
}

// proxyDetails は外部APIに詳細取得をプロキシする。
func (s *Service) proxyDetails(ctx context.Context, placeID string) (*Details, error) {
	reqURL, err := url.Parse(s.detailsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("place_id", placeID)
	q.Set("fields", "address_components,formatted_address")
	q.Set("key", s.apiKey)
	reqURL.RawQuery = q.Encode()

	body, err := s.get(ctx, reqURL.String())
	if err != nil {
		return nil, fmt.Errorf("詳細の取得に失敗しました: %w", err)
	}

	var result struct {
		Status string `json:"status"`
		Result struct {
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				LongName string   `json:"long_name"`
				Types    []string `json:"types"`
			} `json:"address_components"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.Status != "OK" {
		return nil, fmt.Errorf("Places APIがステータス %s を返しました", result.Status)
	}

	details := &Details{FormattedAddress: result.Result.FormattedAddress}
	for _, component := range result.Result.AddressComponents {
		for _, t := range component.Types {
			if t == "postal_code" {
				details.Postcode = component.LongName
			}
		}
	}
	return details, nil
}

// get はGETリクエストを実行してレスポンスボディを返す。
func (s *Service) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Places APIがHTTPステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, nil
}

// offlinePredictions は固定リストから大文字小文字を無視した部分一致で検索する。
func offlinePredictions(input string) []Prediction {
	needle := strings.ToLower(input)
	predictions := make([]Prediction, 0, maxPredictions)
	for _, s := range auSuburbs {
		if !strings.Contains(strings.ToLower(s.Name), needle) &&
			!strings.Contains(strings.ToLower(s.State), needle) {
			continue
		}
		predictions = append(predictions, Prediction{
			PlaceID:     mockPlaceID(s),
			Description: fmt.Sprintf("%s, %s %s, Australia", s.Name, s.State, s.Postcode),
			StructuredFormatting: StructuredFormatting{
				MainText:      s.Name,
				SecondaryText: fmt.Sprintf("%s %s, Australia", s.State, s.Postcode),
			},
		})
		if len(predictions) == maxPredictions {
			break
		}
	}
	return predictions
}

// mockPlaceID はオフラインエントリのplace_idを生成する。
func mockPlaceID(s suburb) string {
	name := strings.ToLower(strings.ReplaceAll(s.Name, " ", "-"))
	return mockIDPrefix + name + "-" + s.Postcode
}

// mockDetails はmock IDのサフィックスから郵便番号を復元する。
func mockDetails(placeID string) *Details {
	trimmed := strings.TrimPrefix(placeID, mockIDPrefix)
	idx := strings.LastIndex(trimmed, "-")
	if idx < 0 || idx+1 >= len(trimmed) {
		return &Details{}
	}
	words := strings.Split(trimmed[:idx], "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return &Details{
		Postcode:         trimmed[idx+1:],
		FormattedAddress: strings.Join(words, " ") + ", Australia",
	}
}
