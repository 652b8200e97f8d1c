package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"TFTracker/internal/domain/models"
)

func decodeRows[T any](t *testing.T, env envelope) ([]T, int64) {
	t.Helper()
	var list struct {
		Rows  []T   `json:"rows"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	return list.Rows, list.Total
}

func TestCreateAndListAssets(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/assets", `{"ticker":" aapl ","name":"Apple","exchange":"NASDAQ"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created models.Asset
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode asset: %v", err)
	}
	if created.ID != models.AssetIDFor("AAPL") || created.Ticker != "AAPL" || created.Type != models.AssetStock || created.Exchange != "NASDAQ" {
		t.Fatalf("unexpected asset %+v", created)
	}

	rec, env = api.do(t, http.MethodPost, "/api/assets", `{"ticker":"AAPL"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if errs := decodeErrors(t, env); errs[0].Code != "ERR_CONFLICT" || errs[0].Message != "Asset AAPL already exists" {
		t.Fatalf("unexpected errors %+v", errs)
	}

	// an alias resolves to the already tracked ticker
	if rec, _ := api.do(t, http.MethodPost, "/api/assets", `{"ticker":"nvidia"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected alias conflict, got %d", rec.Code)
	}

	for _, body := range []string{`{"ticker":""}`, `{"ticker":"BND","type":"bond"}`} {
		if rec, _ := api.do(t, http.MethodPost, "/api/assets", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}

	_, env = api.do(t, http.MethodGet, "/api/assets", "")
	rows, total := decodeRows[models.Asset](t, env)
	if total != 2 || rows[0].Ticker != "AAPL" || rows[1].Ticker != "NVDA" {
		t.Fatalf("unexpected assets %+v", rows)
	}
}

func TestLatestSnapshotsJoinedAndFiltered(t *testing.T) {
	api := newTestAPI(t)
	api.seedDefect(t)
	if rec, _ := api.do(t, http.MethodPost, "/api/assets", `{"ticker":"AAPL","name":"Apple"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	_ = api.snaps.SaveMarketSnapshot(context.Background(),
		models.MarketSnapshot{AssetID: models.AssetIDFor("AAPL"), Price: 225, Volume: models.Float(1e6), AsOf: t0})

	_, env := api.do(t, http.MethodGet, "/api/snapshots/latest", "")
	rows, total := decodeRows[models.MarketSnapshotView](t, env)
	if total != 2 || rows[0].Ticker != "AAPL" || rows[1].Ticker != "NVDA" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	nvda := rows[1]
	if nvda.Price != 410 || !nvda.AsOf.Equal(t0.Add(time.Minute)) || nvda.AssetName != "NVIDIA" || nvda.AssetType != models.AssetStock {
		t.Fatalf("expected newest NVDA snapshot joined with asset, got %+v", nvda)
	}
	if rows[0].Volume == nil || *rows[0].Volume != 1e6 {
		t.Fatalf("optional fields lost: %+v", rows[0])
	}

	for _, target := range []string{
		"/api/snapshots/latest?tickers=nvidia",
		"/api/snapshots/latest?tickers=NVDA&tickers=MSFT",
		"/api/snapshots/latest?tickers=msft,nvda",
	} {
		_, env := api.do(t, http.MethodGet, target, "")
		rows, _ := decodeRows[models.MarketSnapshotView](t, env)
		if len(rows) != 1 || rows[0].Ticker != "NVDA" {
			t.Fatalf("%s: unexpected rows %+v", target, rows)
		}
	}
}

func TestLatestIndicatorsSkipsAssetsWithoutData(t *testing.T) {
	api := newTestAPI(t)
	api.seedDefect(t)
	if rec, _ := api.do(t, http.MethodPost, "/api/assets", `{"ticker":"AAPL"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	rec, env := api.do(t, http.MethodGet, "/api/indicators/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rows, _ := decodeRows[models.IndicatorSnapshotView](t, env)
	if len(rows) != 1 || rows[0].Ticker != "NVDA" || rows[0].RSI14 == nil || *rows[0].RSI14 != 28 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[0].AssetID != models.AssetIDFor("NVDA") {
		t.Fatalf("asset id not carried: %s", rows[0].AssetID)
	}
}

func TestLatestSnapshotsRejectsTooManyTickers(t *testing.T) {
	api := newTestAPI(t)
	tickers := make([]string, maxLatestTickers+1)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%d", i)
	}

	rec, env := api.do(t, http.MethodGet, "/api/snapshots/latest?tickers="+strings.Join(tickers, ","), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var errs []struct {
		Code   string         `json:"code"`
		Params map[string]int `json:"params"`
	}
	if err := json.Unmarshal(env.Data, &errs); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(errs) != 1 || errs[0].Code != "ERR_BAD_REQUEST" || errs[0].Params["max"] != maxLatestTickers || errs[0].Params["count"] != maxLatestTickers+1 {
		t.Fatalf("unexpected errors %+v", errs)
	}
}
