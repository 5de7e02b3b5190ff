package ads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRange = DateRange{Since: "2026-07-27", Until: "2026-08-26"}

// graphStub records the last request and serves a canned response.
type graphStub struct {
	lastPath  string
	lastQuery url.Values
	status    int
	body      any
}

func (s *graphStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lastPath = r.URL.Path
		s.lastQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		if s.status != 0 {
			w.WriteHeader(s.status)
		}
		json.NewEncoder(w).Encode(s.body)
	}
}

func newTestGateway(t *testing.T, stub *graphStub, opts ...GraphOption) *GraphGateway {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	opts = append(opts, WithBaseURL(srv.URL))
	return NewGraphGateway("v18.0", 5*time.Second, opts...)
}

func TestGraphGateway_AccountOverview(t *testing.T) {
	stub := &graphStub{body: map[string]any{
		"data": []map[string]any{{
			"account_name": "Acme Store",
			"currency":     "EUR",
			"spend":        "1200.50",
			"impressions":  "240000",
			"clicks":       "4800",
			"ctr":          "2.0",
			"cpc":          "0.25",
			"cpm":          "5.0",
			"purchase_roas": []map[string]string{
				{"action_type": "omni_purchase", "value": "4.15"},
			},
			"actions": []map[string]string{
				{"action_type": "purchase", "value": "120"},
				{"action_type": "lead", "value": "30"},
				{"action_type": "link_click", "value": "900"},
			},
			"action_values": []map[string]string{
				{"action_type": "purchase", "value": "4982.08"},
				{"action_type": "add_to_cart", "value": "999.99"},
			},
		}},
	}}

	g := newTestGateway(t, stub)
	acct := Account{ID: "act_42", AccessToken: "user-token", Currency: "USD"}

	overview, err := g.AccountOverview(context.Background(), acct, testRange)
	require.NoError(t, err)

	assert.Equal(t, "Acme Store", overview.AccountName)
	assert.Equal(t, "EUR", overview.Currency, "API currency wins over the stored one")
	assert.Equal(t, 1200.50, overview.Spend)
	assert.Equal(t, 4982.08, overview.Revenue, "only purchase action values count")
	assert.Equal(t, 4.15, overview.ROAS, "API purchase_roas is preferred")
	assert.Equal(t, int64(150), overview.Conversions, "purchase + lead")

	// Request shape.
	assert.Equal(t, "/v18.0/act_42/insights", stub.lastPath)
	assert.Equal(t, "user-token", stub.lastQuery.Get("access_token"))
	assert.Equal(t, "account", stub.lastQuery.Get("level"))
	assert.JSONEq(t, `{"since":"2026-07-27","until":"2026-08-26"}`, stub.lastQuery.Get("time_range"))
	assert.Empty(t, stub.lastQuery.Get("appsecret_proof"))
}

func TestGraphGateway_ActPrefixNotDoubled(t *testing.T) {
	stub := &graphStub{body: map[string]any{"data": []map[string]any{}}}
	g := newTestGateway(t, stub)

	_, err := g.AccountOverview(context.Background(), Account{ID: "act_99", AccessToken: "tok"}, testRange)
	require.NoError(t, err)
	assert.Equal(t, "/v18.0/act_99/insights", stub.lastPath)

	_, err = g.AccountOverview(context.Background(), Account{ID: "99", AccessToken: "tok"}, testRange)
	require.NoError(t, err)
	assert.Equal(t, "/v18.0/act_99/insights", stub.lastPath)
}

func TestGraphGateway_AppSecretProof(t *testing.T) {
	stub := &graphStub{body: map[string]any{"data": []map[string]any{}}}
	g := newTestGateway(t, stub, WithAppSecret("app-secret"))

	_, err := g.AccountOverview(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange)
	require.NoError(t, err)

	proof := stub.lastQuery.Get("appsecret_proof")
	assert.Equal(t, appSecretProof("tok", "app-secret"), proof)
	assert.Len(t, proof, 64)
}

func TestGraphGateway_GraphError(t *testing.T) {
	stub := &graphStub{
		status: http.StatusBadRequest,
		body: map[string]any{
			"error": map[string]any{
				"message": "Invalid OAuth access token",
				"type":    "OAuthException",
				"code":    190,
			},
		},
	}
	g := newTestGateway(t, stub)

	_, err := g.AccountOverview(context.Background(), Account{ID: "act_1", AccessToken: "bad"}, testRange)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.Contains(t, err.Error(), "190")
}

func TestGraphGateway_TopAds_SortsAndLimits(t *testing.T) {
	stub := &graphStub{body: map[string]any{
		"data": []map[string]any{
			{"ad_id": "a1", "ad_name": "Low", "spend": "100", "action_values": []map[string]string{{"action_type": "purchase", "value": "150"}}},
			{"ad_id": "a2", "ad_name": "High", "spend": "100", "action_values": []map[string]string{{"action_type": "purchase", "value": "500"}}},
			{"ad_id": "a3", "ad_name": "Mid", "spend": "100", "action_values": []map[string]string{{"action_type": "purchase", "value": "300"}}},
		},
	}}
	g := newTestGateway(t, stub)

	ads, err := g.TopAds(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, 2)
	require.NoError(t, err)
	require.Len(t, ads, 2)
	assert.Equal(t, "High", ads[0].AdName)
	assert.Equal(t, "Mid", ads[1].AdName)
	assert.Equal(t, "ad", stub.lastQuery.Get("level"))
}

func TestGraphGateway_AdSetMetrics_CampaignFilter(t *testing.T) {
	stub := &graphStub{body: map[string]any{"data": []map[string]any{}}}
	g := newTestGateway(t, stub)

	_, err := g.AdSetMetrics(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, "camp_7")
	require.NoError(t, err)
	assert.Contains(t, stub.lastQuery.Get("filtering"), `"value":"camp_7"`)
	assert.Equal(t, "adset", stub.lastQuery.Get("level"))
}

func TestGraphGateway_AudienceInsights_Aggregates(t *testing.T) {
	stub := &graphStub{body: map[string]any{
		"data": []map[string]any{
			{"age": "25-34", "gender": "female", "spend": "100", "action_values": []map[string]string{{"action_type": "purchase", "value": "400"}}, "actions": []map[string]string{{"action_type": "purchase", "value": "10"}}},
			{"age": "25-34", "gender": "male", "spend": "50", "action_values": []map[string]string{{"action_type": "purchase", "value": "100"}}, "actions": []map[string]string{{"action_type": "purchase", "value": "4"}}},
		},
	}}
	g := newTestGateway(t, stub)

	insights, err := g.AudienceInsights(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, "all")
	require.NoError(t, err)

	assert.Equal(t, "age,gender", stub.lastQuery.Get("breakdowns"))
	age := insights.AgeBreakdown["25-34"]
	assert.Equal(t, 150.0, age.Spend)
	assert.Equal(t, 500.0, age.Revenue)
	assert.Equal(t, int64(14), age.Conversions)
	assert.Equal(t, 150.0, insights.Totals.Spend)
	assert.Equal(t, roas(150, 500), insights.Totals.ROAS)
}

func TestGraphGateway_DailyTrends_Sorted(t *testing.T) {
	stub := &graphStub{body: map[string]any{
		"data": []map[string]any{
			{"date_start": "2026-08-02", "spend": "20"},
			{"date_start": "2026-08-01", "spend": "10"},
		},
	}}
	g := newTestGateway(t, stub)

	trends, err := g.DailyTrends(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "2026-08-01", trends[0].Date)
	assert.Equal(t, "1", stub.lastQuery.Get("time_increment"))
}

func TestGraphGateway_PlacementMetrics_AggregatesByPlacement(t *testing.T) {
	stub := &graphStub{body: map[string]any{
		"data": []map[string]any{
			{"publisher_platform": "facebook", "platform_position": "feed", "spend": "30"},
			{"publisher_platform": "facebook", "platform_position": "feed", "spend": "20"},
			{"publisher_platform": "instagram", "platform_position": "instagram_stories", "spend": "10"},
		},
	}}
	g := newTestGateway(t, stub)

	placements, err := g.PlacementMetrics(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange)
	require.NoError(t, err)
	require.Len(t, placements, 2)
	assert.Equal(t, "feed", placements[0].Placement, "sorted by spend, highest first")
	assert.Equal(t, 50.0, placements[0].Spend)
}

func TestGraphGateway_CreativePerformance_AggregatesByType(t *testing.T) {
	var insightsQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/ads") {
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": "a1", "creative": map[string]string{"object_type": "VIDEO"}},
					{"id": "a2", "creative": map[string]string{"object_type": "LINK"}},
					{"id": "a3", "creative": map[string]string{"object_type": "CAROUSEL"}},
					{"id": "a4", "creative": map[string]string{"object_type": "VIDEO_AUTOPLAY"}},
				},
			})
			return
		}
		insightsQuery = r.URL.Query()
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"ad_id": "a1", "spend": "100", "impressions": "10000", "clicks": "200", "action_values": []map[string]string{{"action_type": "purchase", "value": "400"}}},
				{"ad_id": "a4", "spend": "150", "impressions": "20000", "clicks": "300", "action_values": []map[string]string{{"action_type": "purchase", "value": "300"}}},
				{"ad_id": "a2", "spend": "60", "impressions": "6000", "clicks": "90"},
				{"ad_id": "a3", "spend": "40", "impressions": "4000", "clicks": "50"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	g := NewGraphGateway("v18.0", 5*time.Second, WithBaseURL(srv.URL))

	creatives, err := g.CreativePerformance(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, "")
	require.NoError(t, err)
	require.Len(t, creatives, 3)

	video := creatives[0]
	assert.Equal(t, "video", video.Type, "sorted by spend, highest first")
	assert.Equal(t, 2, video.Count)
	assert.Equal(t, 250.0, video.Spend)
	assert.Equal(t, 700.0, video.Revenue)
	assert.Equal(t, roas(250, 700), video.ROAS)
	assert.InDelta(t, float64(500)/float64(30000)*100, video.CTR, 0.01)
	assert.Equal(t, "ad", insightsQuery.Get("level"))

	filtered, err := g.CreativePerformance(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, "carousel")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "carousel", filtered[0].Type)
}

func TestGraphGateway_ConversionFunnel(t *testing.T) {
	stub := &graphStub{body: map[string]any{
		"data": []map[string]any{{
			"impressions": "100000",
			"clicks":      "2000",
			"actions": []map[string]string{
				{"action_type": "landing_page_view", "value": "1500"},
				{"action_type": "add_to_cart", "value": "600"},
				{"action_type": "initiate_checkout", "value": "250"},
				{"action_type": "offsite_conversion.fb_pixel_purchase", "value": "100"},
				{"action_type": "purchase", "value": "100"},
			},
		}},
	}}
	g := newTestGateway(t, stub)

	funnel, err := g.ConversionFunnel(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, "")
	require.NoError(t, err)

	assert.Equal(t, int64(100000), funnel.Impressions)
	assert.Equal(t, int64(2000), funnel.Clicks)
	assert.Equal(t, 2.0, funnel.ClickRate)
	assert.Equal(t, int64(1500), funnel.LandingPageViews)
	assert.Equal(t, int64(600), funnel.AddToCart)
	assert.Equal(t, int64(250), funnel.InitiateCheckout)
	assert.Equal(t, int64(200), funnel.Purchases, "pixel and native purchases both count")
	assert.Equal(t, "account", stub.lastQuery.Get("level"))
}

func TestGraphGateway_ConversionFunnel_CampaignScope(t *testing.T) {
	stub := &graphStub{body: map[string]any{"data": []map[string]any{}}}
	g := newTestGateway(t, stub)

	funnel, err := g.ConversionFunnel(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange, "camp_3")
	require.NoError(t, err)
	assert.Zero(t, funnel.Impressions, "no rows means an empty funnel, not an error")
	assert.Equal(t, "campaign", stub.lastQuery.Get("level"))
	assert.Contains(t, stub.lastQuery.Get("filtering"), `"value":"camp_3"`)
}

func TestGraphGateway_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewGraphGateway("v18.0", 50*time.Millisecond, WithBaseURL(srv.URL))
	_, err := g.AccountOverview(context.Background(), Account{ID: "act_1", AccessToken: "tok"}, testRange)
	assert.Error(t, err)
}
