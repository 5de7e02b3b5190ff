// Package ads defines the gateway to Meta Ads performance data. The
// protocol layer only depends on the Gateway interface; the concrete
// implementation (live Graph API or deterministic demo data) is chosen
// by configuration at startup.
package ads

import (
	"context"
	"math"
	"time"
)

// Account identifies a linked ad account and carries the credential the
// gateway needs to query it.
type Account struct {
	ID          string
	Name        string
	AccessToken string
	Currency    string
}

// DateRange is an inclusive reporting window, dates in YYYY-MM-DD.
type DateRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// LastNDays returns the trailing n-day window ending today.
func LastNDays(n int) DateRange {
	now := time.Now()
	return DateRange{
		Since: now.AddDate(0, 0, -n).Format("2006-01-02"),
		Until: now.Format("2006-01-02"),
	}
}

// AccountOverview aggregates account-level performance for a window.
type AccountOverview struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	Currency    string  `json:"currency"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROAS        float64 `json:"roas"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPM         float64 `json:"cpm"`
}

// CampaignMetrics is per-campaign performance for a window.
type CampaignMetrics struct {
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Status       string  `json:"status"`
	Spend        float64 `json:"spend"`
	Revenue      float64 `json:"revenue"`
	ROAS         float64 `json:"roas"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Conversions  int64   `json:"conversions"`
	CTR          float64 `json:"ctr"`
	CPC          float64 `json:"cpc"`
	CPM          float64 `json:"cpm"`
}

// AdSetMetrics is per-ad-set performance for a window.
type AdSetMetrics struct {
	AdSetID      string  `json:"adset_id"`
	AdSetName    string  `json:"adset_name"`
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name,omitempty"`
	Status       string  `json:"status"`
	Spend        float64 `json:"spend"`
	Revenue      float64 `json:"revenue"`
	ROAS         float64 `json:"roas"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Conversions  int64   `json:"conversions"`
	CTR          float64 `json:"ctr"`
	CPM          float64 `json:"cpm"`
	Budget       float64 `json:"budget,omitempty"`
}

// AdMetrics is per-ad performance for a window.
type AdMetrics struct {
	AdID        string  `json:"ad_id"`
	AdName      string  `json:"ad_name"`
	AdSetID     string  `json:"adset_id,omitempty"`
	CampaignID  string  `json:"campaign_id,omitempty"`
	Status      string  `json:"status"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROAS        float64 `json:"roas"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPM         float64 `json:"cpm"`
}

// SegmentMetrics aggregates performance for one audience segment.
type SegmentMetrics struct {
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROAS        float64 `json:"roas"`
	Conversions int64   `json:"conversions"`
}

// AudienceInsights breaks performance down by demographic segment.
type AudienceInsights struct {
	AgeBreakdown    map[string]SegmentMetrics `json:"age_breakdown"`
	GenderBreakdown map[string]SegmentMetrics `json:"gender_breakdown"`
	Totals          SegmentMetrics            `json:"total_metrics"`
}

// DailyMetrics is one day of account-level performance.
type DailyMetrics struct {
	Date        string  `json:"date"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROAS        float64 `json:"roas"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPM         float64 `json:"cpm"`
}

// CreativeMetrics aggregates performance for one creative type
// (image, video, carousel).
type CreativeMetrics struct {
	Type        string  `json:"type"`
	Count       int     `json:"count"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROAS        float64 `json:"roas"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
}

// ConversionFunnel traces the path from impressions to purchases.
// The optional step counts are zero when the account reports no such
// actions.
type ConversionFunnel struct {
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	ClickRate        float64 `json:"click_rate"`
	Conversions      int64   `json:"conversions"`
	ConversionRate   float64 `json:"conversion_rate"`
	LandingPageViews int64   `json:"landing_page_views,omitempty"`
	AddToCart        int64   `json:"add_to_cart,omitempty"`
	InitiateCheckout int64   `json:"initiate_checkout,omitempty"`
	Purchases        int64   `json:"purchases,omitempty"`
}

// PlacementMetrics aggregates performance per placement surface.
type PlacementMetrics struct {
	Placement   string  `json:"placement"`
	Platform    string  `json:"platform"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	ROAS        float64 `json:"roas"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
}

// Gateway queries Meta Ads performance data for one linked account.
// Calls are synchronous with a bounded timeout; a failed call is
// terminal for that invocation, the caller decides whether to retry.
type Gateway interface {
	AccountOverview(ctx context.Context, acct Account, dr DateRange) (*AccountOverview, error)
	CampaignMetrics(ctx context.Context, acct Account, dr DateRange) ([]CampaignMetrics, error)
	AdSetMetrics(ctx context.Context, acct Account, dr DateRange, campaignID string) ([]AdSetMetrics, error)
	TopAds(ctx context.Context, acct Account, dr DateRange, limit int) ([]AdMetrics, error)
	AudienceInsights(ctx context.Context, acct Account, dr DateRange, breakdown string) (*AudienceInsights, error)
	DailyTrends(ctx context.Context, acct Account, dr DateRange) ([]DailyMetrics, error)
	PlacementMetrics(ctx context.Context, acct Account, dr DateRange) ([]PlacementMetrics, error)
	CreativePerformance(ctx context.Context, acct Account, dr DateRange, creativeType string) ([]CreativeMetrics, error)
	ConversionFunnel(ctx context.Context, acct Account, dr DateRange, campaignID string) (*ConversionFunnel, error)
}

// roas computes return on ad spend, 0 when nothing was spent.
func roas(spend, revenue float64) float64 {
	if spend == 0 {
		return 0
	}
	return round2(revenue / spend)
}

// round2 rounds to two decimal places for reporting.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
