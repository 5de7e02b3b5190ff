package ads

import (
	"context"
	"fmt"
	"time"
)

// MockGateway serves deterministic demo data so the connector can be
// exercised end to end without Meta credentials. The same inputs always
// produce the same outputs.
type MockGateway struct{}

// NewMockGateway creates the demo-data gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) AccountOverview(_ context.Context, acct Account, _ DateRange) (*AccountOverview, error) {
	currency := acct.Currency
	if currency == "" {
		currency = "USD"
	}
	return &AccountOverview{
		AccountID:   acct.ID,
		AccountName: acct.Name,
		Currency:    currency,
		Spend:       24532.18,
		Revenue:     98128.72,
		ROAS:        4.00,
		Impressions: 2456789,
		Clicks:      45678,
		Conversions: 3456,
		CTR:         1.86,
		CPC:         0.54,
		CPM:         9.98,
	}, nil
}

func (m *MockGateway) CampaignMetrics(_ context.Context, _ Account, _ DateRange) ([]CampaignMetrics, error) {
	campaigns := make([]CampaignMetrics, 5)
	for i := range campaigns {
		status := "ACTIVE"
		if i >= 3 {
			status = "PAUSED"
		}
		spend := float64(5000 + i*1000)
		revenue := float64(20000 + i*4000)
		campaigns[i] = CampaignMetrics{
			CampaignID:   fmt.Sprintf("camp_%03d", i+1),
			CampaignName: fmt.Sprintf("Campaign %d", i+1),
			Status:       status,
			Spend:        spend,
			Revenue:      revenue,
			ROAS:         roas(spend, revenue),
			Impressions:  int64(500000 - i*50000),
			Clicks:       int64(10000 - i*1000),
			Conversions:  int64(400 - i*50),
			CTR:          round2(2.0 - float64(i)*0.1),
			CPC:          round2(spend / float64(10000-i*1000)),
			CPM:          round2(spend / float64(500000-i*50000) * 1000),
		}
	}
	return campaigns, nil
}

func (m *MockGateway) AdSetMetrics(_ context.Context, _ Account, _ DateRange, campaignID string) ([]AdSetMetrics, error) {
	if campaignID == "" {
		campaignID = "camp_001"
	}
	adsets := make([]AdSetMetrics, 3)
	for i := range adsets {
		spend := float64(1500 + i*500)
		revenue := float64(6300 + i*1800)
		adsets[i] = AdSetMetrics{
			AdSetID:      fmt.Sprintf("adset_%03d", i+1),
			AdSetName:    fmt.Sprintf("Ad Set %d", i+1),
			CampaignID:   campaignID,
			CampaignName: "Campaign 1",
			Status:       "ACTIVE",
			Spend:        spend,
			Revenue:      revenue,
			ROAS:         roas(spend, revenue),
			Impressions:  int64(160000 - i*20000),
			Clicks:       int64(3200 - i*400),
			Conversions:  int64(120 - i*15),
			CTR:          round2(2.0 - float64(i)*0.05),
			CPM:          round2(spend / float64(160000-i*20000) * 1000),
			Budget:       float64(2000 + i*500),
		}
	}
	return adsets, nil
}

func (m *MockGateway) TopAds(_ context.Context, _ Account, _ DateRange, limit int) ([]AdMetrics, error) {
	if limit <= 0 || limit > 10 {
		limit = 10
	}
	ads := make([]AdMetrics, 0, limit)
	for i := 0; i < limit && i < 10; i++ {
		spend := float64(900 - i*60)
		revenue := float64(5400 - i*550)
		ads = append(ads, AdMetrics{
			AdID:        fmt.Sprintf("ad_%03d", i+1),
			AdName:      fmt.Sprintf("Ad Creative %d", i+1),
			AdSetID:     fmt.Sprintf("adset_%03d", i%3+1),
			CampaignID:  fmt.Sprintf("camp_%03d", i%5+1),
			Status:      "ACTIVE",
			Spend:       spend,
			Revenue:     revenue,
			ROAS:        roas(spend, revenue),
			Impressions: int64(90000 - i*6000),
			Clicks:      int64(1900 - i*120),
			Conversions: int64(70 - i*5),
			CTR:         round2(2.1 - float64(i)*0.04),
			CPC:         round2(spend / float64(1900-i*120)),
			CPM:         round2(spend / float64(90000-i*6000) * 1000),
		})
	}
	return ads, nil
}

func (m *MockGateway) AudienceInsights(_ context.Context, _ Account, _ DateRange, _ string) (*AudienceInsights, error) {
	age := map[string]SegmentMetrics{
		"18-24": {Spend: 4200.50, Revenue: 14700.00, ROAS: 3.50, Conversions: 520},
		"25-34": {Spend: 9800.25, Revenue: 44100.00, ROAS: 4.50, Conversions: 1540},
		"35-44": {Spend: 6100.75, Revenue: 22550.00, ROAS: 3.70, Conversions: 810},
		"45+":   {Spend: 3400.00, Revenue: 10200.00, ROAS: 3.00, Conversions: 380},
	}
	gender := map[string]SegmentMetrics{
		"female": {Spend: 13200.50, Revenue: 55400.00, ROAS: 4.20, Conversions: 1980},
		"male":   {Spend: 10301.00, Revenue: 36150.00, ROAS: 3.51, Conversions: 1270},
	}
	var totals SegmentMetrics
	for _, seg := range age {
		totals.Spend += seg.Spend
		totals.Revenue += seg.Revenue
		totals.Conversions += seg.Conversions
	}
	totals.Spend = round2(totals.Spend)
	totals.Revenue = round2(totals.Revenue)
	totals.ROAS = roas(totals.Spend, totals.Revenue)

	return &AudienceInsights{
		AgeBreakdown:    age,
		GenderBreakdown: gender,
		Totals:          totals,
	}, nil
}

func (m *MockGateway) DailyTrends(_ context.Context, _ Account, dr DateRange) ([]DailyMetrics, error) {
	start, err := time.Parse("2006-01-02", dr.Since)
	if err != nil {
		return nil, fmt.Errorf("invalid since date %q: %w", dr.Since, err)
	}
	days := make([]DailyMetrics, 7)
	for i := range days {
		spend := float64(800 + i*25)
		revenue := float64(3100 + i*140)
		days[i] = DailyMetrics{
			Date:        start.AddDate(0, 0, i).Format("2006-01-02"),
			Spend:       spend,
			Revenue:     revenue,
			ROAS:        roas(spend, revenue),
			Impressions: int64(81000 + i*1500),
			Clicks:      int64(1600 + i*40),
			Conversions: int64(115 + i*4),
			CTR:         round2(1.9 + float64(i)*0.02),
			CPM:         round2(spend / float64(81000+i*1500) * 1000),
		}
	}
	return days, nil
}

func (m *MockGateway) CreativePerformance(_ context.Context, _ Account, _ DateRange, creativeType string) ([]CreativeMetrics, error) {
	creatives := []CreativeMetrics{
		{Type: "video", Count: 8, Spend: 10200.40, Revenue: 45900.00, ROAS: 4.50, Impressions: 1020000, Clicks: 22400, Conversions: 1610, CTR: 2.20},
		{Type: "image", Count: 14, Spend: 8900.75, Revenue: 31150.00, ROAS: 3.50, Impressions: 890000, Clicks: 16000, Conversions: 1090, CTR: 1.80},
		{Type: "carousel", Count: 5, Spend: 5431.03, Revenue: 21080.00, ROAS: 3.88, Impressions: 546789, Clicks: 7278, Conversions: 756, CTR: 1.33},
	}
	if creativeType == "" {
		return creatives, nil
	}
	for _, c := range creatives {
		if c.Type == creativeType {
			return []CreativeMetrics{c}, nil
		}
	}
	return []CreativeMetrics{}, nil
}

func (m *MockGateway) ConversionFunnel(_ context.Context, _ Account, _ DateRange, campaignID string) (*ConversionFunnel, error) {
	funnel := &ConversionFunnel{
		Impressions:      2456789,
		Clicks:           45678,
		Conversions:      3456,
		LandingPageViews: 38900,
		AddToCart:        9870,
		InitiateCheckout: 5420,
		Purchases:        3456,
	}
	if campaignID != "" {
		// A single campaign sees roughly a fifth of the account volume.
		funnel.Impressions /= 5
		funnel.Clicks /= 5
		funnel.Conversions /= 5
		funnel.LandingPageViews /= 5
		funnel.AddToCart /= 5
		funnel.InitiateCheckout /= 5
		funnel.Purchases /= 5
	}
	funnel.ClickRate = round2(float64(funnel.Clicks) / float64(funnel.Impressions) * 100)
	funnel.ConversionRate = round2(float64(funnel.Conversions) / float64(funnel.Clicks) * 100)
	return funnel, nil
}

func (m *MockGateway) PlacementMetrics(_ context.Context, _ Account, _ DateRange) ([]PlacementMetrics, error) {
	return []PlacementMetrics{
		{Placement: "feed", Platform: "facebook", Spend: 9800.00, Revenue: 41160.00, ROAS: 4.20, Impressions: 980000, Clicks: 19600, Conversions: 1470},
		{Placement: "instagram_stories", Platform: "instagram", Spend: 7400.50, Revenue: 26642.00, ROAS: 3.60, Impressions: 740000, Clicks: 14100, Conversions: 930},
		{Placement: "instagram_feed", Platform: "instagram", Spend: 5200.25, Revenue: 18200.00, ROAS: 3.50, Impressions: 560000, Clicks: 9900, Conversions: 710},
		{Placement: "audience_network", Platform: "audience_network", Spend: 2131.43, Revenue: 4902.29, ROAS: 2.30, Impressions: 176789, Clicks: 2078, Conversions: 346},
	}, nil
}
