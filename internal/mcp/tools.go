package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zanehq/meta-ads-mcp/internal/accounts"
	"github.com/zanehq/meta-ads-mcp/internal/ads"
)

// toolFunc runs one tool against a resolved account and date range.
type toolFunc func(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error)

// DefaultWindowDays is the reporting window applied when a tool call
// does not specify one.
const DefaultWindowDays = 30

const allAccountsTool = "get_all_accounts_summary"

func (h *Handler) registerTools() {
	h.catalog = toolCatalog
	h.executors = map[string]toolFunc{
		"get_account_overview":      h.accountOverview,
		"get_campaigns_performance": h.campaignsPerformance,
		"get_adsets_performance":    h.adsetsPerformance,
		"get_top_performing_ads":    h.topPerformingAds,
		"get_audience_insights":     h.audienceInsights,
		"get_daily_trends":          h.dailyTrends,
		"get_placement_performance": h.placementPerformance,
		"compare_campaigns":         h.compareCampaigns,
		"get_budget_utilization":    h.budgetUtilization,
		"get_creative_performance":  h.creativePerformance,
		"get_conversion_funnel":     h.conversionFunnel,
		"get_underperforming_ads":   h.underperformingAds,
	}
}

// callTool resolves the named tool, the target account, and the date
// range, then executes. Domain failures (no linked account, unknown
// account, upstream API error) come back as tool results the client
// model can read; only infrastructure failures become JSON-RPC errors.
func (h *Handler) callTool(ctx context.Context, subject string, params json.RawMessage) (*ToolResult, error) {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}

	_, known := h.executors[p.Name]
	if !known && p.Name != allAccountsTool {
		return errorResult(fmt.Sprintf("Unknown tool: %s", p.Name), nil)
	}

	links, err := h.store.ListAccounts(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("list linked accounts: %w", err)
	}
	if len(links) == 0 {
		return errorResult(
			"No Meta Ads accounts connected for this user.",
			map[string]any{"instructions": "Connect a Meta Ads account through the dashboard, then retry."},
		)
	}

	dr := dateRangeFromArgs(p.Arguments)
	h.log.Info("tool call", "tool", p.Name, "subject", subject, "since", dr.Since, "until", dr.Until)

	if p.Name == allAccountsTool {
		return h.allAccountsSummary(ctx, subject, links, dr)
	}

	link, res := h.resolveAccount(links, p.Arguments)
	if res != nil {
		return res, nil
	}
	acct := ads.Account{
		ID:          link.AccountID,
		Name:        link.AccountName,
		AccessToken: link.AccessToken,
		Currency:    link.Currency,
	}

	data, err := h.executors[p.Name](ctx, acct, dr, p.Arguments)
	if err != nil {
		h.log.Warn("tool call failed", "tool", p.Name, "account", acct.ID, "error", err)
		return errorResult(fmt.Sprintf("Failed to fetch data from Meta API: %v", err), nil)
	}

	if err := h.store.TouchSynced(ctx, subject, acct.ID, time.Now()); err != nil {
		h.log.Warn("touch synced", "account", acct.ID, "error", err)
	}
	return TextResult(data)
}

// resolveAccount picks the requested account, or the first linked one
// when the call names none. The second return is a ready tool result
// when resolution fails.
func (h *Handler) resolveAccount(links []accounts.AdAccount, args map[string]any) (*accounts.AdAccount, *ToolResult) {
	requested := stringArg(args, "account_id")
	if requested == "" {
		link := links[0]
		if res := checkToken(link); res != nil {
			return nil, res
		}
		return &link, nil
	}
	for _, link := range links {
		if link.AccountID == requested {
			if res := checkToken(link); res != nil {
				return nil, res
			}
			return &link, nil
		}
	}
	available := make([]string, len(links))
	for i, link := range links {
		available[i] = link.AccountID
	}
	res, _ := errorResult(
		fmt.Sprintf("Ad account %s is not linked to this user.", requested),
		map[string]any{"available_accounts": available},
	)
	return nil, res
}

func checkToken(link accounts.AdAccount) *ToolResult {
	if link.AccessToken != "" {
		return nil
	}
	res, _ := errorResult(
		fmt.Sprintf("Ad account %s has no stored access token. Reconnect it through the dashboard.", link.AccountID),
		nil,
	)
	return res
}

func (h *Handler) accountOverview(ctx context.Context, acct ads.Account, dr ads.DateRange, _ map[string]any) (any, error) {
	overview, err := h.gateway.AccountOverview(ctx, acct, dr)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"date_range": dr,
		"overview":   overview,
	}, nil
}

func (h *Handler) campaignsPerformance(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	campaigns, err := h.gateway.CampaignMetrics(ctx, acct, dr)
	if err != nil {
		return nil, err
	}
	if status := stringArg(args, "status"); status != "" {
		filtered := campaigns[:0]
		for _, c := range campaigns {
			if c.Status == status {
				filtered = append(filtered, c)
			}
		}
		campaigns = filtered
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(campaigns),
		"campaigns":  campaigns,
	}, nil
}

func (h *Handler) adsetsPerformance(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	adsets, err := h.gateway.AdSetMetrics(ctx, acct, dr, stringArg(args, "campaign_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(adsets),
		"adsets":     adsets,
	}, nil
}

func (h *Handler) topPerformingAds(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	limit := intArg(args, "limit", 10)
	top, err := h.gateway.TopAds(ctx, acct, dr, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(top),
		"ads":        top,
	}, nil
}

func (h *Handler) audienceInsights(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	breakdown := stringArg(args, "breakdown")
	if breakdown == "" {
		breakdown = "all"
	}
	insights, err := h.gateway.AudienceInsights(ctx, acct, dr, breakdown)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"breakdown":  breakdown,
		"insights":   insights,
	}, nil
}

func (h *Handler) dailyTrends(ctx context.Context, acct ads.Account, dr ads.DateRange, _ map[string]any) (any, error) {
	trends, err := h.gateway.DailyTrends(ctx, acct, dr)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(trends),
		"daily":      trends,
	}, nil
}

func (h *Handler) placementPerformance(ctx context.Context, acct ads.Account, dr ads.DateRange, _ map[string]any) (any, error) {
	placements, err := h.gateway.PlacementMetrics(ctx, acct, dr)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(placements),
		"placements": placements,
	}, nil
}

// compareCampaigns returns side-by-side metrics for the named
// campaigns only.
func (h *Handler) compareCampaigns(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	ids := stringSliceArg(args, "campaign_ids")
	if len(ids) == 0 {
		return nil, errors.New("campaign_ids is required")
	}

	campaigns, err := h.gateway.CampaignMetrics(ctx, acct, dr)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	matched := make([]ads.CampaignMetrics, 0, len(ids))
	for _, c := range campaigns {
		if wanted[c.CampaignID] {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no data found for campaign ids %v", ids)
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(matched),
		"campaigns":  matched,
	}, nil
}

// budgetUtilization summarizes spend pacing across the window.
func (h *Handler) budgetUtilization(ctx context.Context, acct ads.Account, dr ads.DateRange, _ map[string]any) (any, error) {
	campaigns, err := h.gateway.CampaignMetrics(ctx, acct, dr)
	if err != nil {
		return nil, err
	}

	since, err := time.Parse("2006-01-02", dr.Since)
	if err != nil {
		return nil, fmt.Errorf("invalid since date %q: %w", dr.Since, err)
	}
	until, err := time.Parse("2006-01-02", dr.Until)
	if err != nil {
		return nil, fmt.Errorf("invalid until date %q: %w", dr.Until, err)
	}
	days := int(until.Sub(since).Hours()/24) + 1

	var totalSpend float64
	for _, c := range campaigns {
		totalSpend += c.Spend
	}
	dailyAverage := 0.0
	if days > 0 {
		dailyAverage = math.Round(totalSpend/float64(days)*100) / 100
	}
	return map[string]any{
		"account_id":          acct.ID,
		"date_range":          dr,
		"days_in_period":      days,
		"campaigns_count":     len(campaigns),
		"total_spend":         totalSpend,
		"daily_average_spend": dailyAverage,
	}, nil
}

func (h *Handler) creativePerformance(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	creatives, err := h.gateway.CreativePerformance(ctx, acct, dr, stringArg(args, "creative_type"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"count":      len(creatives),
		"creatives":  creatives,
	}, nil
}

func (h *Handler) conversionFunnel(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	funnel, err := h.gateway.ConversionFunnel(ctx, acct, dr, stringArg(args, "campaign_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"account_id": acct.ID,
		"date_range": dr,
		"funnel":     funnel,
	}, nil
}

// underperformingAds flags ads spending real money below the ROAS
// threshold, each with a next-step recommendation.
func (h *Handler) underperformingAds(ctx context.Context, acct ads.Account, dr ads.DateRange, args map[string]any) (any, error) {
	threshold := floatArg(args, "threshold_roas", 1.0)
	minSpend := floatArg(args, "min_spend", 100)

	all, err := h.gateway.TopAds(ctx, acct, dr, 500)
	if err != nil {
		return nil, err
	}

	type flaggedAd struct {
		ads.AdMetrics
		Recommendation string `json:"recommendation"`
	}
	flagged := make([]flaggedAd, 0)
	for _, ad := range all {
		if ad.Spend < minSpend || ad.ROAS >= threshold {
			continue
		}
		flagged = append(flagged, flaggedAd{AdMetrics: ad, Recommendation: adRecommendation(ad)})
	}
	return map[string]any{
		"account_id":     acct.ID,
		"date_range":     dr,
		"threshold_roas": threshold,
		"min_spend":      minSpend,
		"count":          len(flagged),
		"ads":            flagged,
	}, nil
}

func adRecommendation(ad ads.AdMetrics) string {
	switch {
	case ad.ROAS < 0.5:
		return "Very low ROAS - consider pausing immediately"
	case ad.CTR < 1.0:
		return "Low CTR - test new creative or audience"
	case ad.Conversions < 1:
		return "No conversions - review landing page and offer"
	default:
		return "Below threshold - optimize bid strategy or creative"
	}
}

// allAccountsSummary fetches the overview of every linked account. One
// account failing does not fail the rest; its row carries the error.
func (h *Handler) allAccountsSummary(ctx context.Context, subject string, links []accounts.AdAccount, dr ads.DateRange) (*ToolResult, error) {
	summaries := make([]map[string]any, 0, len(links))
	var totalSpend, totalRevenue float64
	for _, link := range links {
		row := map[string]any{
			"account_id":   link.AccountID,
			"account_name": link.AccountName,
		}
		if link.AccessToken == "" {
			row["error"] = "no stored access token"
			summaries = append(summaries, row)
			continue
		}
		acct := ads.Account{ID: link.AccountID, Name: link.AccountName, AccessToken: link.AccessToken, Currency: link.Currency}
		overview, err := h.gateway.AccountOverview(ctx, acct, dr)
		if err != nil {
			h.log.Warn("account summary failed", "account", link.AccountID, "error", err)
			row["error"] = err.Error()
			summaries = append(summaries, row)
			continue
		}
		row["currency"] = overview.Currency
		row["spend"] = overview.Spend
		row["revenue"] = overview.Revenue
		row["roas"] = overview.ROAS
		row["conversions"] = overview.Conversions
		totalSpend += overview.Spend
		totalRevenue += overview.Revenue
		summaries = append(summaries, row)

		if err := h.store.TouchSynced(ctx, subject, link.AccountID, time.Now()); err != nil &&
			!errors.Is(err, accounts.ErrNotFound) {
			h.log.Warn("touch synced", "account", link.AccountID, "error", err)
		}
	}
	return TextResult(map[string]any{
		"date_range":    dr,
		"account_count": len(links),
		"total_spend":   totalSpend,
		"total_revenue": totalRevenue,
		"accounts":      summaries,
	})
}

// errorResult wraps a tool-level failure as readable JSON content.
func errorResult(msg string, extra map[string]any) (*ToolResult, error) {
	payload := map[string]any{"error": msg}
	for k, v := range extra {
		payload[k] = v
	}
	return TextResult(payload)
}

// dateRangeFromArgs fills each missing bound independently, so a lone
// date_start still runs until today and a lone date_end still starts
// 30 days back.
func dateRangeFromArgs(args map[string]any) ads.DateRange {
	dr := ads.DateRange{
		Since: stringArg(args, "date_start"),
		Until: stringArg(args, "date_end"),
	}
	if dr.Since == "" || dr.Until == "" {
		def := ads.LastNDays(DefaultWindowDays)
		if dr.Since == "" {
			dr.Since = def.Since
		}
		if dr.Until == "" {
			dr.Until = def.Until
		}
	}
	return dr
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func floatArg(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// intArg reads an integer argument; JSON numbers decode as float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
