package mcp

import "encoding/json"

// Shared schema fragments. Every reporting tool accepts the same
// optional account and date-range arguments.
const dateArgs = `
    "account_id": {
      "type": "string",
      "description": "Ad account ID, e.g. act_1234567890. Defaults to the first linked account."
    },
    "date_start": {
      "type": "string",
      "description": "Start date YYYY-MM-DD. Defaults to 30 days ago."
    },
    "date_end": {
      "type": "string",
      "description": "End date YYYY-MM-DD. Defaults to today."
    }`

var toolCatalog = []ToolDescriptor{
	{
		Name:        "get_account_overview",
		Description: "Aggregated account performance for a date range: spend, revenue, ROAS, impressions, clicks, conversions, CTR, CPC, CPM.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `
  }
}`),
	},
	{
		Name:        "get_campaigns_performance",
		Description: "Per-campaign performance metrics, optionally filtered by status (ACTIVE, PAUSED).",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "status": {
      "type": "string",
      "description": "Only return campaigns with this status, e.g. ACTIVE."
    }
  }
}`),
	},
	{
		Name:        "get_adsets_performance",
		Description: "Per-ad-set performance metrics, optionally scoped to one campaign.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "campaign_id": {
      "type": "string",
      "description": "Restrict results to ad sets of this campaign."
    }
  }
}`),
	},
	{
		Name:        "get_top_performing_ads",
		Description: "The best ads in the account ranked by ROAS, highest first.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "limit": {
      "type": "integer",
      "description": "Maximum number of ads to return, default 10."
    }
  }
}`),
	},
	{
		Name:        "get_audience_insights",
		Description: "Performance broken down by audience demographics (age and gender).",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "breakdown": {
      "type": "string",
      "description": "Breakdown dimension: age, gender, or all. Default all."
    }
  }
}`),
	},
	{
		Name:        "get_daily_trends",
		Description: "Day-by-day account performance across the date range, for spotting trends.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `
  }
}`),
	},
	{
		Name:        "get_placement_performance",
		Description: "Performance by placement surface (feed, stories, audience network) across platforms.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `
  }
}`),
	},
	{
		Name:        "compare_campaigns",
		Description: "Side-by-side performance comparison of specific campaigns.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "campaign_ids": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Campaign IDs to compare."
    }
  },
  "required": ["campaign_ids"]
}`),
	},
	{
		Name:        "get_budget_utilization",
		Description: "Spend pacing for the date range: total spend, daily average, campaign count.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `
  }
}`),
	},
	{
		Name:        "get_creative_performance",
		Description: "Performance aggregated by creative type (image, video, carousel).",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "creative_type": {
      "type": "string",
      "description": "Only return this creative type: image, video, or carousel."
    }
  }
}`),
	},
	{
		Name:        "get_conversion_funnel",
		Description: "Funnel metrics from impressions through clicks to purchases, optionally for one campaign.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "campaign_id": {
      "type": "string",
      "description": "Restrict the funnel to this campaign."
    }
  }
}`),
	},
	{
		Name:        "get_underperforming_ads",
		Description: "Ads spending above a floor but returning below a ROAS threshold, with a recommendation for each.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {` + dateArgs + `,
    "threshold_roas": {
      "type": "number",
      "description": "Flag ads with ROAS below this value, default 1.0."
    },
    "min_spend": {
      "type": "number",
      "description": "Ignore ads that spent less than this, default 100."
    }
  }
}`),
	},
	{
		Name:        "get_all_accounts_summary",
		Description: "A spend and revenue summary across every linked ad account.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "date_start": {
      "type": "string",
      "description": "Start date YYYY-MM-DD. Defaults to 30 days ago."
    },
    "date_end": {
      "type": "string",
      "description": "End date YYYY-MM-DD. Defaults to today."
    }
  }
}`),
	},
}
