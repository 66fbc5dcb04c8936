package dto

// UsageInfo 今日用量
type UsageInfo struct {
	Day   string `json:"day"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}

// AccountSummary 账户概览
type AccountSummary struct {
	User         *UserInfo         `json:"user"`
	Plan         *PlanInfo         `json:"plan"`
	Subscription *SubscriptionInfo `json:"subscription"`
	Usage        *UsageInfo        `json:"usage"`
	Payments     []*PaymentInfo    `json:"payments"`
}

// QuotaInfo 配额信息
type QuotaInfo struct {
	Plan        string `json:"plan"`
	DailyLimit  int    `json:"daily_limit"`
	DailyUsed   int    `json:"daily_used"`
	DailyRemain int    `json:"daily_remain"`
	Day         string `json:"day"`
}
