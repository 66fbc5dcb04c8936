package dto

// CheckoutRequest 模拟支付请求，卡号只保留后四位
type CheckoutRequest struct {
	PlanID     int64  `json:"plan_id" binding:"required"`
	FullName   string `json:"full_name"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// PaymentInfo 支付记录
type PaymentInfo struct {
	ID        int64   `json:"id"`
	PlanID    int64   `json:"plan_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Provider  string  `json:"provider"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// SubscriptionInfo 订阅信息
type SubscriptionInfo struct {
	ID        int64  `json:"id"`
	PlanID    int64  `json:"plan_id"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CheckoutResponse 支付结果
type CheckoutResponse struct {
	Payment      *PaymentInfo      `json:"payment,omitempty"`
	Subscription *SubscriptionInfo `json:"subscription"`
	Plan         *PlanInfo         `json:"plan"`
}
