package dto

// PlanInfo 套餐信息
type PlanInfo struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	DailyLimit int     `json:"daily_limit"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
}

// PlanRequest 管理员创建/修改套餐
type PlanRequest struct {
	Name       string  `json:"name" binding:"required,max=50"`
	DailyLimit int     `json:"daily_limit" binding:"min=0"`
	Price      float64 `json:"price" binding:"min=0"`
	Currency   string  `json:"currency" binding:"omitempty,len=3"`
}
