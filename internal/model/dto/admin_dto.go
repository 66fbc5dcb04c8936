package dto

// AdminCreateUserRequest 管理员创建用户
type AdminCreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=64"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role" binding:"omitempty,oneof=user admin"`
}

// AdminUpdateUserRequest 管理员修改用户，字段为空表示不修改
type AdminUpdateUserRequest struct {
	Email       *string `json:"email,omitempty" binding:"omitempty,email"`
	Password    *string `json:"password,omitempty" binding:"omitempty,min=6,max=64"`
	DisplayName *string `json:"display_name,omitempty"`
	Role        *string `json:"role,omitempty" binding:"omitempty,oneof=user admin"`
}

// GuestInfo 访客身份
type GuestInfo struct {
	ID            int64  `json:"id"`
	Token         string `json:"token"`
	ExpiresAt     string `json:"expires_at"`
	DailyLimit    int    `json:"daily_limit"`
	UsedToday     int    `json:"used_today"`
	LastResetDate string `json:"last_reset_date,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// SQLQueryRequest 只读 SQL 查询
type SQLQueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// SQLQueryResult 查询结果
type SQLQueryResult struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}
