package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var (
	ErrCannotDeleteSelf = errors.New("不能删除自己的账号")
	ErrQueryNotAllowed  = errors.New("只允许执行单条 SELECT 查询")
)

const (
	maxQueryRows      = 500
	paymentsSheetName = "Payments"

	// XLSXContentType 导出文件的 Content-Type
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// 只读查询中不允许出现的关键字
var forbiddenSQL = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace|truncate|attach|detach|pragma|grant|revoke|into|lock|vacuum)\b|\bfor\s+update\b`)

// AdminService 管理后台
type AdminService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	subRepo     *repository.SubscriptionRepository
	usageRepo   *repository.UsageRepository
	paymentRepo *repository.PaymentRepository
	plans       *PlanService
	subs        *SubscriptionService
	cfg         *config.Config
}

func NewAdminService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	subRepo *repository.SubscriptionRepository,
	usageRepo *repository.UsageRepository,
	paymentRepo *repository.PaymentRepository,
	plans *PlanService,
	subs *SubscriptionService,
	cfg *config.Config,
) *AdminService {
	return &AdminService{
		db:          db,
		userRepo:    userRepo,
		subRepo:     subRepo,
		usageRepo:   usageRepo,
		paymentRepo: paymentRepo,
		plans:       plans,
		subs:        subs,
		cfg:         cfg,
	}
}

// BootstrapAdmin 按配置创建管理员，已存在的账号提升为管理员
func (s *AdminService) BootstrapAdmin() error {
	emailAddr := strings.ToLower(strings.TrimSpace(s.cfg.Admin.Email))
	if emailAddr == "" || s.cfg.Admin.Password == "" {
		return nil
	}

	user, err := s.userRepo.GetByEmail(emailAddr)
	if err == nil {
		if user.IsAdmin() {
			return nil
		}
		slog.Info("promoting configured admin", "email", emailAddr)
		return s.userRepo.UpdateFields(user.ID, map[string]interface{}{"role": model.RoleAdmin})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	_, err = s.CreateUser(&dto.AdminCreateUserRequest{
		Email:       emailAddr,
		Password:    s.cfg.Admin.Password,
		DisplayName: "admin",
		Role:        model.RoleAdmin,
	})
	if err != nil {
		return err
	}

	slog.Info("admin account created", "email", emailAddr)
	return nil
}

// ListUsers 用户列表
func (s *AdminService) ListUsers(page, pageSize int) ([]*dto.UserInfo, int64, error) {
	users, total, err := s.userRepo.List(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.UserInfo, 0, len(users))
	for _, u := range users {
		items = append(items, toUserInfo(u))
	}
	return items, total, nil
}

// CreateUser 创建用户并开通默认套餐
func (s *AdminService) CreateUser(req *dto.AdminCreateUserRequest) (*dto.UserInfo, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.userRepo.ExistsByEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}

	user := &model.User{
		Email:        &emailAddr,
		PasswordHash: &hashed,
		DisplayName:  req.DisplayName,
		Role:         role,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if _, _, err := s.subs.ResolveCurrent(user.ID); err != nil {
		return nil, fmt.Errorf("failed to activate default plan: %w", err)
	}

	return toUserInfo(user), nil
}

// UpdateUser 修改用户，未提供的字段保持不变
func (s *AdminService) UpdateUser(id int64, req *dto.AdminUpdateUserRequest) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Email != nil {
		emailAddr := strings.ToLower(strings.TrimSpace(*req.Email))
		if user.Email == nil || *user.Email != emailAddr {
			exists, err := s.userRepo.ExistsByEmail(emailAddr)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrEmailExists
			}
		}
		user.Email = &emailAddr
	}
	if req.Password != nil {
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hashed
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		user.Role = *req.Role
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// DeleteUser 删除用户及其订阅和用量，支付记录保留
func (s *AdminService) DeleteUser(operatorID, id int64) error {
	if operatorID == id {
		return ErrCannotDeleteSelf
	}

	if _, err := s.userRepo.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.subRepo.DeleteByUser(id); err != nil {
		return err
	}
	if err := s.usageRepo.DeleteByUser(id); err != nil {
		return err
	}
	return s.userRepo.Delete(id)
}

// Query 执行只读 SQL，最多返回 maxQueryRows 行
func (s *AdminService) Query(query string) (*dto.SQLQueryResult, error) {
	q, err := sanitizeQuery(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Raw(q).Rows()
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &dto.SQLQueryResult{
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0),
	}

	for rows.Next() && len(result.Rows) < maxQueryRows {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	return result, rows.Err()
}

// ExportPayments 导出全部支付记录为 xlsx
func (s *AdminService) ExportPayments(w io.Writer) error {
	payments, err := s.paymentRepo.ListAll()
	if err != nil {
		return err
	}

	planNames := make(map[int64]string)
	plans, err := s.plans.List()
	if err != nil {
		return err
	}
	for _, p := range plans {
		planNames[p.ID] = p.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", paymentsSheetName); err != nil {
		return err
	}

	headers := []string{"ID", "User ID", "Plan", "Amount", "Currency", "Provider", "Status", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(paymentsSheetName, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2563EB"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	f.SetCellStyle(paymentsSheetName, "A1", "H1", headerStyle)

	for i, p := range payments {
		row := i + 2
		plan := planNames[p.PlanID]
		if plan == "" {
			plan = fmt.Sprintf("#%d", p.PlanID)
		}
		values := []interface{}{p.ID, p.UserID, plan, p.Amount, p.Currency, p.Provider, p.Status, formatTime(p.CreatedAt)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(paymentsSheetName, cell, v)
		}
	}

	f.SetColWidth(paymentsSheetName, "A", "B", 10)
	f.SetColWidth(paymentsSheetName, "C", "G", 14)
	f.SetColWidth(paymentsSheetName, "H", "H", 24)

	return f.Write(w)
}

// sanitizeQuery 只接受单条 SELECT 语句
func sanitizeQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" || strings.Contains(q, ";") {
		return "", ErrQueryNotAllowed
	}

	fields := strings.Fields(q)
	if !strings.EqualFold(fields[0], "select") {
		return "", ErrQueryNotAllowed
	}
	if forbiddenSQL.MatchString(q) {
		return "", ErrQueryNotAllowed
	}

	return q, nil
}
