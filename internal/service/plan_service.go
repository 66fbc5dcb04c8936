package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var (
	ErrPlanNotFound   = errors.New("套餐不存在")
	ErrNoDefaultPlan  = errors.New("未配置默认套餐")
	ErrPlanNameExists = errors.New("套餐名称已存在")
	ErrPlanInUse      = errors.New("套餐仍在使用中，无法删除")
)

// PlanService 套餐目录，启动时写入配置中的套餐并记录默认套餐
type PlanService struct {
	planRepo *repository.PlanRepository
	cfg      *config.Config

	mu        sync.RWMutex
	defaultID int64
}

func NewPlanService(planRepo *repository.PlanRepository, cfg *config.Config) *PlanService {
	return &PlanService{
		planRepo: planRepo,
		cfg:      cfg,
	}
}

// Seed 写入配置中缺失的套餐，已有的套餐不修改，返回默认套餐
func (s *PlanService) Seed() (*model.Plan, error) {
	for _, pc := range s.cfg.Plans {
		_, err := s.planRepo.GetByName(pc.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		plan := s.planFromConfig(pc)
		if err := s.planRepo.Create(plan); err != nil {
			return nil, fmt.Errorf("failed to seed plan %s: %w", pc.Name, err)
		}
		slog.Info("plan seeded", "name", plan.Name, "daily_limit", plan.DailyLimit, "price", plan.Price)
	}

	plan, err := s.planRepo.GetByName(s.cfg.Billing.DefaultPlan)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoDefaultPlan
		}
		return nil, err
	}

	s.setDefaultID(plan.ID)
	return plan, nil
}

// Default 默认（免费）套餐
func (s *PlanService) Default() (*model.Plan, error) {
	if id := s.getDefaultID(); id > 0 {
		plan, err := s.planRepo.GetByID(id)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	plan, err := s.planRepo.GetByName(s.cfg.Billing.DefaultPlan)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoDefaultPlan
		}
		return nil, err
	}

	s.setDefaultID(plan.ID)
	return plan, nil
}

// EnsureDefault 默认套餐不存在时重新创建
func (s *PlanService) EnsureDefault() (*model.Plan, error) {
	plan, err := s.Default()
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, ErrNoDefaultPlan) {
		return nil, err
	}

	pc := config.PlanConfig{Name: s.cfg.Billing.DefaultPlan, DailyLimit: 1}
	for _, p := range s.cfg.Plans {
		if p.Name == s.cfg.Billing.DefaultPlan {
			pc = p
			break
		}
	}

	plan = s.planFromConfig(pc)
	if err := s.planRepo.Create(plan); err != nil {
		return nil, fmt.Errorf("failed to create default plan: %w", err)
	}
	slog.Warn("default plan was missing and has been recreated", "name", plan.Name)

	s.setDefaultID(plan.ID)
	return plan, nil
}

// List 按价格升序列出全部套餐
func (s *PlanService) List() ([]*dto.PlanInfo, error) {
	plans, err := s.planRepo.List()
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PlanInfo, 0, len(plans))
	for _, p := range plans {
		items = append(items, toPlanInfo(p))
	}
	return items, nil
}

// Get 根据 ID 获取套餐
func (s *PlanService) Get(id int64) (*model.Plan, error) {
	plan, err := s.planRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *PlanService) GetInfo(id int64) (*dto.PlanInfo, error) {
	plan, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return toPlanInfo(plan), nil
}

func (s *PlanService) GetByName(name string) (*model.Plan, error) {
	plan, err := s.planRepo.GetByName(name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// Create 管理员新增套餐
func (s *PlanService) Create(req *dto.PlanRequest) (*dto.PlanInfo, error) {
	exists, err := s.planRepo.ExistsByName(req.Name, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPlanNameExists
	}

	plan := &model.Plan{
		Name:       req.Name,
		DailyLimit: req.DailyLimit,
		Price:      req.Price,
		Currency:   s.currency(req.Currency),
	}
	if err := s.planRepo.Create(plan); err != nil {
		return nil, err
	}

	return toPlanInfo(plan), nil
}

// Update 管理员修改套餐
func (s *PlanService) Update(id int64, req *dto.PlanRequest) (*dto.PlanInfo, error) {
	plan, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	exists, err := s.planRepo.ExistsByName(req.Name, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPlanNameExists
	}

	plan.Name = req.Name
	plan.DailyLimit = req.DailyLimit
	plan.Price = req.Price
	plan.Currency = s.currency(req.Currency)

	if err := s.planRepo.Update(plan); err != nil {
		return nil, err
	}

	return toPlanInfo(plan), nil
}

// Delete 删除未被任何订阅引用的套餐，默认套餐不可删除
func (s *PlanService) Delete(id int64) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if id == s.getDefaultID() {
		return ErrPlanInUse
	}

	count, err := s.planRepo.CountSubscriptions(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPlanInUse
	}

	return s.planRepo.Delete(id)
}

func (s *PlanService) planFromConfig(pc config.PlanConfig) *model.Plan {
	return &model.Plan{
		Name:       pc.Name,
		DailyLimit: pc.DailyLimit,
		Price:      pc.Price,
		Currency:   s.currency(pc.Currency),
	}
}

func (s *PlanService) currency(c string) string {
	if c == "" {
		c = s.cfg.Billing.Currency
	}
	if c == "" {
		c = "EUR"
	}
	return strings.ToUpper(c)
}

func (s *PlanService) getDefaultID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultID
}

func (s *PlanService) setDefaultID(id int64) {
	s.mu.Lock()
	s.defaultID = id
	s.mu.Unlock()
}
