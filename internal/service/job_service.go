package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/metrics"
	"github.com/qs3c/audiosep_server/internal/pkg/pubsub"
	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var (
	ErrMissingFile       = errors.New("缺少上传文件")
	ErrEmptyFile         = errors.New("上传文件为空")
	ErrFileTooLarge      = errors.New("文件过大")
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	ErrJobNotFound       = errors.New("任务不存在")
	ErrIdentityRequired  = errors.New("需要登录或提供访客令牌")
)

const (
	recentJobsLimit  = 20
	defaultOutputExt = ".wav"
)

// Identity 上传者身份，GuestToken 非空时按访客处理
type Identity struct {
	UserID     int64
	GuestToken string
}

func (i Identity) IsGuest() bool {
	return i.GuestToken != ""
}

func (i Identity) kind() string {
	if i.IsGuest() {
		return "guest"
	}
	return "user"
}

// JobNotifier 任务状态变化通知
type JobNotifier interface {
	Publish(ctx context.Context, msg *pubsub.JobMessage) error
}

// admission 通过预检后的上传配额来源
type admission struct {
	userID int64
	limit  int
	guest  *model.GuestIdentity
}

// JobService 上传准入和分离任务
type JobService struct {
	jobRepo  *repository.JobRepository
	userRepo *repository.UserRepository
	subs     *SubscriptionService
	quota    *QuotaService
	guests   *GuestService
	store    storage.Store
	notifier JobNotifier
	cfg      *config.Config
	now      func() time.Time
}

func NewJobService(
	jobRepo *repository.JobRepository,
	userRepo *repository.UserRepository,
	subs *SubscriptionService,
	quota *QuotaService,
	guests *GuestService,
	store storage.Store,
	notifier JobNotifier,
	cfg *config.Config,
) *JobService {
	return &JobService{
		jobRepo:  jobRepo,
		userRepo: userRepo,
		subs:     subs,
		quota:    quota,
		guests:   guests,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CheckAdmission 只读预检：身份是否有效、今日是否还有次数
func (s *JobService) CheckAdmission(id Identity) error {
	_, err := s.admit(id)
	return err
}

// Upload 保存上传文件并生成分离结果
//
// 分离是命名占位：输出文件名由输入文件名推导，任务在请求内直接完成。
// 配额在任务创建后原子占用，并发请求抢占失败时任务标记为 failed。
func (s *JobService) Upload(ctx context.Context, id Identity, file *multipart.FileHeader) (*dto.JobInfo, error) {
	if err := s.validateFile(file); err != nil {
		s.recordAdmission(id, metrics.OutcomeRejected)
		return nil, err
	}

	adm, err := s.admit(id)
	if err != nil {
		s.recordAdmission(id, admissionOutcome(err))
		return nil, err
	}

	inputName, err := s.saveFile(ctx, file)
	if err != nil {
		s.recordAdmission(id, metrics.OutcomeError)
		return nil, err
	}

	job := &model.AudioJob{
		OriginalName: filepath.Base(file.Filename),
		InputPath:    inputName,
		Status:       model.JobStatusProcessing,
		CreatedAt:    s.now().UTC(),
	}
	if adm.guest != nil {
		job.GuestID = &adm.guest.ID
	} else {
		job.UserID = &adm.userID
	}
	if err := s.jobRepo.Create(job); err != nil {
		s.recordAdmission(id, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.consume(adm); err != nil {
		s.failJob(job, err)
		s.recordAdmission(id, admissionOutcome(err))
		s.notify(ctx, job)
		return nil, err
	}

	vocals, backsound := separationOutputs(inputName)
	completedAt := s.now().UTC()
	job.VocalsPath = vocals
	job.BacksoundPath = backsound
	job.Status = model.JobStatusDone
	job.CompletedAt = &completedAt
	if err := s.jobRepo.Update(job); err != nil {
		s.recordAdmission(id, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}

	s.recordAdmission(id, metrics.OutcomeAccepted)
	slog.Info("audio job completed",
		"job_id", job.ID,
		"identity", id.kind(),
		"input", job.InputPath,
	)
	s.notify(ctx, job)

	return toJobInfo(job), nil
}

// ListForUser 用户最近的任务
func (s *JobService) ListForUser(userID int64) ([]*dto.JobInfo, error) {
	jobs, err := s.jobRepo.ListByUser(userID, recentJobsLimit)
	if err != nil {
		return nil, err
	}
	return toJobInfos(jobs), nil
}

// ListForGuest 访客最近的任务，今日次数用完也可以查看
func (s *JobService) ListForGuest(token string) ([]*dto.JobInfo, error) {
	guest, err := s.guests.Lookup(token)
	if err != nil {
		return nil, err
	}

	jobs, err := s.jobRepo.ListByGuest(guest.ID, recentJobsLimit)
	if err != nil {
		return nil, err
	}
	return toJobInfos(jobs), nil
}

// Get 获取任务详情，只能查看自己的任务
func (s *JobService) Get(id Identity, jobID int64) (*dto.JobInfo, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if id.IsGuest() {
		guest, err := s.guests.Lookup(id.GuestToken)
		if err != nil {
			return nil, err
		}
		if job.GuestID == nil || *job.GuestID != guest.ID {
			return nil, ErrJobNotFound
		}
	} else if job.UserID == nil || *job.UserID != id.UserID {
		return nil, ErrJobNotFound
	}

	return toJobInfo(job), nil
}

// List 管理后台列出全部任务
func (s *JobService) List(page, pageSize int) ([]*dto.JobInfo, int64, error) {
	jobs, total, err := s.jobRepo.List(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return toJobInfos(jobs), total, nil
}

// Delete 删除任务及其上传文件
func (s *JobService) Delete(ctx context.Context, jobID int64) error {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	if err := s.jobRepo.Delete(jobID); err != nil {
		return err
	}

	// 文件删除失败时留给 cleanup 处理
	if err := s.store.Delete(ctx, job.InputPath); err != nil {
		slog.Warn("failed to delete upload", "job_id", jobID, "path", job.InputPath, "error", err)
	}
	return nil
}

func (s *JobService) admit(id Identity) (*admission, error) {
	if id.IsGuest() {
		guest, err := s.guests.Check(id.GuestToken)
		if err != nil {
			return nil, err
		}
		return &admission{guest: guest}, nil
	}

	if id.UserID <= 0 {
		return nil, ErrIdentityRequired
	}

	if _, err := s.userRepo.GetByID(id.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	_, plan, err := s.subs.ResolveCurrent(id.UserID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoActivePlan
	}

	used, err := s.quota.GetUsedToday(id.UserID, s.quota.Today())
	if err != nil {
		return nil, err
	}
	if used >= plan.DailyLimit {
		return nil, ErrQuotaExceeded
	}

	return &admission{userID: id.UserID, limit: plan.DailyLimit}, nil
}

func (s *JobService) consume(adm *admission) error {
	if adm.guest != nil {
		return s.guests.Consume(adm.guest)
	}
	_, err := s.quota.TryRecordUse(adm.userID, s.quota.Today(), adm.limit)
	return err
}

func (s *JobService) validateFile(file *multipart.FileHeader) error {
	if file == nil || file.Filename == "" {
		return ErrMissingFile
	}
	if file.Size <= 0 {
		return ErrEmptyFile
	}
	if s.cfg.Upload.MaxSize > 0 && file.Size > s.cfg.Upload.MaxSize {
		return ErrFileTooLarge
	}

	if len(s.cfg.Upload.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		allowed := false
		for _, e := range s.cfg.Upload.AllowedExtensions {
			if strings.ToLower(e) == ext {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrUnsupportedFormat
		}
	}

	return nil
}

func (s *JobService) saveFile(ctx context.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name, err := s.store.Save(ctx, uuid.New().String()+"_"+filepath.Base(file.Filename), src)
	if err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return name, nil
}

func (s *JobService) failJob(job *model.AudioJob, cause error) {
	job.Status = model.JobStatusFailed
	job.ErrorMessage = cause.Error()
	if err := s.jobRepo.Update(job); err != nil {
		slog.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
}

func (s *JobService) notify(ctx context.Context, job *model.AudioJob) {
	if s.notifier == nil {
		return
	}

	msg := &pubsub.JobMessage{
		JobID:         job.ID,
		Status:        job.Status,
		VocalsPath:    job.VocalsPath,
		BacksoundPath: job.BacksoundPath,
		Error:         job.ErrorMessage,
	}
	if job.UserID != nil {
		msg.UserID = *job.UserID
	}
	if job.GuestID != nil {
		msg.GuestID = *job.GuestID
	}

	if err := s.notifier.Publish(ctx, msg); err != nil {
		slog.Warn("failed to publish job update", "job_id", job.ID, "error", err)
	}
}

func (s *JobService) recordAdmission(id Identity, outcome string) {
	metrics.UploadAdmissionsTotal.WithLabelValues(id.kind(), outcome).Inc()
}

func admissionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return metrics.OutcomeQuotaExceeded
	case errors.Is(err, ErrGuestTokenInvalid),
		errors.Is(err, ErrGuestTokenExpired),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrNoActivePlan),
		errors.Is(err, ErrIdentityRequired):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// separationOutputs 分离结果占位：{base}_vocals{ext} 和 {base}_backsound{ext}，只用文件名
func separationOutputs(inputName string) (vocals, backsound string) {
	name := filepath.Base(inputName)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if strings.TrimSpace(ext) == "" || ext == "." {
		ext = defaultOutputExt
	}
	return base + "_vocals" + ext, base + "_backsound" + ext
}

func toJobInfos(jobs []*model.AudioJob) []*dto.JobInfo {
	items := make([]*dto.JobInfo, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobInfo(j))
	}
	return items
}
