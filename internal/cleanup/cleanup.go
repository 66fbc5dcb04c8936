package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/repository"
	"github.com/qs3c/audiosep_server/internal/service"
)

// Report 一次清理的统计
type Report struct {
	ScannedFiles  int
	OrphanFiles   int
	OrphanBytes   int64
	DeletedFiles  int
	ExpiredGuests int
	DryRun        bool
}

// Service 清理无任务引用的上传文件和过期访客，由外部调度执行
type Service struct {
	jobRepo      *repository.JobRepository
	guests       *service.GuestService
	store        storage.Store
	orphanExpire time.Duration
	now          func() time.Time
}

// NewService orphanExpireHours 内的新文件不处理，上传到建任务之间有时间差
func NewService(jobRepo *repository.JobRepository, guests *service.GuestService, store storage.Store, orphanExpireHours int) *Service {
	if orphanExpireHours <= 0 {
		orphanExpireHours = 24
	}
	return &Service{
		jobRepo:      jobRepo,
		guests:       guests,
		store:        store,
		orphanExpire: time.Duration(orphanExpireHours) * time.Hour,
		now:          time.Now,
	}
}

// Orphans 删除没有任何任务引用、且超过保留时间的存储文件
func (s *Service) Orphans(ctx context.Context, report *Report) error {
	referenced, err := s.jobRepo.ListReferencedPaths()
	if err != nil {
		return fmt.Errorf("failed to list referenced paths: %w", err)
	}

	objects, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	cutoff := s.now().Add(-s.orphanExpire)
	for _, obj := range objects {
		report.ScannedFiles++

		if _, ok := referenced[obj.Name]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}

		report.OrphanFiles++
		report.OrphanBytes += obj.Size
		slog.Info("orphan upload", "name", obj.Name, "size", obj.Size, "age", s.now().Sub(obj.ModTime).Round(time.Minute))

		if report.DryRun {
			continue
		}
		if err := s.store.Delete(ctx, obj.Name); err != nil {
			slog.Warn("failed to delete orphan", "name", obj.Name, "error", err)
			continue
		}
		report.DeletedFiles++
	}

	return nil
}

// Guests 删除过期超过 grace 的访客身份，任务记录保留
func (s *Service) Guests(grace time.Duration, report *Report) error {
	guests, err := s.guests.PurgeExpired(grace, report.DryRun)
	if err != nil {
		return err
	}

	for _, g := range guests {
		slog.Info("expired guest", "guest_id", g.ID, "expires_at", g.ExpiresAt)
	}
	report.ExpiredGuests = len(guests)
	return nil
}
