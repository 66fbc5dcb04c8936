package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.AudioJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.AudioJob, error) {
	var job model.AudioJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) Update(job *model.AudioJob) error {
	return r.db.Save(job).Error
}

func (r *JobRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.AudioJob{}).Where("id = ?", id).Update("status", status).Error
}

// ListByUser 用户最近的任务
func (r *JobRepository) ListByUser(userID int64, limit int) ([]*model.AudioJob, error) {
	var jobs []*model.AudioJob
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListByGuest 访客最近的任务
func (r *JobRepository) ListByGuest(guestID int64, limit int) ([]*model.AudioJob, error) {
	var jobs []*model.AudioJob
	err := r.db.Where("guest_id = ?", guestID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) List(page, pageSize int) ([]*model.AudioJob, int64, error) {
	var jobs []*model.AudioJob
	var total int64

	query := r.db.Model(&model.AudioJob{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error
	return jobs, total, err
}

func (r *JobRepository) Delete(id int64) error {
	return r.db.Delete(&model.AudioJob{}, id).Error
}

// ListReferencedPaths 所有任务引用的存储路径
func (r *JobRepository) ListReferencedPaths() (map[string]struct{}, error) {
	var jobs []*model.AudioJob
	err := r.db.Select("input_path", "vocals_path", "backsound_path").Find(&jobs).Error
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{}, len(jobs)*3)
	for _, j := range jobs {
		for _, p := range []string{j.InputPath, j.VocalsPath, j.BacksoundPath} {
			if p != "" {
				paths[p] = struct{}{}
			}
		}
	}
	return paths, nil
}

// DetachGuest 访客被删除后保留任务记录
func (r *JobRepository) DetachGuest(guestID int64) error {
	return r.db.Model(&model.AudioJob{}).Where("guest_id = ?", guestID).Update("guest_id", nil).Error
}
