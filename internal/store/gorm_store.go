package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"doctrans/pkg/domain"
)

// GormStore implements Store using GORM. Postgres DSNs get the postgres
// driver; anything else is treated as a SQLite file path.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{}, &PasswordResetModel{},
		&GlossaryModel{}, &GlossaryTermModel{},
		&JobModel{}, &JobFileModel{}, &JobTargetModel{}, &MetricModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "is_active"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email, case-insensitively.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("LOWER(email) = ?", strings.ToLower(email)).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SavePasswordReset stores a recovery token.
func (s *GormStore) SavePasswordReset(r domain.PasswordReset) error {
	model := resetToModel(r)
	return s.db.Create(&model).Error
}

// GetPasswordResetByToken looks up a recovery token.
func (s *GormStore) GetPasswordResetByToken(token string) (domain.PasswordReset, bool, error) {
	var model PasswordResetModel
	if err := s.db.Where("token = ?", token).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.PasswordReset{}, false, nil
		}
		return domain.PasswordReset{}, false, err
	}
	return resetFromModel(model), true, nil
}

// MarkPasswordResetUsed consumes a recovery token.
func (s *GormStore) MarkPasswordResetUsed(id string, usedAt time.Time) error {
	return s.db.Model(&PasswordResetModel{}).Where("id = ?", id).Update("used_at", usedAt).Error
}

// SaveGlossary stores or updates a glossary.
func (s *GormStore) SaveGlossary(g domain.Glossary) error {
	model := glossaryToModel(g)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "locale_src", "locale_dst"}),
	}).Create(&model).Error
}

// GetGlossary returns a glossary by ID without its terms.
func (s *GormStore) GetGlossary(id string) (domain.Glossary, bool, error) {
	var model GlossaryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Glossary{}, false, nil
		}
		return domain.Glossary{}, false, err
	}
	return glossaryFromModel(model), true, nil
}

// ListGlossaries returns all glossaries ordered by created_at.
func (s *GormStore) ListGlossaries() ([]domain.Glossary, error) {
	var models []GlossaryModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Glossary, 0, len(models))
	for _, m := range models {
		res = append(res, glossaryFromModel(m))
	}
	return res, nil
}

// DeleteGlossary removes a glossary and its terms.
func (s *GormStore) DeleteGlossary(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("glossary_id = ?", id).Delete(&GlossaryTermModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&GlossaryModel{}, "id = ?", id).Error
	})
}

// SaveTerm inserts or updates a term. The (glossary_id, src) pair is the
// conflict key; updates keep the original position.
func (s *GormStore) SaveTerm(t domain.GlossaryTerm) error {
	model := termToModel(t)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "glossary_id"}, {Name: "src"}},
		DoUpdates: clause.AssignmentColumns([]string{"dst", "notes"}),
	}).Create(&model).Error
}

// ListTerms returns a glossary's terms in insertion order.
func (s *GormStore) ListTerms(glossaryID string) ([]domain.GlossaryTerm, error) {
	var models []GlossaryTermModel
	if err := s.db.Where("glossary_id = ?", glossaryID).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.GlossaryTerm, 0, len(models))
	for _, m := range models {
		res = append(res, termFromModel(m))
	}
	return res, nil
}

// DeleteTerm removes a single term.
func (s *GormStore) DeleteTerm(id string) error {
	return s.db.Delete(&GlossaryTermModel{}, "id = ?", id).Error
}

// CreateJob persists the job, its file and its targets in one transaction.
func (s *GormStore) CreateJob(job domain.Job, file domain.JobFile, targets []domain.JobTarget) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		jm := jobToModel(job)
		if err := tx.Create(&jm).Error; err != nil {
			return err
		}
		fm := fileToModel(file)
		if err := tx.Create(&fm).Error; err != nil {
			return err
		}
		for _, t := range targets {
			tm := targetToModel(t)
			if err := tx.Create(&tm).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetJob returns a job by ID.
func (s *GormStore) GetJob(id string) (domain.Job, bool, error) {
	var model JobModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, err
	}
	return jobFromModel(model), true, nil
}

// GetJobFile returns the job's uploaded file record.
func (s *GormStore) GetJobFile(jobID string) (domain.JobFile, bool, error) {
	var model JobFileModel
	if err := s.db.Where("job_id = ?", jobID).Order("id ASC").First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.JobFile{}, false, nil
		}
		return domain.JobFile{}, false, err
	}
	return fileFromModel(model), true, nil
}

// ListJobs returns a page of jobs, newest first, plus the total match count.
// A non-empty q filters on partial job ID or filename, case-insensitively.
func (s *GormStore) ListJobs(q string, page, pageSize int) ([]domain.Job, int, error) {
	base := s.db.Model(&JobModel{})
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		base = base.Joins("JOIN job_files ON job_files.job_id = jobs.id").
			Where("LOWER(jobs.id) LIKE ? OR LOWER(job_files.filename) LIKE ?", like, like)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []JobModel
	if err := base.Order("jobs.updated_at DESC, jobs.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Job, 0, len(models))
	for _, m := range models {
		res = append(res, jobFromModel(m))
	}
	return res, int(total), nil
}

// UpdateJobStatus persists the aggregate job status.
func (s *GormStore) UpdateJobStatus(id string, status domain.JobStatus, updatedAt time.Time) error {
	return s.db.Model(&JobModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": updatedAt,
	}).Error
}

// ListTargets returns a job's targets in creation order.
func (s *GormStore) ListTargets(jobID string) ([]domain.JobTarget, error) {
	var models []JobTargetModel
	if err := s.db.Where("job_id = ?", jobID).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.JobTarget, 0, len(models))
	for _, m := range models {
		res = append(res, targetFromModel(m))
	}
	return res, nil
}

// GetTargetByLang returns one target of a job by language tag.
func (s *GormStore) GetTargetByLang(jobID, lang string) (domain.JobTarget, bool, error) {
	var model JobTargetModel
	if err := s.db.Where("job_id = ? AND target_lang = ?", jobID, lang).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.JobTarget{}, false, nil
		}
		return domain.JobTarget{}, false, err
	}
	return targetFromModel(model), true, nil
}

// UpdateTarget persists a target's status, output path and error.
func (s *GormStore) UpdateTarget(t domain.JobTarget) error {
	return s.db.Model(&JobTargetModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"status":      string(t.Status),
		"output_path": t.OutputPath,
		"error":       t.Error,
		"updated_at":  t.UpdatedAt,
	}).Error
}

// DeleteJob removes the job and its dependent rows in one transaction.
func (s *GormStore) DeleteJob(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&MetricModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", id).Delete(&JobTargetModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", id).Delete(&JobFileModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&JobModel{}, "id = ?", id).Error
	})
}

// AddMetric appends one metric row.
func (s *GormStore) AddMetric(m domain.Metric) error {
	model := metricToModel(m)
	return s.db.Create(&model).Error
}

// ListMetrics returns a job's metric rows in insertion order.
func (s *GormStore) ListMetrics(jobID string) ([]domain.Metric, error) {
	var models []MetricModel
	if err := s.db.Where("job_id = ?", jobID).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Metric, 0, len(models))
	for _, m := range models {
		res = append(res, metricFromModel(m))
	}
	return res, nil
}
