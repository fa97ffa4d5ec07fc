package store

import (
	"time"

	"doctrans/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	IsActive     bool   `gorm:"not null"`
	CreatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type PasswordResetModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Token     string `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time
	UsedAt    *time.Time
}

func (PasswordResetModel) TableName() string { return "password_resets" }

type GlossaryModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	LocaleSrc string `gorm:"not null"`
	LocaleDst string `gorm:"not null"`
	CreatedBy string `gorm:"index"`
	CreatedAt time.Time
}

func (GlossaryModel) TableName() string { return "glossaries" }

type GlossaryTermModel struct {
	ID         string `gorm:"primaryKey"`
	GlossaryID string `gorm:"not null;uniqueIndex:idx_glossary_src"`
	Src        string `gorm:"not null;uniqueIndex:idx_glossary_src"`
	Dst        string `gorm:"not null"`
	Notes      string
	Position   int `gorm:"not null"`
}

func (GlossaryTermModel) TableName() string { return "glossary_terms" }

type JobModel struct {
	ID         string `gorm:"primaryKey"`
	Title      string
	Status     string `gorm:"not null"`
	SourceLang string `gorm:"not null"`
	TargetLang string `gorm:"not null"`
	GlossaryID string
	CreatedBy  string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (JobModel) TableName() string { return "jobs" }

type JobFileModel struct {
	ID         string `gorm:"primaryKey"`
	JobID      string `gorm:"not null;index"`
	Filename   string `gorm:"not null"`
	InputPath  string `gorm:"not null"`
	OutputPath string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (JobFileModel) TableName() string { return "job_files" }

type JobTargetModel struct {
	ID         string `gorm:"primaryKey"`
	JobID      string `gorm:"not null;index"`
	TargetLang string `gorm:"not null"`
	Status     string `gorm:"not null"`
	OutputPath string
	Error      string
	Position   int `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (JobTargetModel) TableName() string { return "job_targets" }

type MetricModel struct {
	ID        string `gorm:"primaryKey"`
	JobID     string `gorm:"not null;index"`
	Key       string `gorm:"not null"`
	Value     string `gorm:"not null"`
	CreatedAt time.Time
}

func (MetricModel) TableName() string { return "metrics" }

func userToModel(u domain.User) UserModel {
	return UserModel{ID: u.ID, Name: u.Name, Email: u.Email, PasswordHash: u.PasswordHash, IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{ID: m.ID, Name: m.Name, Email: m.Email, PasswordHash: m.PasswordHash, IsActive: m.IsActive, CreatedAt: m.CreatedAt}
}

func resetToModel(r domain.PasswordReset) PasswordResetModel {
	return PasswordResetModel{ID: r.ID, UserID: r.UserID, Token: r.Token, ExpiresAt: r.ExpiresAt, UsedAt: r.UsedAt}
}

func resetFromModel(m PasswordResetModel) domain.PasswordReset {
	return domain.PasswordReset{ID: m.ID, UserID: m.UserID, Token: m.Token, ExpiresAt: m.ExpiresAt, UsedAt: m.UsedAt}
}

func glossaryToModel(g domain.Glossary) GlossaryModel {
	return GlossaryModel{ID: g.ID, Name: g.Name, LocaleSrc: g.LocaleSrc, LocaleDst: g.LocaleDst, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt}
}

func glossaryFromModel(m GlossaryModel) domain.Glossary {
	return domain.Glossary{ID: m.ID, Name: m.Name, LocaleSrc: m.LocaleSrc, LocaleDst: m.LocaleDst, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}

func termToModel(t domain.GlossaryTerm) GlossaryTermModel {
	return GlossaryTermModel{ID: t.ID, GlossaryID: t.GlossaryID, Src: t.Src, Dst: t.Dst, Notes: t.Notes, Position: t.Position}
}

func termFromModel(m GlossaryTermModel) domain.GlossaryTerm {
	return domain.GlossaryTerm{ID: m.ID, GlossaryID: m.GlossaryID, Src: m.Src, Dst: m.Dst, Notes: m.Notes, Position: m.Position}
}

func jobToModel(j domain.Job) JobModel {
	return JobModel{ID: j.ID, Title: j.Title, Status: string(j.Status), SourceLang: j.SourceLang, TargetLang: j.TargetLang, GlossaryID: j.GlossaryID, CreatedBy: j.CreatedBy, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt}
}

func jobFromModel(m JobModel) domain.Job {
	return domain.Job{ID: m.ID, Title: m.Title, Status: domain.JobStatus(m.Status), SourceLang: m.SourceLang, TargetLang: m.TargetLang, GlossaryID: m.GlossaryID, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func fileToModel(f domain.JobFile) JobFileModel {
	return JobFileModel{ID: f.ID, JobID: f.JobID, Filename: f.Filename, InputPath: f.InputPath, OutputPath: f.OutputPath, Error: f.Error, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

func fileFromModel(m JobFileModel) domain.JobFile {
	return domain.JobFile{ID: m.ID, JobID: m.JobID, Filename: m.Filename, InputPath: m.InputPath, OutputPath: m.OutputPath, Error: m.Error, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func targetToModel(t domain.JobTarget) JobTargetModel {
	return JobTargetModel{ID: t.ID, JobID: t.JobID, TargetLang: t.TargetLang, Status: string(t.Status), OutputPath: t.OutputPath, Error: t.Error, Position: t.Position, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
}

func targetFromModel(m JobTargetModel) domain.JobTarget {
	return domain.JobTarget{ID: m.ID, JobID: m.JobID, TargetLang: m.TargetLang, Status: domain.TargetStatus(m.Status), OutputPath: m.OutputPath, Error: m.Error, Position: m.Position, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func metricToModel(m domain.Metric) MetricModel {
	return MetricModel{ID: m.ID, JobID: m.JobID, Key: m.Key, Value: m.Value, CreatedAt: m.CreatedAt}
}

func metricFromModel(m MetricModel) domain.Metric {
	return domain.Metric{ID: m.ID, JobID: m.JobID, Key: m.Key, Value: m.Value, CreatedAt: m.CreatedAt}
}
