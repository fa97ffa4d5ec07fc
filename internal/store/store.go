package store

import (
	"time"

	"doctrans/pkg/domain"
)

// Store defines persistence for users, glossaries, jobs and metrics.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// password resets
	SavePasswordReset(domain.PasswordReset) error
	GetPasswordResetByToken(token string) (domain.PasswordReset, bool, error)
	MarkPasswordResetUsed(id string, usedAt time.Time) error

	// glossaries
	SaveGlossary(domain.Glossary) error
	GetGlossary(id string) (domain.Glossary, bool, error)
	ListGlossaries() ([]domain.Glossary, error)
	DeleteGlossary(id string) error
	SaveTerm(domain.GlossaryTerm) error
	ListTerms(glossaryID string) ([]domain.GlossaryTerm, error)
	DeleteTerm(id string) error

	// jobs
	CreateJob(job domain.Job, file domain.JobFile, targets []domain.JobTarget) error
	GetJob(id string) (domain.Job, bool, error)
	GetJobFile(jobID string) (domain.JobFile, bool, error)
	ListJobs(q string, page, pageSize int) ([]domain.Job, int, error)
	UpdateJobStatus(id string, status domain.JobStatus, updatedAt time.Time) error
	ListTargets(jobID string) ([]domain.JobTarget, error)
	GetTargetByLang(jobID, lang string) (domain.JobTarget, bool, error)
	UpdateTarget(domain.JobTarget) error
	DeleteJob(id string) error

	// metrics
	AddMetric(domain.Metric) error
	ListMetrics(jobID string) ([]domain.Metric, error)
}
