package app

import (
	"strconv"
	"strings"
	"time"

	"doctrans/pkg/domain"
)

// UserView is the public shape of a user.
type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserView `json:"user,omitempty"`
}

// JobItem is one row of the jobs listing.
type JobItem struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Status     domain.JobStatus   `json:"status"`
	SourceLang string             `json:"source_lang"`
	TargetLang string             `json:"target_lang"`
	Targets    []domain.JobTarget `json:"targets"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// JobDetail is the job view with aggregated metrics.
type JobDetail struct {
	JobItem
	Metrics map[string]any `json:"metrics"`
}

// JobList is a page of the jobs listing.
type JobList struct {
	Items    []JobItem `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// CreateJobResult is the materialized response of job creation, including
// every target outcome and the languages that failed.
type CreateJobResult struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Status      domain.JobStatus   `json:"status"`
	SourceLang  string             `json:"source_lang"`
	TargetLangs []string           `json:"target_langs"`
	Targets     []domain.JobTarget `json:"targets"`
	Errors      []string           `json:"errors"`
}

// TargetList reports a job's targets with a status derived from them.
type TargetList struct {
	JobID   string             `json:"job_id"`
	Status  domain.JobStatus   `json:"status"`
	Targets []domain.JobTarget `json:"targets"`
}

// GlossaryItem is one row of the glossaries listing; Terms is a count.
type GlossaryItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LocaleSrc string `json:"locale_src"`
	LocaleDst string `json:"locale_dst"`
	Terms     int    `json:"terms"`
}

// Download is a resolved output document or zip bundle.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// coerceMetric turns a stored text value back into a number when it parses
// as one; values with a dot become floats, bare digits become ints.
func coerceMetric(v string) any {
	if strings.Contains(v, ".") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return v
}
