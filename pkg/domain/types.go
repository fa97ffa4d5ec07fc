package domain

import "time"

// JobStatus is the aggregate status persisted on a job. It is computed from
// the statuses of the job's targets once all of them reach a terminal state.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
	JobMixed      JobStatus = "mixed"
)

// TargetStatus is the per-language unit-of-work status.
type TargetStatus string

const (
	TargetQueued     TargetStatus = "queued"
	TargetProcessing TargetStatus = "processing"
	TargetDone       TargetStatus = "done"
	TargetFailed     TargetStatus = "failed"
)

// Terminal reports whether the target can no longer change state.
func (s TargetStatus) Terminal() bool {
	return s == TargetDone || s == TargetFailed
}

// Job is one translation request for one uploaded document across N target
// languages. TargetLang keeps the comma-joined list of requested languages as
// a compatibility view for listings; the targets are authoritative.
type Job struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     JobStatus `json:"status"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	GlossaryID string    `json:"glossary_id,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobFile is the single uploaded source document of a job. Immutable after
// creation except for Error.
type JobFile struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Filename   string    `json:"filename"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobTarget is one (job, target language) unit of pipeline work. Position
// preserves creation order so targets are processed and listed as submitted.
type JobTarget struct {
	ID         string       `json:"id"`
	JobID      string       `json:"job_id"`
	TargetLang string       `json:"lang"`
	Status     TargetStatus `json:"status"`
	OutputPath string       `json:"output_path,omitempty"`
	Error      string       `json:"error,omitempty"`
	Position   int          `json:"-"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Glossary is a named term set scoped to a locale pair.
type Glossary struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	LocaleSrc string         `json:"locale_src"`
	LocaleDst string         `json:"locale_dst"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Terms     []GlossaryTerm `json:"terms,omitempty"`
}

// GlossaryTerm maps one source term to one destination term. (GlossaryID,
// Src) is unique per glossary; Position preserves insertion order, which is
// also the substitution order during enforcement.
type GlossaryTerm struct {
	ID         string `json:"id"`
	GlossaryID string `json:"glossary_id"`
	Src        string `json:"src"`
	Dst        string `json:"dst"`
	Notes      string `json:"notes,omitempty"`
	Position   int    `json:"-"`
}

// Metric is a free-form observation recorded by a pipeline run. Values are
// stored as text and coerced to numbers on read when they parse.
type Metric struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// User owns glossaries and jobs by reference.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// PasswordReset is a single-use credential recovery token.
type PasswordReset struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
