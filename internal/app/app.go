package app

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"doctrans/internal/glossary"
	"doctrans/internal/storage"
	"doctrans/internal/store"
	"doctrans/internal/usertoken"
	"doctrans/internal/util"
	"doctrans/pkg/auth"
	"doctrans/pkg/domain"
)

const (
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	zipContentType  = "application/zip"

	defaultSourceLang = "pt-BR"
	resetTokenTTL     = 30 * time.Minute
)

// Runner is the translation pipeline as the orchestrator sees it.
type Runner interface {
	Run(ctx context.Context, inKey, outKey string, terms *glossary.Mapping, sourceLang, targetLang string) (map[string]string, error)
}

// App owns the job, glossary and account workflows on top of the store,
// the blob store and the translation pipeline.
type App struct {
	store  store.Store
	blobs  storage.BlobStore
	runner Runner
	tokens *usertoken.Manager
}

// New wires the orchestrator.
func New(st store.Store, blobs storage.BlobStore, runner Runner, tokens *usertoken.Manager) *App {
	return &App{store: st, blobs: blobs, runner: runner, tokens: tokens}
}

// ---- accounts ----

// Login checks credentials and issues an access token.
func (a *App) Login(email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{}, validationf("missing credentials")
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !user.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}
	token, exp, err := a.tokens.Issue(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{
		Token:     token,
		ExpiresAt: exp,
		User:      &UserView{ID: user.ID, Name: user.Name, Email: user.Email},
	}, nil
}

// Refresh issues a fresh token for an already authenticated user.
func (a *App) Refresh(userID string) (LoginResult, error) {
	token, exp, err := a.tokens.Issue(userID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: exp}, nil
}

// Me returns the authenticated user's public view.
func (a *App) Me(userID string) (UserView, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return UserView{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return UserView{}, ErrNotFound
	}
	return UserView{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// ForgotPassword creates a single-use reset token for the account. To avoid
// revealing whether an email is registered it reports success either way;
// the returned token is empty when no account matched.
func (a *App) ForgotPassword(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return "", nil
	}
	reset := domain.PasswordReset{
		ID:        util.NewID(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}
	if err := a.store.SavePasswordReset(reset); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}
	slog.Info("password reset token issued", "user_id", user.ID)
	return reset.Token, nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (a *App) ResetPassword(token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return validationf("invalid")
	}
	reset, ok, err := a.store.GetPasswordResetByToken(token)
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !ok || reset.UsedAt != nil || reset.ExpiresAt.Before(time.Now().UTC()) {
		return validationf("invalid or expired")
	}
	user, ok, err := a.store.GetUserByID(reset.UserID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return validationf("invalid or expired")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return a.store.MarkPasswordResetUsed(reset.ID, time.Now().UTC())
}

// ---- glossaries ----

// CreateGlossary registers an empty glossary for a locale pair.
func (a *App) CreateGlossary(name, localeSrc, localeDst, createdBy string) (domain.Glossary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Glossary{}, validationf("name is required")
	}
	g := domain.Glossary{
		ID:        util.NewID(),
		Name:      name,
		LocaleSrc: strings.TrimSpace(localeSrc),
		LocaleDst: strings.TrimSpace(localeDst),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveGlossary(g); err != nil {
		return domain.Glossary{}, fmt.Errorf("save glossary: %w", err)
	}
	return g, nil
}

// GetGlossary returns a glossary with its terms in insertion order.
func (a *App) GetGlossary(id string) (domain.Glossary, error) {
	g, ok, err := a.store.GetGlossary(id)
	if err != nil {
		return domain.Glossary{}, fmt.Errorf("lookup glossary: %w", err)
	}
	if !ok {
		return domain.Glossary{}, ErrNotFound
	}
	terms, err := a.store.ListTerms(id)
	if err != nil {
		return domain.Glossary{}, fmt.Errorf("list terms: %w", err)
	}
	g.Terms = terms
	return g, nil
}

// ListGlossaries returns all glossaries with their term counts.
func (a *App) ListGlossaries() ([]GlossaryItem, error) {
	glossaries, err := a.store.ListGlossaries()
	if err != nil {
		return nil, fmt.Errorf("list glossaries: %w", err)
	}
	items := make([]GlossaryItem, 0, len(glossaries))
	for _, g := range glossaries {
		terms, err := a.store.ListTerms(g.ID)
		if err != nil {
			return nil, fmt.Errorf("list terms: %w", err)
		}
		items = append(items, GlossaryItem{
			ID:        g.ID,
			Name:      g.Name,
			LocaleSrc: g.LocaleSrc,
			LocaleDst: g.LocaleDst,
			Terms:     len(terms),
		})
	}
	return items, nil
}

// DeleteGlossary removes a glossary and its terms.
func (a *App) DeleteGlossary(id string) error {
	if _, ok, err := a.store.GetGlossary(id); err != nil {
		return fmt.Errorf("lookup glossary: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	return a.store.DeleteGlossary(id)
}

// AddTerm appends or updates one src→dst term.
func (a *App) AddTerm(glossaryID, src, dst, notes string) (domain.GlossaryTerm, error) {
	src = strings.TrimSpace(src)
	dst = strings.TrimSpace(dst)
	if src == "" || dst == "" {
		return domain.GlossaryTerm{}, validationf("src and dst are required")
	}
	if _, ok, err := a.store.GetGlossary(glossaryID); err != nil {
		return domain.GlossaryTerm{}, fmt.Errorf("lookup glossary: %w", err)
	} else if !ok {
		return domain.GlossaryTerm{}, ErrNotFound
	}
	existing, err := a.store.ListTerms(glossaryID)
	if err != nil {
		return domain.GlossaryTerm{}, fmt.Errorf("list terms: %w", err)
	}
	term := domain.GlossaryTerm{
		ID:         util.NewID(),
		GlossaryID: glossaryID,
		Src:        src,
		Dst:        dst,
		Notes:      notes,
		Position:   len(existing),
	}
	if err := a.store.SaveTerm(term); err != nil {
		return domain.GlossaryTerm{}, fmt.Errorf("save term: %w", err)
	}
	return term, nil
}

// DeleteTerm removes one term from a glossary.
func (a *App) DeleteTerm(glossaryID, termID string) error {
	terms, err := a.store.ListTerms(glossaryID)
	if err != nil {
		return fmt.Errorf("list terms: %w", err)
	}
	for _, t := range terms {
		if t.ID == termID {
			return a.store.DeleteTerm(termID)
		}
	}
	return ErrNotFound
}

// ImportGlossaryCSV upserts terms from a CSV with src and dst columns and
// returns the glossary's term count afterwards. Rows missing either column
// are skipped.
func (a *App) ImportGlossaryCSV(glossaryID string, r io.Reader) (int, error) {
	if _, ok, err := a.store.GetGlossary(glossaryID); err != nil {
		return 0, fmt.Errorf("lookup glossary: %w", err)
	} else if !ok {
		return 0, ErrNotFound
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return 0, validationf("csv required")
	}
	srcCol, dstCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "src":
			srcCol = i
		case "dst":
			dstCol = i
		}
	}
	if srcCol < 0 || dstCol < 0 {
		return 0, validationf("csv must have src and dst columns")
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, validationf("malformed csv")
		}
		if srcCol >= len(record) || dstCol >= len(record) {
			continue
		}
		src := strings.TrimSpace(record[srcCol])
		dst := strings.TrimSpace(record[dstCol])
		if src == "" || dst == "" {
			continue
		}
		if _, err := a.AddTerm(glossaryID, src, dst, ""); err != nil {
			return 0, err
		}
	}
	terms, err := a.store.ListTerms(glossaryID)
	if err != nil {
		return 0, fmt.Errorf("list terms: %w", err)
	}
	return len(terms), nil
}

// ---- jobs ----

// CreateJobParams carries everything the upload handler extracted.
type CreateJobParams struct {
	Filename    string
	File        io.Reader
	Size        int64
	SourceLang  string
	TargetLangs []string
	GlossaryID  string
	UserID      string
}

// CreateJob validates the request, persists the job records, runs the
// pipeline once per target and returns the materialized outcome. One
// target's failure never prevents the remaining targets from running.
func (a *App) CreateJob(ctx context.Context, p CreateJobParams) (CreateJobResult, error) {
	sourceLang := strings.TrimSpace(p.SourceLang)
	if sourceLang == "" {
		sourceLang = defaultSourceLang
	}
	var langs []string
	seen := make(map[string]struct{})
	for _, raw := range p.TargetLangs {
		lang := strings.TrimSpace(raw)
		if lang == "" || lang == sourceLang {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		langs = append(langs, lang)
	}
	if len(langs) == 0 {
		return CreateJobResult{}, validationf("no valid destination: pick languages different from the source")
	}

	now := time.Now().UTC()
	jobID := util.NewID()
	filename := util.SafeFilename(p.Filename)
	inKey := fmt.Sprintf("uploads/%s_%s", jobID, filename)

	if err := a.blobs.Save(ctx, inKey, p.File, p.Size); err != nil {
		return CreateJobResult{}, fmt.Errorf("store upload: %w", err)
	}

	job := domain.Job{
		ID:         jobID,
		Title:      filename,
		Status:     domain.JobProcessing,
		SourceLang: sourceLang,
		TargetLang: strings.Join(langs, ","),
		GlossaryID: p.GlossaryID,
		CreatedBy:  p.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	file := domain.JobFile{
		ID:        util.NewID(),
		JobID:     jobID,
		Filename:  filename,
		InputPath: inKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	targets := make([]domain.JobTarget, 0, len(langs))
	for i, lang := range langs {
		targets = append(targets, domain.JobTarget{
			ID:         util.NewID(),
			JobID:      jobID,
			TargetLang: lang,
			Status:     domain.TargetProcessing,
			Position:   i,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := a.store.CreateJob(job, file, targets); err != nil {
		return CreateJobResult{}, fmt.Errorf("persist job: %w", err)
	}

	terms := a.loadGlossary(p.GlossaryID)

	var failed []string
	for i := range targets {
		t := &targets[i]
		outKey := fmt.Sprintf("outputs/%s_%s_%s", jobID, t.TargetLang, filename)
		metrics, err := a.runner.Run(ctx, inKey, outKey, terms, sourceLang, t.TargetLang)
		t.UpdatedAt = time.Now().UTC()
		if err != nil {
			t.Status = domain.TargetFailed
			t.Error = err.Error()
			failed = append(failed, t.TargetLang)
			slog.Error("target failed", "job_id", jobID, "lang", t.TargetLang, "error", err)
		} else {
			t.Status = domain.TargetDone
			t.OutputPath = outKey
			for k, v := range metrics {
				if err := a.store.AddMetric(domain.Metric{
					ID:        util.NewID(),
					JobID:     jobID,
					Key:       k,
					Value:     v,
					CreatedAt: time.Now().UTC(),
				}); err != nil {
					slog.Error("record metric", "job_id", jobID, "key", k, "error", err)
				}
			}
		}
		if err := a.store.UpdateTarget(*t); err != nil {
			return CreateJobResult{}, fmt.Errorf("persist target: %w", err)
		}
	}

	status := aggregateStatus(targets)
	if err := a.store.UpdateJobStatus(jobID, status, time.Now().UTC()); err != nil {
		return CreateJobResult{}, fmt.Errorf("persist job status: %w", err)
	}

	return CreateJobResult{
		ID:          jobID,
		Title:       filename,
		Status:      status,
		SourceLang:  sourceLang,
		TargetLangs: langs,
		Targets:     targets,
		Errors:      failed,
	}, nil
}

// loadGlossary fetches the term mapping; a missing or broken glossary is
// treated as empty so a bad reference never blocks the job.
func (a *App) loadGlossary(glossaryID string) *glossary.Mapping {
	mapping := glossary.NewMapping()
	if glossaryID == "" {
		return mapping
	}
	terms, err := a.store.ListTerms(glossaryID)
	if err != nil {
		slog.Warn("glossary lookup failed, running without it", "glossary_id", glossaryID, "error", err)
		return mapping
	}
	for _, t := range terms {
		mapping.Add(t.Src, t.Dst)
	}
	return mapping
}

// GetJob returns the job detail with targets and coerced metrics.
func (a *App) GetJob(id string) (JobDetail, error) {
	item, err := a.jobItem(id)
	if err != nil {
		return JobDetail{}, err
	}
	rows, err := a.store.ListMetrics(id)
	if err != nil {
		return JobDetail{}, fmt.Errorf("list metrics: %w", err)
	}
	metrics := make(map[string]any, len(rows))
	for _, m := range rows {
		metrics[m.Key] = coerceMetric(m.Value)
	}
	return JobDetail{JobItem: item, Metrics: metrics}, nil
}

func (a *App) jobItem(id string) (JobItem, error) {
	job, ok, err := a.store.GetJob(id)
	if err != nil {
		return JobItem{}, fmt.Errorf("lookup job: %w", err)
	}
	if !ok {
		return JobItem{}, ErrNotFound
	}
	title := job.Title
	if file, ok, err := a.store.GetJobFile(id); err != nil {
		return JobItem{}, fmt.Errorf("lookup job file: %w", err)
	} else if ok {
		title = file.Filename
	}
	targets, err := a.store.ListTargets(id)
	if err != nil {
		return JobItem{}, fmt.Errorf("list targets: %w", err)
	}
	if targets == nil {
		targets = []domain.JobTarget{}
	}
	return JobItem{
		ID:         job.ID,
		Title:      title,
		Status:     job.Status,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		Targets:    targets,
		UpdatedAt:  job.UpdatedAt,
	}, nil
}

// ListJobs returns a page of jobs, newest first. The page defaults to 1 and
// the page size to 10, clamped to [1,100].
func (a *App) ListJobs(q string, page, pageSize int) (JobList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	jobs, total, err := a.store.ListJobs(strings.TrimSpace(q), page, pageSize)
	if err != nil {
		return JobList{}, fmt.Errorf("list jobs: %w", err)
	}
	items := make([]JobItem, 0, len(jobs))
	for _, j := range jobs {
		item, err := a.jobItem(j.ID)
		if err != nil {
			return JobList{}, err
		}
		items = append(items, item)
	}
	return JobList{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListTargets returns a job's targets with the derived status.
func (a *App) ListTargets(jobID string) (TargetList, error) {
	job, ok, err := a.store.GetJob(jobID)
	if err != nil {
		return TargetList{}, fmt.Errorf("lookup job: %w", err)
	}
	if !ok {
		return TargetList{}, ErrNotFound
	}
	targets, err := a.store.ListTargets(jobID)
	if err != nil {
		return TargetList{}, fmt.Errorf("list targets: %w", err)
	}
	if targets == nil {
		targets = []domain.JobTarget{}
	}
	return TargetList{
		JobID:   jobID,
		Status:  derivedStatus(targets, job.Status),
		Targets: targets,
	}, nil
}

// Download resolves a job's output. With a language it returns that single
// target's document; without one it returns the lone finished output, or a
// zip of all finished outputs when there is more than one.
func (a *App) Download(ctx context.Context, jobID, lang string) (Download, error) {
	if _, ok, err := a.store.GetJob(jobID); err != nil {
		return Download{}, fmt.Errorf("lookup job: %w", err)
	} else if !ok {
		return Download{}, ErrNotFound
	}

	if lang = strings.TrimSpace(lang); lang != "" {
		target, ok, err := a.store.GetTargetByLang(jobID, lang)
		if err != nil {
			return Download{}, fmt.Errorf("lookup target: %w", err)
		}
		if !ok || target.Status != domain.TargetDone || target.OutputPath == "" {
			return Download{}, ErrNotReady
		}
		return a.readOutput(ctx, target.OutputPath)
	}

	targets, err := a.store.ListTargets(jobID)
	if err != nil {
		return Download{}, fmt.Errorf("list targets: %w", err)
	}
	var ready []domain.JobTarget
	for _, t := range targets {
		if t.Status != domain.TargetDone || t.OutputPath == "" {
			continue
		}
		ok, err := a.blobs.Exists(ctx, t.OutputPath)
		if err != nil {
			return Download{}, fmt.Errorf("check output: %w", err)
		}
		if ok {
			ready = append(ready, t)
		}
	}
	if len(ready) == 0 {
		return Download{}, ErrNotReady
	}
	if len(ready) == 1 {
		return a.readOutput(ctx, ready[0].OutputPath)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, t := range ready {
		data, err := a.readOutput(ctx, t.OutputPath)
		if err != nil {
			return Download{}, err
		}
		w, err := zw.Create(data.Filename)
		if err != nil {
			return Download{}, fmt.Errorf("build zip: %w", err)
		}
		if _, err := w.Write(data.Data); err != nil {
			return Download{}, fmt.Errorf("build zip: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return Download{}, fmt.Errorf("build zip: %w", err)
	}
	return Download{
		Filename:    fmt.Sprintf("job_%s_outputs.zip", jobID),
		ContentType: zipContentType,
		Data:        buf.Bytes(),
	}, nil
}

func (a *App) readOutput(ctx context.Context, key string) (Download, error) {
	rc, err := a.blobs.Open(ctx, key)
	if err != nil {
		return Download{}, ErrNotReady
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Download{}, fmt.Errorf("read output: %w", err)
	}
	return Download{
		Filename:    path.Base(key),
		ContentType: docxContentType,
		Data:        data,
	}, nil
}

// DeleteJob removes the job's rows and best-effort deletes its blobs,
// returning how many blobs were actually removed.
func (a *App) DeleteJob(ctx context.Context, jobID string) (int, error) {
	if _, ok, err := a.store.GetJob(jobID); err != nil {
		return 0, fmt.Errorf("lookup job: %w", err)
	} else if !ok {
		return 0, ErrNotFound
	}

	var keys []string
	if file, ok, err := a.store.GetJobFile(jobID); err != nil {
		return 0, fmt.Errorf("lookup job file: %w", err)
	} else if ok && file.InputPath != "" {
		keys = append(keys, file.InputPath)
	}
	targets, err := a.store.ListTargets(jobID)
	if err != nil {
		return 0, fmt.Errorf("list targets: %w", err)
	}
	for _, t := range targets {
		if t.OutputPath != "" {
			keys = append(keys, t.OutputPath)
		}
	}

	if err := a.store.DeleteJob(jobID); err != nil {
		return 0, fmt.Errorf("delete job: %w", err)
	}

	removed := 0
	for _, key := range keys {
		ok, err := a.blobs.Exists(ctx, key)
		if err != nil || !ok {
			continue
		}
		if err := a.blobs.Delete(ctx, key); err != nil {
			slog.Warn("blob delete failed", "key", key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
