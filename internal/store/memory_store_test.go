package store

import (
	"testing"
	"time"

	"doctrans/pkg/domain"
)

func seedJob(t *testing.T, s *MemoryStore, id, filename string, updated time.Time) {
	t.Helper()
	job := domain.Job{ID: id, Status: domain.JobProcessing, SourceLang: "pt-BR", TargetLang: "en-US", CreatedAt: updated, UpdatedAt: updated}
	file := domain.JobFile{ID: id + "-f", JobID: id, Filename: filename, InputPath: "jobs/" + id + "/in.docx", CreatedAt: updated}
	targets := []domain.JobTarget{
		{ID: id + "-t0", JobID: id, TargetLang: "en-US", Status: domain.TargetProcessing, Position: 0},
	}
	if err := s.CreateJob(job, file, targets); err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func TestListJobsFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedJob(t, s, "aaa111", "relatorio.docx", base)
	seedJob(t, s, "bbb222", "contrato.docx", base.Add(time.Hour))
	seedJob(t, s, "ccc333", "relatorio-final.docx", base.Add(2*time.Hour))

	jobs, total, err := s.ListJobs("relatorio", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(jobs) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(jobs))
	}
	if jobs[0].ID != "ccc333" || jobs[1].ID != "aaa111" {
		t.Fatalf("order = %s, %s", jobs[0].ID, jobs[1].ID)
	}

	jobs, total, err = s.ListJobs("bb2", 1, 10)
	if err != nil || total != 1 || jobs[0].ID != "bbb222" {
		t.Fatalf("id filter: total=%d err=%v", total, err)
	}
}

func TestListJobsPaging(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedJob(t, s, string(rune('a'+i))+"-job", "doc.docx", base.Add(time.Duration(i)*time.Minute))
	}
	jobs, total, err := s.ListJobs("", 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(jobs) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(jobs))
	}
	jobs, _, err = s.ListJobs("", 4, 2)
	if err != nil || len(jobs) != 0 {
		t.Fatalf("out of range page should be empty, got %d", len(jobs))
	}
}

func TestTargetsOrderedByPosition(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	job := domain.Job{ID: "j1", Status: domain.JobProcessing, CreatedAt: now, UpdatedAt: now}
	file := domain.JobFile{ID: "f1", JobID: "j1", Filename: "in.docx"}
	targets := []domain.JobTarget{
		{ID: "t2", JobID: "j1", TargetLang: "es", Status: domain.TargetProcessing, Position: 1},
		{ID: "t1", JobID: "j1", TargetLang: "en-US", Status: domain.TargetProcessing, Position: 0},
		{ID: "t3", JobID: "j1", TargetLang: "fr", Status: domain.TargetProcessing, Position: 2},
	}
	if err := s.CreateJob(job, file, targets); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.ListTargets("j1")
	if err != nil {
		t.Fatalf("list targets: %v", err)
	}
	langs := []string{got[0].TargetLang, got[1].TargetLang, got[2].TargetLang}
	if langs[0] != "en-US" || langs[1] != "es" || langs[2] != "fr" {
		t.Fatalf("order = %v", langs)
	}
}

func TestDeleteJobCascades(t *testing.T) {
	s := NewMemoryStore()
	seedJob(t, s, "j1", "in.docx", time.Now().UTC())
	if err := s.AddMetric(domain.Metric{ID: "m1", JobID: "j1", Key: "paragraphs", Value: "3"}); err != nil {
		t.Fatalf("add metric: %v", err)
	}
	if err := s.DeleteJob("j1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetJob("j1"); ok {
		t.Fatalf("job survived delete")
	}
	if _, ok, _ := s.GetJobFile("j1"); ok {
		t.Fatalf("file survived delete")
	}
	if targets, _ := s.ListTargets("j1"); len(targets) != 0 {
		t.Fatalf("targets survived delete")
	}
	if metrics, _ := s.ListMetrics("j1"); len(metrics) != 0 {
		t.Fatalf("metrics survived delete")
	}
}

func TestSaveTermUpsertKeepsPosition(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveTerm(domain.GlossaryTerm{ID: "t1", GlossaryID: "g1", Src: "juros", Dst: "interest", Position: 0}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveTerm(domain.GlossaryTerm{ID: "t2", GlossaryID: "g1", Src: "multa", Dst: "fine", Position: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveTerm(domain.GlossaryTerm{ID: "t3", GlossaryID: "g1", Src: "juros", Dst: "interest rate", Position: 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	terms, err := s.ListTerms("g1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(terms))
	}
	if terms[0].Src != "juros" || terms[0].Dst != "interest rate" || terms[0].Position != 0 {
		t.Fatalf("upsert changed position or missed dst: %+v", terms[0])
	}
}

func TestPasswordResetLifecycle(t *testing.T) {
	s := NewMemoryStore()
	exp := time.Now().Add(time.Hour).UTC()
	if err := s.SavePasswordReset(domain.PasswordReset{ID: "r1", UserID: "u1", Token: "tok", ExpiresAt: exp}); err != nil {
		t.Fatalf("save: %v", err)
	}
	r, ok, err := s.GetPasswordResetByToken("tok")
	if err != nil || !ok || r.UserID != "u1" || r.UsedAt != nil {
		t.Fatalf("lookup: %+v, %v, %v", r, ok, err)
	}
	used := time.Now().UTC()
	if err := s.MarkPasswordResetUsed("r1", used); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	r, _, _ = s.GetPasswordResetByToken("tok")
	if r.UsedAt == nil || !r.UsedAt.Equal(used) {
		t.Fatalf("used_at not persisted: %+v", r)
	}
}

func TestGetUserByEmailFoldsCase(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveUser(domain.User{ID: "u1", Name: "Ana", Email: "Ana@Example.com", PasswordHash: "x", IsActive: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	u, ok, err := s.GetUserByEmail("ana@example.com")
	if err != nil || !ok || u.ID != "u1" {
		t.Fatalf("lookup: %+v, %v, %v", u, ok, err)
	}
	if _, ok, _ := s.GetUserByEmail("other@example.com"); ok {
		t.Fatalf("unknown email must not match")
	}
}

func TestJobModelKeepsTitle(t *testing.T) {
	now := time.Now().UTC()
	job := domain.Job{ID: "j1", Title: "contrato.docx", Status: domain.JobDone, SourceLang: "pt-BR", TargetLang: "en-US", CreatedAt: now, UpdatedAt: now}
	got := jobFromModel(jobToModel(job))
	if got.Title != "contrato.docx" {
		t.Fatalf("title dropped in mapping: %+v", got)
	}
}
