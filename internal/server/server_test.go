package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"doctrans/internal/app"
	"doctrans/internal/glossary"
	"doctrans/internal/storage"
	"doctrans/internal/store"
	"doctrans/internal/usertoken"
	"doctrans/pkg/auth"
	"doctrans/pkg/domain"
)

type stubRunner struct {
	blobs storage.BlobStore
}

func (s *stubRunner) Run(ctx context.Context, _, outKey string, _ *glossary.Mapping, _, targetLang string) (map[string]string, error) {
	body := "translated " + targetLang
	if err := s.blobs.Save(ctx, outKey, strings.NewReader(body), int64(len(body))); err != nil {
		return nil, err
	}
	return map[string]string{"paragraphs": "1"}, nil
}

type env struct {
	srv   *httptest.Server
	token string
}

func newEnv(t *testing.T, cfgMod func(*Config)) *env {
	t.Helper()
	st := store.NewMemoryStore()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	tokens, err := usertoken.New(usertoken.Options{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	application := app.New(st, blobs, &stubRunner{blobs: blobs}, tokens)

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := st.SaveUser(domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com", PasswordHash: hash, IsActive: true}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	cfg := Config{App: application, Tokens: tokens}
	if cfgMod != nil {
		cfgMod(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	token, _, err := tokens.Issue("u1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &env{srv: srv, token: token}
}

func (e *env) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func multipartJob(t *testing.T, langs ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "contrato.docx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("fake docx bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_ = mw.WriteField("source_lang", "pt-BR")
	for _, lang := range langs {
		_ = mw.WriteField("target_langs", lang)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, nil)
	e.token = ""
	resp := e.do(t, http.MethodGet, "/healthz", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t, nil)
	e.token = ""
	resp := e.do(t, http.MethodGet, "/api/jobs", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	e.token = "not-a-token"
	resp = e.do(t, http.MethodGet, "/api/jobs", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginAndMe(t *testing.T) {
	e := newEnv(t, nil)
	e.token = ""
	body := strings.NewReader(`{"email":"ana@example.com","password":"s3cret"}`)
	resp := e.do(t, http.MethodPost, "/api/login", body, "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	res := decode[app.LoginResult](t, resp)
	if res.Token == "" || res.User == nil || res.User.Email != "ana@example.com" {
		t.Fatalf("login result = %+v", res)
	}

	e.token = res.Token
	resp = e.do(t, http.MethodGet, "/api/me", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	me := decode[app.UserView](t, resp)
	if me.ID != "u1" {
		t.Fatalf("me = %+v", me)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newEnv(t, nil)
	e.token = ""
	body := strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`)
	resp := e.do(t, http.MethodPost, "/api/login", body, "application/json")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestJobLifecycle(t *testing.T) {
	e := newEnv(t, nil)

	body, contentType := multipartJob(t, "en-US", "es")
	resp := e.do(t, http.MethodPost, "/api/jobs", body, contentType)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[app.CreateJobResult](t, resp)
	if created.Status != domain.JobDone || len(created.Targets) != 2 {
		t.Fatalf("created = %+v", created)
	}

	resp = e.do(t, http.MethodGet, "/api/jobs/"+created.ID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	detail := decode[app.JobDetail](t, resp)
	if detail.Title != "contrato.docx" || detail.Metrics["paragraphs"] != float64(1) {
		t.Fatalf("detail = %+v", detail)
	}

	resp = e.do(t, http.MethodGet, "/api/jobs?q=contrato", nil, "")
	list := decode[app.JobList](t, resp)
	if list.Total != 1 {
		t.Fatalf("list total = %d", list.Total)
	}

	resp = e.do(t, http.MethodGet, "/api/jobs/"+created.ID+"/targets", nil, "")
	targets := decode[app.TargetList](t, resp)
	if targets.Status != domain.JobDone || len(targets.Targets) != 2 {
		t.Fatalf("targets = %+v", targets)
	}

	resp = e.do(t, http.MethodGet, "/api/jobs/"+created.ID+"/download", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("two outputs should zip, content type = %q", ct)
	}
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/api/jobs/"+created.ID+"/download?lang=es", nil, "")
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(data) != "translated es" {
		t.Fatalf("download body = %q", data)
	}

	resp = e.do(t, http.MethodDelete, "/api/jobs/"+created.ID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	del := decode[map[string]any](t, resp)
	if del["removed_files"] != float64(3) {
		t.Fatalf("removed_files = %v", del["removed_files"])
	}

	resp = e.do(t, http.MethodGet, "/api/jobs/"+created.ID, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateJobValidation(t *testing.T) {
	e := newEnv(t, nil)

	// all targets equal the source language
	body, contentType := multipartJob(t, "pt-BR")
	resp := e.do(t, http.MethodPost, "/api/jobs", body, contentType)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// wrong extension
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = fw.Write([]byte("plain text"))
	_ = mw.WriteField("target_langs", "en-US")
	_ = mw.Close()
	resp = e.do(t, http.MethodPost, "/api/jobs", &buf, mw.FormDataContentType())
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("txt upload status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGlossaryEndpoints(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, http.MethodPost, "/api/glossaries",
		strings.NewReader(`{"name":"legal","locale_src":"pt-BR","locale_dst":"en-US"}`), "application/json")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	g := decode[domain.Glossary](t, resp)

	resp = e.do(t, http.MethodPost, "/api/glossaries/"+g.ID+"/terms",
		strings.NewReader(`{"src":"juros","dst":"interest"}`), "application/json")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("term status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "terms.csv")
	_, _ = fw.Write([]byte("src,dst\nrecurso,appeal\n"))
	_ = mw.Close()
	resp = e.do(t, http.MethodPost, "/api/glossaries/"+g.ID+"/import", &buf, mw.FormDataContentType())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	imported := decode[map[string]any](t, resp)
	if imported["terms"] != float64(2) {
		t.Fatalf("terms = %v", imported["terms"])
	}

	resp = e.do(t, http.MethodGet, "/api/glossaries/"+g.ID, nil, "")
	full := decode[domain.Glossary](t, resp)
	if len(full.Terms) != 2 {
		t.Fatalf("terms = %d", len(full.Terms))
	}

	resp = e.do(t, http.MethodGet, "/api/glossaries", nil, "")
	items := decode[[]app.GlossaryItem](t, resp)
	if len(items) != 1 || items[0].Terms != 2 {
		t.Fatalf("list = %+v", items)
	}

	resp = e.do(t, http.MethodDelete, "/api/glossaries/"+g.ID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/api/glossaries/"+g.ID, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginRateLimit(t *testing.T) {
	redis := miniredis.RunT(t)
	e := newEnv(t, func(cfg *Config) {
		cfg.RedisAddr = redis.Addr()
		cfg.LoginRatePerMinute = 2
	})
	e.token = ""

	for i := 0; i < 2; i++ {
		resp := e.do(t, http.MethodPost, "/api/login",
			strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`), "application/json")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := e.do(t, http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"ana@example.com","password":"s3cret"}`), "application/json")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("missing Retry-After")
	}
	resp.Body.Close()
}

func TestPasswordResetEndpoints(t *testing.T) {
	e := newEnv(t, nil)
	e.token = ""

	resp := e.do(t, http.MethodPost, "/api/forgot",
		strings.NewReader(`{"email":"ghost@example.com"}`), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot should not reveal accounts, status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/api/reset",
		strings.NewReader(`{"token":"bogus","password":"x"}`), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus reset status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListJobsPagingParams(t *testing.T) {
	e := newEnv(t, nil)
	for i := 0; i < 3; i++ {
		body, contentType := multipartJob(t, "en-US")
		resp := e.do(t, http.MethodPost, "/api/jobs", body, contentType)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d status = %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := e.do(t, http.MethodGet, fmt.Sprintf("/api/jobs?page=%d&page_size=%d", 2, 2), nil, "")
	list := decode[app.JobList](t, resp)
	if list.Total != 3 || len(list.Items) != 1 || list.Page != 2 || list.PageSize != 2 {
		t.Fatalf("list = total %d items %d page %d size %d", list.Total, len(list.Items), list.Page, list.PageSize)
	}
}
