package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"doctrans/internal/docx"
	"doctrans/internal/glossary"
	"doctrans/internal/storage"
)

type fakeTranslator struct {
	calls   [][]string
	mapText func(string) string
	err     error
}

func (f *fakeTranslator) Translate(_ context.Context, texts []string, _, _ string) ([]string, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if f.mapText != nil {
			out = append(out, f.mapText(t))
		} else {
			out = append(out, t)
		}
	}
	return out, nil
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"_rels/.rels":         `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
		"word/document.xml":   documentXML,
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func docWith(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`
}

func setupBlobStore(t *testing.T, inKey string, data []byte) storage.BlobStore {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := fs.Save(context.Background(), inKey, bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	return fs
}

func outputParagraphs(t *testing.T, blobs storage.BlobStore, key string) []string {
	t.Helper()
	rc, err := blobs.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	doc, err := docx.Parse(data)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	return texts
}

func TestRunIdentityRoundTrip(t *testing.T) {
	src := buildDocx(t, docWith(para("primeiro")+para("segundo")))
	blobs := setupBlobStore(t, "in.docx", src)
	p := New(blobs, &fakeTranslator{})

	metrics, err := p.Run(context.Background(), "in.docx", "out.docx", glossary.NewMapping(), "pt-BR", "en-US")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := outputParagraphs(t, blobs, "out.docx")
	if len(got) != 2 || got[0] != "primeiro" || got[1] != "segundo" {
		t.Fatalf("paragraphs = %v", got)
	}
	if metrics["paragraphs"] != "2" || metrics["glossary_terms"] != "0" {
		t.Fatalf("metrics = %v", metrics)
	}
	if metrics["source_lang"] != "pt-BR" || metrics["target_lang"] != "en-US" {
		t.Fatalf("metrics langs = %v", metrics)
	}
}

func TestRunGlossaryAfterTranslation(t *testing.T) {
	src := buildDocx(t, docWith(para("juros altos")+para("the appeal")))
	blobs := setupBlobStore(t, "in.docx", src)
	p := New(blobs, &fakeTranslator{})

	terms := glossary.NewMapping(glossary.Term{Src: "juros", Dst: "interest"})
	metrics, err := p.Run(context.Background(), "in.docx", "out.docx", terms, "pt-BR", "en-US")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := outputParagraphs(t, blobs, "out.docx")
	if got[0] != "interest altos" || got[1] != "the appeal" {
		t.Fatalf("paragraphs = %v", got)
	}
	if metrics["paragraphs"] != "2" || metrics["glossary_terms"] != "1" {
		t.Fatalf("metrics = %v", metrics)
	}
	if metrics["replacements.juros"] != "1" {
		t.Fatalf("replacement count = %v", metrics)
	}
}

func TestRunTableCellsGlossaryOnly(t *testing.T) {
	table := `<w:tbl><w:tr><w:tc>` + para("taxa de juros") + `</w:tc></w:tr></w:tbl>`
	src := buildDocx(t, docWith(para("corpo")+table))
	blobs := setupBlobStore(t, "in.docx", src)
	tr := &fakeTranslator{}
	p := New(blobs, tr)

	terms := glossary.NewMapping(glossary.Term{Src: "juros", Dst: "interest"})
	if _, err := p.Run(context.Background(), "in.docx", "out.docx", terms, "pt-BR", "en-US"); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, call := range tr.calls {
		for _, text := range call {
			if strings.Contains(text, "taxa") {
				t.Fatalf("table cell text must not be sent to the translator: %v", call)
			}
		}
	}

	rc, err := blobs.Open(context.Background(), "out.docx")
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	doc, err := docx.Parse(data)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	cellText := doc.Tables()[0].Cells()[0].Paragraphs()[0].Text()
	if cellText != "taxa de interest" {
		t.Fatalf("cell text = %q", cellText)
	}
}

func TestRunBatchesPreserveOrder(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 120; i++ {
		body.WriteString(para(fmt.Sprintf("p%03d", i)))
	}
	src := buildDocx(t, docWith(body.String()))
	blobs := setupBlobStore(t, "in.docx", src)
	tr := &fakeTranslator{mapText: strings.ToUpper}
	p := New(blobs, tr)

	if _, err := p.Run(context.Background(), "in.docx", "out.docx", glossary.NewMapping(), "pt-BR", "en-US"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(tr.calls) != 3 || len(tr.calls[0]) != 50 || len(tr.calls[2]) != 20 {
		t.Fatalf("unexpected batching: %d calls", len(tr.calls))
	}
	got := outputParagraphs(t, blobs, "out.docx")
	for i, text := range got {
		want := strings.ToUpper(fmt.Sprintf("p%03d", i))
		if text != want {
			t.Fatalf("paragraph %d = %q, want %q", i, text, want)
		}
	}
}

func TestRunProviderFailureLeavesNoOutput(t *testing.T) {
	src := buildDocx(t, docWith(para("texto")))
	blobs := setupBlobStore(t, "in.docx", src)
	p := New(blobs, &fakeTranslator{err: errors.New("provider down")})

	if _, err := p.Run(context.Background(), "in.docx", "out.docx", glossary.NewMapping(), "pt-BR", "en-US"); err == nil {
		t.Fatalf("expected pipeline failure")
	}
	ok, err := blobs.Exists(context.Background(), "out.docx")
	if err != nil || ok {
		t.Fatalf("output must not exist after failure: %v, %v", ok, err)
	}
}
