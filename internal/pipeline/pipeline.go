package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"doctrans/internal/docx"
	"doctrans/internal/glossary"
	"doctrans/internal/storage"
)

// batchSize caps how many paragraphs go to the provider in one request.
const batchSize = 50

// Translator is the slice of the provider gateway the pipeline needs.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// Pipeline runs one document through translation and glossary enforcement:
// read the source blob, translate top-level paragraphs in batches, apply
// glossary substitutions, write the output blob. Table cell text is glossary
// enforced but not translated.
type Pipeline struct {
	blobs      storage.BlobStore
	translator Translator
}

// New builds a pipeline over the given blob store and translator.
func New(blobs storage.BlobStore, translator Translator) *Pipeline {
	return &Pipeline{blobs: blobs, translator: translator}
}

// Run translates the document at inKey into targetLang and stores the result
// at outKey. The returned metrics are string valued; numeric coercion is the
// reader's concern.
func (p *Pipeline) Run(ctx context.Context, inKey, outKey string, terms *glossary.Mapping, sourceLang, targetLang string) (map[string]string, error) {
	rc, err := p.blobs.Open(ctx, inKey)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	doc, err := docx.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	paras := doc.Paragraphs()
	texts := make([]string, 0, len(paras))
	for _, para := range paras {
		texts = append(texts, para.Text())
	}

	translated := make([]string, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := p.translator.Translate(ctx, texts[i:end], sourceLang, targetLang)
		if err != nil {
			return nil, fmt.Errorf("translate paragraphs %d..%d: %w", i, end, err)
		}
		translated = append(translated, chunk...)
	}
	if len(translated) != len(texts) {
		return nil, fmt.Errorf("translator returned %d paragraphs for %d inputs", len(translated), len(texts))
	}

	counts := glossary.Counts{}
	for i, para := range paras {
		para.SetText(glossary.Apply(translated[i], terms, counts))
	}
	for _, table := range doc.Tables() {
		for _, cell := range table.Cells() {
			for _, para := range cell.Paragraphs() {
				for _, run := range para.Runs() {
					run.SetText(glossary.Apply(run.Text(), terms, counts))
				}
			}
		}
	}

	out, err := doc.Save()
	if err != nil {
		return nil, fmt.Errorf("assemble output document: %w", err)
	}
	if err := p.blobs.Save(ctx, outKey, bytes.NewReader(out), int64(len(out))); err != nil {
		return nil, fmt.Errorf("store output document: %w", err)
	}

	metrics := map[string]string{
		"paragraphs":     strconv.Itoa(len(paras)),
		"source_lang":    sourceLang,
		"target_lang":    targetLang,
		"glossary_terms": strconv.Itoa(len(counts)),
	}
	for src, n := range counts {
		metrics["replacements."+src] = strconv.Itoa(n)
	}
	return metrics, nil
}
