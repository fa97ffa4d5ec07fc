package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o-mini"
	// openAISeparator splits the batched items inside one completion.
	openAISeparator = "\n----\n"
)

// OpenAI translates by prompting a chat-completion model with the whole
// batch joined by a separator line.
type OpenAI struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewOpenAI builds the provider; an empty model falls back to the default.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{apiKey: apiKey, model: model, url: defaultOpenAIURL, client: newHTTPClient()}
}

func (o *OpenAI) Name() string { return "openai" }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	system := fmt.Sprintf(
		"You are a professional translator. Translate the user text from %s to %s. "+
			"Keep meaning, tone and placeholders. "+
			"Return ONLY the translations, one per block, preserving order. "+
			"Use the separator line exactly as '----' between items.",
		sourceLang, targetLang,
	)
	payload, err := json.Marshal(openAIRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: strings.Join(texts, openAISeparator)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("encode openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed openAIResponse
		if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
			return nil, &ProviderError{Provider: o.Name(), Status: resp.StatusCode, Message: "unparseable completion"}
		}
		parts := strings.Split(parsed.Choices[0].Message.Content, openAISeparator)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		if len(out) != len(texts) {
			return nil, &ProviderError{Provider: o.Name(), Status: resp.StatusCode, Message: "response item count mismatch"}
		}
		return out, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ProviderError{Provider: o.Name(), Status: resp.StatusCode, Message: string(body), Quota: true}
	default:
		return nil, &ProviderError{Provider: o.Name(), Status: resp.StatusCode, Message: string(body)}
	}
}
