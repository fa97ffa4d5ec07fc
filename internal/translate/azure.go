package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const defaultAzureEndpoint = "https://api.cognitive.microsofttranslator.com"

// Azure translates via the Cognitive Services Translator v3 API.
type Azure struct {
	apiKey   string
	region   string
	endpoint string
	client   *http.Client
}

// NewAzure builds the provider; empty endpoint and region fall back to the
// public endpoint and eastus.
func NewAzure(apiKey, region, endpoint string) *Azure {
	if region == "" {
		region = "eastus"
	}
	if endpoint == "" {
		endpoint = defaultAzureEndpoint
	}
	return &Azure{apiKey: apiKey, region: region, endpoint: endpoint, client: newHTTPClient()}
}

func (a *Azure) Name() string { return "azure" }

type azureItem struct {
	Text string `json:"text"`
}

type azureResult struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (a *Azure) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	route := "/translate?api-version=3.0&to=" + url.QueryEscape(targetLang)
	if sourceLang != "" {
		route += "&from=" + url.QueryEscape(sourceLang)
	}
	items := make([]azureItem, 0, len(texts))
	for _, t := range texts {
		items = append(items, azureItem{Text: t})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode azure request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(a.endpoint, "/")+route, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build azure request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	req.Header.Set("Ocp-Apim-Subscription-Region", a.region)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ClientTraceId", uuid.NewString())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		quota := resp.StatusCode == http.StatusTooManyRequests
		return nil, &ProviderError{Provider: a.Name(), Status: resp.StatusCode, Message: string(body), Quota: quota}
	}
	var parsed []azureResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Status: resp.StatusCode, Message: "unparseable response"}
	}
	out := make([]string, 0, len(parsed))
	for _, item := range parsed {
		if len(item.Translations) == 0 {
			return nil, &ProviderError{Provider: a.Name(), Status: resp.StatusCode, Message: "missing translation in response"}
		}
		out = append(out, item.Translations[0].Text)
	}
	if len(out) != len(texts) {
		return nil, &ProviderError{Provider: a.Name(), Status: resp.StatusCode, Message: "response item count mismatch"}
	}
	return out, nil
}
