package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultDeepLURL = "https://api.deepl.com/v2/translate"

// deeplSourceBases are the base language codes DeepL accepts as source.
var deeplSourceBases = map[string]struct{}{
	"BG": {}, "CS": {}, "DA": {}, "DE": {}, "EL": {}, "EN": {}, "ES": {},
	"ET": {}, "FI": {}, "FR": {}, "HU": {}, "ID": {}, "IT": {}, "JA": {},
	"KO": {}, "LT": {}, "LV": {}, "NB": {}, "NL": {}, "PL": {}, "PT": {},
	"RO": {}, "RU": {}, "SK": {}, "SL": {}, "SV": {}, "TR": {}, "UK": {},
	"ZH": {},
}

// deeplRegionalTargets are the regional variants DeepL accepts as target in
// addition to the bases.
var deeplRegionalTargets = map[string]struct{}{
	"EN-US": {}, "EN-GB": {}, "PT-PT": {}, "PT-BR": {},
}

// DeepL translates via the DeepL v2 form API.
type DeepL struct {
	apiKey string
	url    string
	client *http.Client
}

// NewDeepL builds the provider; an empty endpoint falls back to the public
// API URL.
func NewDeepL(apiKey, endpoint string) *DeepL {
	if endpoint == "" {
		endpoint = defaultDeepLURL
	}
	return &DeepL{apiKey: apiKey, url: endpoint, client: newHTTPClient()}
}

func (d *DeepL) Name() string { return "deepl" }

// normalizeLangs maps the application's canonical tags onto what DeepL
// accepts. Unsupported regional sources collapse to their base or to
// auto-detection (empty source); unsupported targets collapse to their base
// or to EN as the safe default.
func normalizeLangs(source, target string) (src, tgt string) {
	s := strings.ToUpper(strings.ReplaceAll(source, "_", "-"))
	t := strings.ToUpper(strings.ReplaceAll(target, "_", "-"))

	if s != "" {
		switch {
		case strings.HasPrefix(s, "EN"):
			s = "EN"
		case strings.HasPrefix(s, "PT"):
			s = "PT"
		case strings.Contains(s, "-"):
			s = strings.SplitN(s, "-", 2)[0]
		}
		if _, ok := deeplSourceBases[s]; !ok {
			s = "" // let DeepL autodetect
		}
	}

	if _, ok := deeplSourceBases[t]; !ok {
		if _, ok := deeplRegionalTargets[t]; !ok {
			if strings.Contains(t, "-") {
				t = strings.SplitN(t, "-", 2)[0]
			}
			if _, ok := deeplSourceBases[t]; !ok {
				t = "EN"
			}
		}
	}
	return s, t
}

type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (d *DeepL) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	src, tgt := normalizeLangs(sourceLang, targetLang)
	form := url.Values{}
	form.Set("auth_key", d.apiKey)
	form.Set("target_lang", tgt)
	if src != "" {
		form.Set("source_lang", src)
	}
	for _, t := range texts {
		form.Add("text", t)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build deepl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: d.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		// 456 is DeepL's quota-exceeded status.
		quota := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 456
		return nil, &ProviderError{Provider: d.Name(), Status: resp.StatusCode, Message: string(body), Quota: quota}
	}
	var parsed deeplResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Provider: d.Name(), Status: resp.StatusCode, Message: "unparseable response"}
	}
	out := make([]string, 0, len(parsed.Translations))
	for _, tr := range parsed.Translations {
		out = append(out, tr.Text)
	}
	if len(out) != len(texts) {
		return nil, &ProviderError{Provider: d.Name(), Status: resp.StatusCode, Message: "response item count mismatch"}
	}
	return out, nil
}
