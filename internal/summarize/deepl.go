package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Translator converts a summary into another language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// TargetLanguage is one entry from the translation provider's language list.
type TargetLanguage struct {
	Code string `json:"language"`
	Name string `json:"name"`
}

// DeepLClient talks to a DeepL-compatible translation API.
type DeepLClient struct {
	baseURL string
	authKey string
	client  *http.Client
}

// NewDeepL creates a translation client for the given API base URL,
// e.g. https://api-free.deepl.com/v2.
func NewDeepL(baseURL, authKey string) *DeepLClient {
	return &DeepLClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		authKey: authKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *DeepLClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(targetLang))

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/translate",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.authKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: status %d", resp.StatusCode)
	}

	var result struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding translate response: %w", err)
	}
	if len(result.Translations) == 0 {
		return "", nil
	}
	return result.Translations[0].Text, nil
}

// TargetLanguages returns the provider's supported target languages, used to
// seed the language table.
func (d *DeepLClient) TargetLanguages(ctx context.Context) ([]TargetLanguage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", d.baseURL+"/languages?type=target", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.authKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("languages request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("languages: status %d", resp.StatusCode)
	}

	var langs []TargetLanguage
	if err := json.NewDecoder(resp.Body).Decode(&langs); err != nil {
		return nil, fmt.Errorf("decoding languages response: %w", err)
	}
	return langs, nil
}
