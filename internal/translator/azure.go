package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/passadis/azure-a2a-translation/internal/version"
)

const apiVersion = "3.0"

// AzureClient calls the Azure AI Translator REST API (api-version 3.0).
type AzureClient struct {
	endpoint string
	key      string
	region   string
	http     *http.Client
}

// NewAzureClient builds a client for the given Translator resource.
// endpoint is the resource base URL, key the subscription key, region the
// resource region header value.
func NewAzureClient(endpoint, key, region string, timeout time.Duration) *AzureClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AzureClient{
		endpoint: trimSlash(endpoint),
		key:      key,
		region:   region,
		http:     &http.Client{Timeout: timeout},
	}
}

type translateResponse []struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

func (c *AzureClient) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	const op = "translate"

	q := url.Values{}
	q.Set("api-version", apiVersion)
	q.Set("to", targetLanguage)
	endpoint := c.endpoint + "/translate?" + q.Encode()

	body, err := json.Marshal([]map[string]string{{"text": text}})
	if err != nil {
		return "", &PermanentError{Op: op, Reason: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &PermanentError{Op: op, Reason: fmt.Sprintf("build request: %v", err)}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(op, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return "", err
	}

	var parsed translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed) == 0 || len(parsed[0].Translations) == 0 {
		return "", &PermanentError{Op: op, Reason: "provider returned no translations"}
	}
	return parsed[0].Translations[0].Text, nil
}

type languagesResponse struct {
	Translation map[string]struct {
		Name string `json:"name"`
	} `json:"translation"`
}

// Languages fetches the provider's accepted translation language codes.
func (c *AzureClient) Languages(ctx context.Context) ([]string, error) {
	const op = "languages"

	endpoint := c.endpoint + "/languages?api-version=" + apiVersion + "&scope=translation"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &PermanentError{Op: op, Reason: fmt.Sprintf("build request: %v", err)}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(op, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, err
	}

	var parsed languagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	codes := make([]string, 0, len(parsed.Translation))
	for code := range parsed.Translation {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (c *AzureClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-ClientTraceId", uuid.New().String())
	if c.key != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	}
	if c.region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", c.region)
	}
}

// classifyStatus splits provider HTTP statuses into the retry taxonomy.
// 408/429 and all 5xx are worth retrying; every other non-2xx status means
// the request itself is bad and a retry would fail the same way.
func classifyStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return &TransientError{Op: op, Status: status, Err: fmt.Errorf("provider returned status %d", status)}
	default:
		return &PermanentError{Op: op, Status: status, Reason: "provider rejected the request"}
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
