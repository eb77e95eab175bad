package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/victornm/quesgenie/internal/casing"
)

const (
	defaultTimeout          = 120 * time.Second
	defaultMaxResponseBytes = 8 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxResponseBytes caps the response body read from the backend.
	MaxResponseBytes int64
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client calls the generation backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBytes   int64
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	maxBytes := c.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	return &Client{
		baseURL:    strings.TrimRight(c.BaseURL, "/"),
		httpClient: hc,
		maxBytes:   maxBytes,
	}
}

type generateTopicsRequest struct {
	ContentBase64 string `json:"content_base64"`
	Count         int    `json:"count"`
	ContentType   string `json:"content_type"`
}

type generateTopicsResponse struct {
	Topics []string `json:"topics"`
}

func (c *Client) GenerateTopics(ctx context.Context, text string) ([]string, error) {
	words := WordCount(text)
	req := generateTopicsRequest{
		ContentBase64: base64.StdEncoding.EncodeToString([]byte(text)),
		Count:         TopicCount(words),
		ContentType:   "text/plain",
	}

	slog.InfoContext(ctx, "generator: generating topics", "words", words, "count", req.Count)

	body, err := c.post(ctx, "/generate_topics", req)
	if err != nil {
		return nil, fmt.Errorf("generate topics: %w", err)
	}

	var resp generateTopicsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("generate topics: decode response: %w", err)
	}

	topics := make([]string, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("generate topics: backend returned no topics")
	}

	return topics, nil
}

type generateQuestionsRequest struct {
	TextBase64 string         `json:"text_base64"`
	Topics     []TopicRequest `json:"topics"`
	Count      int            `json:"count"`
}

func (c *Client) GenerateQuestions(ctx context.Context, req GenerateQuestionsRequest) ([]GeneratedQuestion, error) {
	r := generateQuestionsRequest{
		TextBase64: base64.StdEncoding.EncodeToString([]byte(req.Text)),
		Topics:     req.Topics,
		Count:      req.Count(),
	}

	slog.InfoContext(ctx, "generator: generating questions", "topics", len(r.Topics), "count", r.Count)

	body, err := c.post(ctx, "/generate_mcq_questions", r)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("generate questions: decode response: %w", err)
	}

	var resp struct {
		Questions []GeneratedQuestion `mapstructure:"questions"`
	}
	if err := decode(casing.ToCamel(raw), &resp); err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	return resp.Questions, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(body))
	}

	return stripFence(body), nil
}

// stripFence removes a ```json code fence some models wrap their answer in.
func stripFence(b []byte) []byte {
	s := bytes.TrimSpace(b)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}

	s = bytes.TrimPrefix(s, []byte("```json"))
	s = bytes.TrimPrefix(s, []byte("```"))
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}

func decode(in any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("mapstructure: %w", err)
	}

	if err := d.Decode(in); err != nil {
		return fmt.Errorf("mapstructure: %w", err)
	}
	return nil
}
