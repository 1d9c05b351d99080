package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/6000yuval/shopify-seo/internal/utils"
	"github.com/6000yuval/shopify-seo/pkg/catalog"
)

// Item is one field rewrite request: the instruction the pipeline built plus
// the mode tag it was built for.
type Item struct {
	Instruction string
	Mode        catalog.FieldMode
}

// ContentDraft is a structured long-form content object produced by the model.
type ContentDraft struct {
	Title           string
	BodyHTML        string
	Tags            []string
	Excerpt         string
	MetaDescription string
}

// Config controls how the transformer behaves.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Endpoint   string
	HTTPClient *http.Client
}

// Transformer is the text transformation gateway: batched text-in-text-out
// rewrites plus long-form content generation.
type Transformer interface {
	// TransformBatch returns exactly one rewritten string per input item, in
	// input order.
	TransformBatch(ctx context.Context, items []Item) ([]string, error)
	// GenerateContentSet produces count structured drafts around a topic.
	GenerateContentSet(ctx context.Context, topic, targetURL, imageURL string, count int) ([]ContentDraft, error)
}

const (
	defaultProvider = "openai"
	defaultModel    = "gpt-4.1-mini"
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
)

// NewTransformer builds a concrete Transformer based on the provided config.
func NewTransformer(cfg Config) (Transformer, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}

	switch cfg.Provider {
	case "openai":
		return newOpenAITransformer(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type openAITransformer struct {
	apiKey   string
	model    string
	endpoint string
	client   httpClient
}

func newOpenAITransformer(cfg Config) (*openAITransformer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("ai transformation requires an API key (set ai.api_key in config or OPENAI_API_KEY)")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	return &openAITransformer{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   client,
	}, nil
}

// TransformBatch sends all items in a single call and maps the ID-keyed
// response back onto input order. A missing or empty rewrite for any id fails
// the whole call rather than silently keeping the original.
func (t *openAITransformer) TransformBatch(ctx context.Context, items []Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	utils.Log.Debugf("[ai] transforming batch of %d fields", len(items))

	payload := rewriteInput{}
	for idx, item := range items {
		payload.Items = append(payload.Items, rewriteInputItem{
			ID:          idx,
			Mode:        string(item.Mode),
			Instruction: item.Instruction,
		})
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	content, err := t.chat(ctx, rewriteSystemPrompt, string(payloadJSON))
	if err != nil {
		return nil, err
	}

	var parsed rewriteOutput
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse AI response: %w", err)
	}

	byID := make(map[int]string, len(parsed.Items))
	for _, item := range parsed.Items {
		byID[item.ID] = strings.TrimSpace(item.Text)
	}

	out := make([]string, len(items))
	for idx := range items {
		text, ok := byID[idx]
		if !ok || text == "" {
			return nil, fmt.Errorf("%w: no rewrite for item %d", ErrEmptyResponse, idx)
		}
		out[idx] = text
	}
	return out, nil
}

// GenerateContentSet asks the model for count structured drafts. Drafts with
// no title or body are dropped; zero usable drafts is a hard failure.
func (t *openAITransformer) GenerateContentSet(ctx context.Context, topic, targetURL, imageURL string, count int) ([]ContentDraft, error) {
	if count <= 0 {
		count = 1
	}

	utils.Log.Debugf("[ai] generating %d content drafts for topic %q", count, topic)

	payload := contentInput{
		Topic:     topic,
		TargetURL: targetURL,
		ImageURL:  imageURL,
		Count:     count,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	content, err := t.chat(ctx, contentSystemPrompt, string(payloadJSON))
	if err != nil {
		return nil, err
	}

	var parsed contentOutput
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse AI response: %w", err)
	}

	var out []ContentDraft
	for _, p := range parsed.Posts {
		title := strings.TrimSpace(p.Title)
		body := strings.TrimSpace(p.BodyHTML)
		if title == "" || body == "" {
			continue
		}
		excerpt := strings.TrimSpace(p.Excerpt)
		if excerpt == "" {
			excerpt = ExcerptFromHTML(body, 160)
		}
		out = append(out, ContentDraft{
			Title:           title,
			BodyHTML:        body,
			Tags:            p.Tags,
			Excerpt:         excerpt,
			MetaDescription: strings.TrimSpace(p.MetaDescription),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable drafts for topic %q", ErrEmptyResponse, topic)
	}
	return out, nil
}

// chat performs one chat-completions call and returns the message content.
// HTTP status codes are classified into the package's error taxonomy so the
// pipeline can decide what to retry.
func (t *openAITransformer) chat(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	reqBody := openAIChatRequest{
		Model: t.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPayload},
		},
		Temperature:    0.2,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErrResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErrResp)
		msg := apiErrResp.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return "", fmt.Errorf("%w: %s", ErrRateLimited, msg)
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			return "", fmt.Errorf("%w: %s", ErrUnavailable, msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		default:
			return "", fmt.Errorf("ai request failed: %s", msg)
		}
	}

	var apiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}

	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

const rewriteSystemPrompt = `You rewrite e-commerce product fields.

For every item you receive, follow its instruction exactly:
- Respect every hard constraint in the instruction (forbidden words, length ceilings, formatting).
- Return plain text only unless the instruction asks for HTML.
- Never invent product facts that are not in the provided values.
- Never wrap the output in quotes or markdown fences.

Return ONLY JSON following this schema:
{
  "items": [
    {"id": 0, "text": "rewritten value"}
  ]
}

Every input id must appear exactly once with a non-empty text.`

const contentSystemPrompt = `You write SEO blog posts for an online store.

Given a topic, a target URL and an optional image URL, produce the requested
number of distinct posts. Each post must have:
- A compelling, search-friendly title under 70 characters.
- body_html: valid HTML (p, h2, h3, ul, li, a) of 500-900 words, naturally
  linking to the target URL once.
- 3-6 lowercase tags.
- excerpt: a 1-2 sentence hook.
- meta_description: under 160 characters.

Return ONLY JSON following this schema:
{
  "posts": [
    {"title": "", "body_html": "", "tags": [""], "excerpt": "", "meta_description": ""}
  ]
}`

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type rewriteInput struct {
	Items []rewriteInputItem `json:"items"`
}

type rewriteInputItem struct {
	ID          int    `json:"id"`
	Mode        string `json:"mode"`
	Instruction string `json:"instruction"`
}

type rewriteOutput struct {
	Items []rewriteOutputItem `json:"items"`
}

type rewriteOutputItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type contentInput struct {
	Topic     string `json:"topic"`
	TargetURL string `json:"target_url"`
	ImageURL  string `json:"image_url,omitempty"`
	Count     int    `json:"count"`
}

type contentOutput struct {
	Posts []contentOutputPost `json:"posts"`
}

type contentOutputPost struct {
	Title           string   `json:"title"`
	BodyHTML        string   `json:"body_html"`
	Tags            []string `json:"tags"`
	Excerpt         string   `json:"excerpt"`
	MetaDescription string   `json:"meta_description"`
}
