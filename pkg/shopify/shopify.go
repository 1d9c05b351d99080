package shopify

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/6000yuval/shopify-seo/internal/utils"
	"github.com/6000yuval/shopify-seo/pkg/catalog"
)

const (
	apiVersion     = "2024-01"
	requestTimeout = 30 * time.Second
	pageSize       = 250

	// extraOptionIDs carries option group ids through the workspace so a
	// renamed option can be matched back to its remote sub-resource on push.
	extraOptionIDs = "option_ids"
)

// ErrNotConnected is returned when a client is used without credentials.
var ErrNotConnected = errors.New("shopify: not connected")

// Config holds the store credentials.
type Config struct {
	// Domain is the shop domain. A bare handle is expanded to
	// <handle>.myshopify.com; schemes and paths are stripped.
	Domain string
	// Token is the Admin API access token.
	Token      string
	HTTPClient *http.Client
}

// Blog is a content container on the remote store.
type Blog struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// ArticleInput is the payload for creating one content item.
type ArticleInput struct {
	Title          string
	BodyHTML       string
	Tags           []string
	Excerpt        string
	ImageURL       string
	SEOTitle       string
	SEODescription string
}

// Article is a created content item.
type Article struct {
	ID string `json:"id"`
}

// Client is the remote catalog gateway: fetch products and blogs, push a
// single product's edits, create articles. Every call is bounded by a 30s
// timeout; HTTP-level retries are handled by retryablehttp.
type Client struct {
	domain string
	token  string
	client *retryablehttp.Client
}

// New builds a client, normalizing the shop domain.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("shopify: access token is required")
	}
	domain, err := NormalizeShopDomain(cfg.Domain)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = stdlog.New(io.Discard, "", 0)
	retryClient.RetryMax = 3
	retryClient.HTTPClient.Timeout = requestTimeout
	if cfg.HTTPClient != nil {
		retryClient.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		domain: domain,
		token:  strings.TrimSpace(cfg.Token),
		client: retryClient,
	}, nil
}

// NormalizeShopDomain turns operator input into a canonical shop host:
// scheme and path stripped, bare handles expanded to <handle>.myshopify.com,
// and the result checked for a valid registrable domain.
func NormalizeShopDomain(input string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(input))
	if d == "" {
		return "", errors.New("shopify: shop domain is required")
	}
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	if !strings.Contains(d, ".") {
		d = d + ".myshopify.com"
	}
	if _, err := publicsuffix.Domain(d); err != nil {
		return "", fmt.Errorf("shopify: invalid shop domain %q: %w", input, err)
	}
	return d, nil
}

// Domain returns the normalized shop domain.
func (c *Client) Domain() string {
	return c.domain
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/%s", c.domain, apiVersion, path)
}

// do performs one authenticated call and returns the response body. Non-2xx
// responses become errors carrying the store's own error message when one is
// present.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (string, http.Header, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("shopify: request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(bodyBytes, "errors").String()
		if msg == "" {
			msg = strings.TrimSpace(string(bodyBytes))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", nil, fmt.Errorf("shopify: HTTP %d: %s", resp.StatusCode, msg)
	}
	return string(bodyBytes), resp.Header, nil
}

// FetchAllProducts pages through the full product list and maps each product
// into a workspace record. SEO title and description are editable fields that
// the REST product list does not return, so they start empty and are written
// through the global metafields on push.
func (c *Client) FetchAllProducts(ctx context.Context) ([]catalog.Record, error) {
	var records []catalog.Record

	next := c.url(fmt.Sprintf("products.json?limit=%d", pageSize))
	for next != "" {
		body, headers, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}

		for _, p := range gjson.Get(body, "products").Array() {
			records = append(records, productToRecord(p))
		}

		next = nextPageURL(headers.Get("Link"))
	}

	utils.Log.Debugf("[shopify] fetched %d products from %s", len(records), c.domain)
	return records, nil
}

func productToRecord(p gjson.Result) catalog.Record {
	rec := catalog.NewRecord(p.Get("id").String())
	rec.Fields[catalog.FieldTitle] = p.Get("title").String()
	rec.Fields[catalog.FieldBodyHTML] = p.Get("body_html").String()
	rec.Fields[catalog.FieldHandle] = p.Get("handle").String()
	rec.Fields[catalog.FieldVendor] = p.Get("vendor").String()
	rec.Fields[catalog.FieldProductType] = p.Get("product_type").String()
	rec.Fields[catalog.FieldTags] = p.Get("tags").String()
	rec.Fields[catalog.FieldSEOTitle] = ""
	rec.Fields[catalog.FieldSEODescription] = ""
	rec.Fields[catalog.FieldKeyword] = ""

	var names, ids []string
	for _, opt := range p.Get("options").Array() {
		names = append(names, opt.Get("name").String())
		ids = append(ids, opt.Get("id").String())
	}
	if len(names) > 0 {
		rec.Fields[catalog.FieldOptions] = strings.Join(names, ", ")
		rec.Extra[extraOptionIDs] = strings.Join(ids, ",")
	}
	return rec
}

// nextPageURL parses Shopify's Link header for cursor pagination.
func nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

// PushProduct writes one record's edited fields back to the store. Option
// group renames ride along only when the record still carries the option ids
// captured at fetch time, so each rename targets its own sub-resource.
func (c *Client) PushProduct(ctx context.Context, id string, rec catalog.Record) error {
	payload := "{}"
	var err error

	set := func(path, value string) {
		if err != nil {
			return
		}
		payload, err = sjson.Set(payload, path, value)
	}

	set("product.id", id)
	set("product.title", rec.Get(catalog.FieldTitle))
	set("product.body_html", rec.Get(catalog.FieldBodyHTML))
	set("product.handle", rec.Get(catalog.FieldHandle))
	set("product.vendor", rec.Get(catalog.FieldVendor))
	set("product.product_type", rec.Get(catalog.FieldProductType))
	set("product.tags", rec.Get(catalog.FieldTags))
	set("product.metafields_global_title_tag", rec.Get(catalog.FieldSEOTitle))
	set("product.metafields_global_description_tag", rec.Get(catalog.FieldSEODescription))

	if names := rec.Get(catalog.FieldOptions); names != "" {
		if ids := rec.Extra[extraOptionIDs]; ids != "" {
			nameList := splitTrim(names, ",")
			idList := splitTrim(ids, ",")
			if len(nameList) == len(idList) {
				for i := range idList {
					set(fmt.Sprintf("product.options.%d.id", i), idList[i])
					set(fmt.Sprintf("product.options.%d.name", i), nameList[i])
				}
			}
		}
	}

	if err != nil {
		return err
	}

	_, _, err = c.do(ctx, http.MethodPut, c.url(fmt.Sprintf("products/%s.json", id)), []byte(payload))
	if err != nil {
		return err
	}
	utils.Log.Debugf("[shopify] pushed product %s", id)
	return nil
}

// FetchBlogs lists the store's content containers.
func (c *Client) FetchBlogs(ctx context.Context) ([]Blog, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.url("blogs.json"), nil)
	if err != nil {
		return nil, err
	}
	var blogs []Blog
	for _, b := range gjson.Get(body, "blogs").Array() {
		blogs = append(blogs, Blog{
			ID:     b.Get("id").String(),
			Title:  b.Get("title").String(),
			Handle: b.Get("handle").String(),
		})
	}
	return blogs, nil
}

// CreateArticle creates one content item in a blog.
func (c *Client) CreateArticle(ctx context.Context, blogID string, in ArticleInput) (Article, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Article{}, errors.New("shopify: article title is required")
	}

	payload := "{}"
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		payload, err = sjson.Set(payload, path, value)
	}

	set("article.title", in.Title)
	set("article.body_html", in.BodyHTML)
	set("article.tags", strings.Join(in.Tags, ", "))
	if in.Excerpt != "" {
		set("article.summary_html", in.Excerpt)
	}
	if in.ImageURL != "" {
		set("article.image.src", in.ImageURL)
	}
	if in.SEOTitle != "" {
		set("article.metafields.0.namespace", "global")
		set("article.metafields.0.key", "title_tag")
		set("article.metafields.0.type", "single_line_text_field")
		set("article.metafields.0.value", in.SEOTitle)
	}
	if in.SEODescription != "" {
		idx := 0
		if in.SEOTitle != "" {
			idx = 1
		}
		set(fmt.Sprintf("article.metafields.%d.namespace", idx), "global")
		set(fmt.Sprintf("article.metafields.%d.key", idx), "description_tag")
		set(fmt.Sprintf("article.metafields.%d.type", idx), "single_line_text_field")
		set(fmt.Sprintf("article.metafields.%d.value", idx), in.SEODescription)
	}
	if err != nil {
		return Article{}, err
	}

	body, _, err := c.do(ctx, http.MethodPost, c.url(fmt.Sprintf("blogs/%s/articles.json", blogID)), []byte(payload))
	if err != nil {
		return Article{}, err
	}

	id := gjson.Get(body, "article.id").String()
	if id == "" {
		return Article{}, errors.New("shopify: article creation returned no id")
	}
	utils.Log.Debugf("[shopify] created article %s in blog %s", id, blogID)
	return Article{ID: id}, nil
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
