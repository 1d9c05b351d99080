package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/6000yuval/shopify-seo/pkg/catalog"
)

func TestNormalizeShopDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"my-store", "my-store.myshopify.com", false},
		{"my-store.myshopify.com", "my-store.myshopify.com", false},
		{"https://my-store.myshopify.com", "my-store.myshopify.com", false},
		{"http://my-store.myshopify.com/admin", "my-store.myshopify.com", false},
		{"My-Store.MyShopify.com", "my-store.myshopify.com", false},
		{"  my-store  ", "my-store.myshopify.com", false},
		{"shop.example.com", "shop.example.com", false},
		{"my-store.myshopify.com.", "my-store.myshopify.com", false},
		{"https://my-store.myshopify.com?utm=x", "my-store.myshopify.com", false},
		{"", "", true},
	}

	for _, tc := range tests {
		got, err := NormalizeShopDomain(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeShopDomain(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeShopDomain(%q): %v", tc.input, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("NormalizeShopDomain(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

// rewriteTransport sends every request to the test server regardless of host.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(Config{
		Domain:     "my-store",
		Token:      "shpat_test",
		HTTPClient: &http.Client{Transport: rewriteTransport{target: u}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFetchAllProductsPaginatesAndMaps(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("token header = %q", got)
		}
		calls++
		switch calls {
		case 1:
			w.Header().Set("Link", `<https://my-store.myshopify.com/admin/api/2024-01/products.json?page_info=abc&limit=250>; rel="next"`)
			fmt.Fprint(w, `{"products":[{
				"id": 101,
				"title": "Blue Mug",
				"body_html": "<p>A mug.</p>",
				"handle": "blue-mug",
				"vendor": "Mugworks",
				"product_type": "Drinkware",
				"tags": "mug, blue",
				"options": [{"id": 9001, "name": "Size"}, {"id": 9002, "name": "Color"}]
			}]}`)
		case 2:
			if !strings.Contains(r.URL.RawQuery, "page_info=abc") {
				t.Errorf("second page query = %q", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"products":[{"id": 102, "title": "Red Mug"}]}`)
		default:
			t.Errorf("unexpected call %d", calls)
		}
	}))
	defer srv.Close()

	records, err := testClient(t, srv).FetchAllProducts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	r := records[0]
	if r.ID != "101" || r.Get(catalog.FieldTitle) != "Blue Mug" || r.Get(catalog.FieldVendor) != "Mugworks" {
		t.Fatalf("record = %+v", r)
	}
	if r.Get(catalog.FieldTags) != "mug, blue" {
		t.Fatalf("tags = %q", r.Get(catalog.FieldTags))
	}
	// SEO fields are not in the REST product payload; they start empty.
	if v, ok := r.Fields[catalog.FieldSEOTitle]; !ok || v != "" {
		t.Fatal("seo_title should be present and empty")
	}
	if r.Get(catalog.FieldOptions) != "Size, Color" {
		t.Fatalf("options = %q", r.Get(catalog.FieldOptions))
	}
	if r.Extra["option_ids"] != "9001,9002" {
		t.Fatalf("option ids = %q", r.Extra["option_ids"])
	}
	if records[1].ID != "102" {
		t.Fatalf("second record id = %q", records[1].ID)
	}
}

func TestPushProductPayload(t *testing.T) {
	var captured string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/products/101.json") {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		fmt.Fprint(w, `{"product":{"id":101}}`)
	}))
	defer srv.Close()

	rec := catalog.NewRecord("101")
	rec.Set(catalog.FieldTitle, "Blue Mug v2")
	rec.Set(catalog.FieldHandle, "blue-mug-v2")
	rec.Set(catalog.FieldSEOTitle, "Buy the Blue Mug")
	rec.Set(catalog.FieldSEODescription, "A very blue mug.")
	rec.Set(catalog.FieldOptions, "Size, Colour")
	rec.Extra["option_ids"] = "9001,9002"

	if err := testClient(t, srv).PushProduct(context.Background(), "101", rec); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"product.id":                                "101",
		"product.title":                             "Blue Mug v2",
		"product.handle":                            "blue-mug-v2",
		"product.metafields_global_title_tag":       "Buy the Blue Mug",
		"product.metafields_global_description_tag": "A very blue mug.",
		"product.options.0.id":                      "9001",
		"product.options.0.name":                    "Size",
		"product.options.1.id":                      "9002",
		"product.options.1.name":                    "Colour",
	}
	for path, want := range checks {
		if got := gjson.Get(captured, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

// A record whose option ids were lost must not send option payloads at all:
// renames without ids could land on the wrong sub-resource.
func TestPushProductSkipsOptionsWithoutIDs(t *testing.T) {
	var captured string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		fmt.Fprint(w, `{"product":{"id":101}}`)
	}))
	defer srv.Close()

	rec := catalog.NewRecord("101")
	rec.Set(catalog.FieldOptions, "Size, Colour")

	if err := testClient(t, srv).PushProduct(context.Background(), "101", rec); err != nil {
		t.Fatal(err)
	}
	if gjson.Get(captured, "product.options").Exists() {
		t.Fatalf("options should be omitted: %s", captured)
	}
}

func TestErrorCarriesStoreMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"errors":{"handle":["has already been taken"]}}`)
	}))
	defer srv.Close()

	err := testClient(t, srv).PushProduct(context.Background(), "101", catalog.NewRecord("101"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 422") || !strings.Contains(err.Error(), "has already been taken") {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchBlogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"blogs":[{"id": 7, "title": "News", "handle": "news"}]}`)
	}))
	defer srv.Close()

	blogs, err := testClient(t, srv).FetchBlogs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []Blog{{ID: "7", Title: "News", Handle: "news"}}
	if !reflect.DeepEqual(blogs, want) {
		t.Fatalf("blogs = %+v", blogs)
	}
}

func TestCreateArticle(t *testing.T) {
	var captured string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/blogs/7/articles.json") {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"article": map[string]interface{}{"id": 42},
		})
	}))
	defer srv.Close()

	art, err := testClient(t, srv).CreateArticle(context.Background(), "7", ArticleInput{
		Title:          "Mug Care 101",
		BodyHTML:       "<p>Wash gently.</p>",
		Tags:           []string{"mugs", "care"},
		Excerpt:        "How to keep mugs alive.",
		SEOTitle:       "Mug Care Guide",
		SEODescription: "Everything about mug care.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if art.ID != "42" {
		t.Fatalf("article id = %q", art.ID)
	}

	if got := gjson.Get(captured, "article.tags").String(); got != "mugs, care" {
		t.Errorf("tags = %q", got)
	}
	if got := gjson.Get(captured, "article.summary_html").String(); got != "How to keep mugs alive." {
		t.Errorf("summary = %q", got)
	}
	if got := gjson.Get(captured, "article.metafields.0.key").String(); got != "title_tag" {
		t.Errorf("first metafield key = %q", got)
	}
	if got := gjson.Get(captured, "article.metafields.1.key").String(); got != "description_tag" {
		t.Errorf("second metafield key = %q", got)
	}
}

func TestCreateArticleRequiresTitle(t *testing.T) {
	c, err := New(Config{Domain: "my-store", Token: "shpat_test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateArticle(context.Background(), "7", ArticleInput{}); err == nil {
		t.Fatal("expected error for missing title")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{Domain: "my-store"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		link     string
		expected string
	}{
		{`<https://x/prev>; rel="previous", <https://x/next>; rel="next"`, "https://x/next"},
		{`<https://x/prev>; rel="previous"`, ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := nextPageURL(tc.link); got != tc.expected {
			t.Errorf("nextPageURL(%q) = %q, want %q", tc.link, got, tc.expected)
		}
	}
}
