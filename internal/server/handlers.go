package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/6000yuval/shopify-seo/internal/utils"
	"github.com/6000yuval/shopify-seo/pkg/ai"
	"github.com/6000yuval/shopify-seo/pkg/catalog"
	"github.com/6000yuval/shopify-seo/pkg/pipeline"
	"github.com/6000yuval/shopify-seo/pkg/reconcile"
	"github.com/6000yuval/shopify-seo/pkg/scoring"
	"github.com/6000yuval/shopify-seo/pkg/shopify"
	"github.com/6000yuval/shopify-seo/pkg/storage"
	"github.com/6000yuval/shopify-seo/pkg/workspace"
)

type ConnectRequest struct {
	Domain     string `json:"domain"`
	Token      string `json:"token"`
	AIProvider string `json:"ai_provider,omitempty"`
	AIAPIKey   string `json:"ai_api_key"`
	AIModel    string `json:"ai_model,omitempty"`
	AIEndpoint string `json:"ai_endpoint,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	creds := storage.ShopifyCredentials{Domain: req.Domain, Token: req.Token}
	aiCfg := storage.AIConfig{
		Provider: req.AIProvider,
		APIKey:   req.AIAPIKey,
		Model:    req.AIModel,
		Endpoint: req.AIEndpoint,
	}

	if err := s.connect(r.Context(), creds, aiCfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if s.DB != nil {
		if err := s.DB.SaveShopifyCredentials(r.Context(), creds); err != nil {
			utils.Log.Warnf("could not persist credentials: %v", err)
		}
		if err := s.DB.SaveAIConfig(r.Context(), aiCfg); err != nil {
			utils.Log.Warnf("could not persist AI config: %v", err)
		}
	}

	s.writeWorkspace(w)
}

// handleReconnect rebuilds the session from the persisted settings.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no settings database configured", http.StatusConflict)
		return
	}
	creds, err := s.DB.LoadShopifyCredentials(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	aiCfg, err := s.DB.LoadAIConfig(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.connect(r.Context(), creds, aiCfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.writeWorkspace(w)
}

// connect builds fresh gateway clients and replaces the whole workspace with
// a new load. Connection failures leave the previous workspace untouched.
func (s *Server) connect(ctx context.Context, creds storage.ShopifyCredentials, aiCfg storage.AIConfig) error {
	shop, err := shopify.New(shopify.Config{Domain: creds.Domain, Token: creds.Token})
	if err != nil {
		return err
	}

	var transformer ai.Transformer
	if aiCfg.APIKey != "" {
		transformer, err = ai.NewTransformer(ai.Config{
			Provider: aiCfg.Provider,
			APIKey:   aiCfg.APIKey,
			Model:    aiCfg.Model,
			Endpoint: aiCfg.Endpoint,
		})
		if err != nil {
			return err
		}
	}

	records, err := shop.FetchAllProducts(ctx)
	if err != nil {
		return fmt.Errorf("could not load catalog from %s: %w", shop.Domain(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shop = shop
	s.transformer = transformer
	s.store.Load(records)
	s.lastBatchErr = ""
	utils.Log.Infof("connected to %s: %d products loaded", shop.Domain(), len(records))
	return nil
}

// RecordView is one record as the review surface sees it.
type RecordView struct {
	ID               string            `json:"id"`
	Fields           map[string]string `json:"fields"`
	Status           string            `json:"status,omitempty"`
	SyncError        string            `json:"sync_error,omitempty"`
	Selected         bool              `json:"selected"`
	ChangedSinceLoad bool              `json:"changed_since_load"`
	Score            int               `json:"score"`
	Issues           []string          `json:"issues,omitempty"`
}

type WorkspaceView struct {
	Records []RecordView                 `json:"records"`
	Columns []string                     `json:"columns"`
	Modes   map[string]catalog.FieldMode `json:"modes"`
	CanUndo bool                         `json:"can_undo"`
	CanRedo bool                         `json:"can_redo"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	s.writeWorkspace(w)
}

func (s *Server) writeWorkspace(w http.ResponseWriter) {
	selected := map[string]bool{}
	for _, id := range s.store.Selection() {
		selected[id] = true
	}

	view := WorkspaceView{
		Columns: s.store.Columns(),
		Modes:   map[string]catalog.FieldMode{},
		CanUndo: s.store.CanUndo(),
		CanRedo: s.store.CanRedo(),
	}
	for _, f := range view.Columns {
		view.Modes[f] = s.store.FieldMode(f)
	}

	statuses := s.store.Statuses()
	for _, rec := range s.store.Records() {
		score, issues := scoring.Score(rec)
		view.Records = append(view.Records, RecordView{
			ID:               rec.ID,
			Fields:           rec.Fields,
			Status:           string(statuses[rec.ID]),
			SyncError:        s.store.SyncError(rec.ID),
			Selected:         selected[rec.ID],
			ChangedSinceLoad: s.store.ChangedSinceLoad(rec.ID),
			Score:            score,
			Issues:           issues,
		})
	}
	json.NewEncoder(w).Encode(view)
}

func (s *Server) handleRecordDiff(w http.ResponseWriter, r *http.Request) {
	changes, err := s.store.PendingChanges(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(changes)
}

type SetFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var req SetFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SetFieldValue(r.PathValue("id"), req.Field, req.Value); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Revert(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type SelectionRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.store.SetSelection(req.IDs)
	w.WriteHeader(http.StatusOK)
}

type ColumnsRequest struct {
	Fields []string          `json:"fields"`
	Modes  map[string]string `json:"modes,omitempty"`
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	var req ColumnsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for field, mode := range req.Modes {
		if !catalog.ValidMode(mode) {
			http.Error(w, fmt.Sprintf("invalid mode %q for field %q", mode, field), http.StatusBadRequest)
			return
		}
	}
	s.store.SetColumns(req.Fields)
	for field, mode := range req.Modes {
		s.store.SetFieldMode(field, catalog.FieldMode(mode))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]bool{"applied": s.store.Undo()})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]bool{"applied": s.store.Redo()})
}

// handleBatch kicks off one batch transformation in the background. The
// single-flight guard lives in the store, so a second request while one is
// running gets a conflict.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	transformer := s.transformer
	s.mu.Unlock()
	if transformer == nil {
		http.Error(w, "AI provider not configured", http.StatusConflict)
		return
	}
	if s.store.IsProcessing() {
		http.Error(w, workspace.ErrBatchRunning.Error(), http.StatusConflict)
		return
	}

	runner := pipeline.NewRunner(pipeline.Config{
		Store:       s.store,
		Transformer: transformer,
		Log:         utils.Log,
	})

	s.mu.Lock()
	s.lastBatchErr = ""
	s.mu.Unlock()

	go func() {
		// The batch outlives the HTTP request that started it.
		if _, err := runner.Run(context.Background()); err != nil {
			s.mu.Lock()
			s.lastBatchErr = err.Error()
			s.mu.Unlock()
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	done, total, processing := s.store.Progress()
	s.mu.Lock()
	lastErr := s.lastBatchErr
	s.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"done":       done,
		"total":      total,
		"processing": processing,
		"last_error": lastErr,
	})
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	rec, err := s.reconciler()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	sum := rec.SyncAll(r.Context())
	resp := map[string]interface{}{"synced": sum.Synced}
	var failed []map[string]string
	for _, f := range sum.Failed {
		failed = append(failed, map[string]string{"id": f.ID, "error": f.Err.Error()})
	}
	resp["failed"] = failed
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleSyncOne(w http.ResponseWriter, r *http.Request) {
	rec, err := s.reconciler()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	id := r.PathValue("id")
	if err := rec.SyncOne(r.Context(), id); err != nil {
		if errors.Is(err, workspace.ErrUnknownRecord) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		// Push failure: the record is marked error, report it without
		// pretending the request itself failed.
		json.NewEncoder(w).Encode(map[string]string{"id": id, "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"id": id, "status": string(s.store.Status(id))})
}

func (s *Server) reconciler() (*reconcile.Reconciler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shop == nil {
		return nil, shopify.ErrNotConnected
	}
	return reconcile.New(s.store, s.shop, utils.Log), nil
}

func (s *Server) handleBlogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	shop := s.shop
	s.mu.Unlock()
	if shop == nil {
		http.Error(w, shopify.ErrNotConnected.Error(), http.StatusConflict)
		return
	}
	blogs, err := shop.FetchBlogs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(blogs)
}

type ContentRequest struct {
	BlogID    string `json:"blog_id"`
	Topic     string `json:"topic"`
	TargetURL string `json:"target_url"`
	ImageURL  string `json:"image_url,omitempty"`
	Count     int    `json:"count"`
}

// handleGenerateContent generates drafts and creates each one on the remote
// store. Per-draft failures are attributed; nothing is silently skipped.
func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	shop := s.shop
	transformer := s.transformer
	s.mu.Unlock()
	if shop == nil {
		http.Error(w, shopify.ErrNotConnected.Error(), http.StatusConflict)
		return
	}
	if transformer == nil {
		http.Error(w, "AI provider not configured", http.StatusConflict)
		return
	}

	drafts, err := transformer.GenerateContentSet(r.Context(), req.Topic, req.TargetURL, req.ImageURL, req.Count)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	type createdArticle struct {
		ID    string `json:"id,omitempty"`
		Title string `json:"title"`
		Error string `json:"error,omitempty"`
	}
	var results []createdArticle
	created := 0
	for _, d := range drafts {
		article, err := shop.CreateArticle(r.Context(), req.BlogID, shopify.ArticleInput{
			Title:          d.Title,
			BodyHTML:       d.BodyHTML,
			Tags:           d.Tags,
			Excerpt:        d.Excerpt,
			ImageURL:       req.ImageURL,
			SEOTitle:       d.Title,
			SEODescription: d.MetaDescription,
		})
		if err != nil {
			results = append(results, createdArticle{Title: d.Title, Error: err.Error()})
			continue
		}
		created++
		results = append(results, createdArticle{ID: article.ID, Title: d.Title})
	}

	if created == 0 {
		w.WriteHeader(http.StatusBadGateway)
	}
	json.NewEncoder(w).Encode(results)
}
