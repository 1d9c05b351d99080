package server

import (
	"net/http"
	"sync"

	"github.com/6000yuval/shopify-seo/internal/utils"
	"github.com/6000yuval/shopify-seo/pkg/ai"
	"github.com/6000yuval/shopify-seo/pkg/shopify"
	"github.com/6000yuval/shopify-seo/pkg/storage"
	"github.com/6000yuval/shopify-seo/pkg/workspace"
)

// Server exposes the workspace engine over a JSON API. Handlers are thin:
// every state transition goes through the workspace, pipeline and reconcile
// packages.
type Server struct {
	DB       *storage.DB
	Username string
	Password string

	mu           sync.Mutex
	store        *workspace.Store
	shop         *shopify.Client
	transformer  ai.Transformer
	lastBatchErr string
}

func New(db *storage.DB, user, pass string) *Server {
	return &Server{
		DB:       db,
		Username: user,
		Password: pass,
		store:    workspace.NewStore(),
	}
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/connect", s.basicAuth(s.handleConnect))
	mux.HandleFunc("POST /api/reconnect", s.basicAuth(s.handleReconnect))
	mux.HandleFunc("GET /api/records", s.basicAuth(s.handleRecords))
	mux.HandleFunc("GET /api/records/{id}/diff", s.basicAuth(s.handleRecordDiff))
	mux.HandleFunc("POST /api/records/{id}/field", s.basicAuth(s.handleSetField))
	mux.HandleFunc("POST /api/records/{id}/revert", s.basicAuth(s.handleRevert))
	mux.HandleFunc("POST /api/selection", s.basicAuth(s.handleSelection))
	mux.HandleFunc("POST /api/columns", s.basicAuth(s.handleColumns))
	mux.HandleFunc("POST /api/undo", s.basicAuth(s.handleUndo))
	mux.HandleFunc("POST /api/redo", s.basicAuth(s.handleRedo))
	mux.HandleFunc("POST /api/batch", s.basicAuth(s.handleBatch))
	mux.HandleFunc("GET /api/progress", s.basicAuth(s.handleProgress))
	mux.HandleFunc("POST /api/sync", s.basicAuth(s.handleSyncAll))
	mux.HandleFunc("POST /api/sync/{id}", s.basicAuth(s.handleSyncOne))
	mux.HandleFunc("GET /api/blogs", s.basicAuth(s.handleBlogs))
	mux.HandleFunc("POST /api/content", s.basicAuth(s.handleGenerateContent))

	return mux
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
