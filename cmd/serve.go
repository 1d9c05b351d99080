package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/6000yuval/shopify-seo/internal/server"
	"github.com/6000yuval/shopify-seo/internal/utils"
	"github.com/6000yuval/shopify-seo/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workspace API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		dbPath, _ := cmd.Flags().GetString("db")
		user, _ := cmd.Flags().GetString("user")
		pass, _ := cmd.Flags().GetString("pass")

		absPath, err := utils.GetAbsDBPath(dbPath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return err
		}

		lock, err := utils.NewDBLock(absPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		db, err := storage.Open(absPath)
		if err != nil {
			return err
		}
		defer db.Close()

		seedSettings(db)

		return server.New(db, user, pass).Start(listenAddr)
	},
}

// seedSettings copies config-file credentials into the settings store when
// nothing is persisted yet, so /api/reconnect works on a fresh install.
func seedSettings(db *storage.DB) {
	ctx := context.Background()

	if _, err := db.LoadShopifyCredentials(ctx); errors.Is(err, storage.ErrNotFound) {
		domain := viper.GetString("shopify.domain")
		token := viper.GetString("shopify.token")
		if domain != "" && token != "" {
			if err := db.SaveShopifyCredentials(ctx, storage.ShopifyCredentials{Domain: domain, Token: token}); err != nil {
				utils.Log.Warnf("could not seed store credentials: %v", err)
			}
		}
	}

	if _, err := db.LoadAIConfig(ctx); errors.Is(err, storage.ErrNotFound) {
		apiKey := viper.GetString("ai.api_key")
		if apiKey != "" {
			cfg := storage.AIConfig{
				Provider: viper.GetString("ai.provider"),
				APIKey:   apiKey,
				Model:    viper.GetString("ai.model"),
				Endpoint: viper.GetString("ai.endpoint"),
			}
			if err := db.SaveAIConfig(ctx, cfg); err != nil {
				utils.Log.Warnf("could not seed AI config: %v", err)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().String("db", "", "Settings database path (default ~/.config/shopseo/shopseo.sqlite)")
	serveCmd.Flags().String("user", "", "Basic auth username (empty disables auth)")
	serveCmd.Flags().String("pass", "", "Basic auth password")
}
