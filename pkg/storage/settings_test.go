package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "settings.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestShopifyCredentialsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadShopifyCredentials(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load before save = %v, want ErrNotFound", err)
	}

	want := ShopifyCredentials{Domain: "my-store.myshopify.com", Token: "shpat_test"}
	if err := db.SaveShopifyCredentials(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadShopifyCredentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	// Saving again overwrites in place.
	want.Token = "shpat_rotated"
	if err := db.SaveShopifyCredentials(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err = db.LoadShopifyCredentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != "shpat_rotated" {
		t.Fatalf("token after overwrite = %q", got.Token)
	}
}

func TestAIConfigRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadAIConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load before save = %v, want ErrNotFound", err)
	}

	want := AIConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt-4.1-mini"}
	if err := db.SaveAIConfig(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadAIConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDeleteSetting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveAIConfig(ctx, AIConfig{Provider: "openai", APIKey: "k"}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSetting(ctx, KeyAIConfig); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadAIConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load after delete = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is fine.
	if err := db.DeleteSetting(ctx, KeyAIConfig); err != nil {
		t.Fatal(err)
	}
}

func TestCorruptSettingSurfacesError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.putSetting(ctx, KeyAIConfig, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadAIConfig(ctx); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt setting load = %v, want a parse error", err)
	}
}
