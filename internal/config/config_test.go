package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("JWT_TTL_SECONDS", "")
	t.Setenv("DOCUMENT_BY_NAME_FULL_CATALOG", "")

	cfg := Load()
	if cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("expected two hour token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.ByNameFullCatalog {
		t.Fatal("expected by-name full catalog to default to false")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins: %v", cfg.CORSOrigins)
	}
	if cfg.OCRModel != "prebuilt-invoice" {
		t.Fatalf("unexpected OCR model %q", cfg.OCRModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://app.example.com , ,http://localhost:5173")
	t.Setenv("JWT_TTL_SECONDS", "60")
	t.Setenv("DOCUMENT_BY_NAME_FULL_CATALOG", "true")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")

	cfg := Load()
	if cfg.TokenTTL != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", cfg.TokenTTL)
	}
	if !cfg.ByNameFullCatalog {
		t.Fatal("expected by-name full catalog flag to be set")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://app.example.com" || cfg.CORSOrigins[1] != "http://localhost:5173" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("expected fallback upload cap, got %d", cfg.MaxUploadBytes)
	}
}
