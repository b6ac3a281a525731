package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/huynhanx03/keyva/pkg/keyva"
)

func newTestDB(t *testing.T) *keyva.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	opts := keyva.DefaultOptions()
	opts.Dir = dir
	opts.KeyFileName = filepath.Base("db.keys")
	opts.ValueFileName = filepath.Base("db.values")
	db, err := keyva.Open(opts)
	if err != nil {
		t.Fatalf("keyva.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthzReportsUp(t *testing.T) {
	db := newTestDB(t)
	r := Router(db)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body envelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != codeSuccess {
		t.Errorf("code = %d, want %d", body.Code, codeSuccess)
	}
}

func TestStatsReturnsSnapshot(t *testing.T) {
	db := newTestDB(t)
	r := Router(db)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
