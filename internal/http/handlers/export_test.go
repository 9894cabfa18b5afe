package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"batchgen/internal/domain"
)

func TestExportBatchProducesArchive(t *testing.T) {
	env := newTestEnv(t)
	out := env.createBatch(t, `{"count": 3, "enable_validation": true}`)
	env.waitForPhase(t, out.BatchID, domain.PhaseComplete)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/"+out.BatchID+"/export", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET export = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("Content-Type = %q, want application/zip", ct)
	}

	reader, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error: %v", err)
	}
	if len(reader.File) != 3 {
		t.Fatalf("archive entries = %d, want 3", len(reader.File))
	}
	for _, f := range reader.File {
		if !strings.HasSuffix(f.Name, ".json") {
			t.Fatalf("entry %q, want .json", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		var record recipeRecord
		if err := json.NewDecoder(rc).Decode(&record); err != nil {
			t.Fatalf("decode entry %q: %v", f.Name, err)
		}
		rc.Close()
		if record.Title == "" || record.ImageRef == "" {
			t.Fatalf("entry %q incomplete: %+v", f.Name, record)
		}
	}
}

func TestExportBatchNotFound(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/batches/missing/export", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("export missing batch = %d, want 404", rec.Code)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Spicy Chicken Curry", "spicy-chicken-curry"},
		{"  Crème Brûlée!  ", "crme-brlee"},
		{"***", "recipe"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Fatalf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
