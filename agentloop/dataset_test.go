package agentloop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCatalog(t *testing.T) *DatasetCatalog {
	t.Helper()
	root := t.TempDir()

	drugbank := filepath.Join(root, "drugbank")
	if err := os.MkdirAll(drugbank, 0755); err != nil {
		t.Fatal(err)
	}
	csv := "drug_id,name,target\nDB001,aspirin,COX1\nDB002,ibuprofen,COX2\nDB003,metformin,AMPK\n"
	if err := os.WriteFile(filepath.Join(drugbank, "interactions.csv"), []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}

	stringDir := filepath.Join(root, "string")
	if err := os.MkdirAll(stringDir, 0755); err != nil {
		t.Fatal(err)
	}
	tsv := "protein_id\tname\nP001\tTP53\nP002\tBRCA1\n"
	if err := os.WriteFile(filepath.Join(stringDir, "protein.info.tsv"), []byte(tsv), 0644); err != nil {
		t.Fatal(err)
	}

	return NewDatasetCatalog(root)
}

func TestCatalogDatasets(t *testing.T) {
	catalog := newTestCatalog(t)
	names, err := catalog.Datasets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "drugbank" || names[1] != "string" {
		t.Errorf("unexpected datasets: %v", names)
	}
}

func TestCatalogInfo(t *testing.T) {
	catalog := newTestCatalog(t)
	out, err := catalog.Query("drugbank", "info", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "interactions.csv") {
		t.Errorf("info must list files, got %q", out)
	}
	if !strings.Contains(out, "drug_id, name, target") {
		t.Errorf("info must list columns, got %q", out)
	}
}

func TestCatalogFileQuery(t *testing.T) {
	catalog := newTestCatalog(t)
	out, err := catalog.Query("drugbank", "file:interactions", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "aspirin") || !strings.Contains(out, "metformin") {
		t.Errorf("expected rows in output, got %q", out)
	}
	if !strings.HasPrefix(out, "drug_id\tname\ttarget") {
		t.Errorf("expected header first, got %q", out)
	}
}

func TestCatalogFileQueryLimit(t *testing.T) {
	catalog := newTestCatalog(t)
	out, err := catalog.Query("drugbank", "file:interactions", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "metformin") {
		t.Errorf("expected third row cut by limit, got %q", out)
	}
	if !strings.Contains(out, "showing first 2 rows") {
		t.Errorf("expected limit notice, got %q", out)
	}
}

func TestCatalogTSV(t *testing.T) {
	catalog := newTestCatalog(t)
	out, err := catalog.Query("string", "file:protein.info.tsv", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "TP53") {
		t.Errorf("expected TSV rows parsed, got %q", out)
	}
}

func TestCatalogUnknownDataset(t *testing.T) {
	catalog := newTestCatalog(t)
	_, err := catalog.Query("nonexistent", "info", 0)
	if err == nil {
		t.Fatal("expected error for unknown dataset")
	}
	if !strings.Contains(err.Error(), "drugbank") {
		t.Errorf("error should name available datasets, got %v", err)
	}
}

func TestCatalogUnknownFile(t *testing.T) {
	catalog := newTestCatalog(t)
	_, err := catalog.Query("drugbank", "file:missing", 0)
	if err == nil {
		t.Fatal("expected error for unknown file")
	}
	if !strings.Contains(err.Error(), "interactions.csv") {
		t.Errorf("error should name available files, got %v", err)
	}
}

func TestCatalogBadQuery(t *testing.T) {
	catalog := newTestCatalog(t)
	if _, err := catalog.Query("drugbank", "select * from drugs", 0); err == nil {
		t.Fatal("expected error for unsupported query form")
	}
}
