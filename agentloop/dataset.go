package agentloop

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DatasetCatalog serves tabular datasets from a data directory. Each
// dataset is a subdirectory holding CSV/TSV files, e.g.
//
//	data/drugbank/interactions.csv
//	data/string/sapiens.9606.protein.info.v12.0.tsv
//
// Two query forms are supported: "info" describes the dataset's files
// and columns, and "file:<name>" returns the first rows of one file.
type DatasetCatalog struct {
	root string
}

// NewDatasetCatalog creates a catalog rooted at dir.
func NewDatasetCatalog(dir string) *DatasetCatalog {
	return &DatasetCatalog{root: dir}
}

// Root returns the data directory.
func (c *DatasetCatalog) Root() string { return c.root }

// Datasets lists the dataset names (subdirectories of the root).
func (c *DatasetCatalog) Datasets() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Query answers one query against a named dataset. limit caps the number
// of data rows returned for file queries (<=0 means the default of 50).
func (c *DatasetCatalog) Query(dataset, query string, limit int) (string, error) {
	dir := filepath.Join(c.root, dataset)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		available, _ := c.Datasets()
		return "", fmt.Errorf("unknown dataset %q (available: %s)", dataset, strings.Join(available, ", "))
	}

	query = strings.TrimSpace(query)
	switch {
	case query == "info":
		return c.describe(dataset, dir)
	case strings.HasPrefix(query, "file:"):
		name := strings.TrimSpace(strings.TrimPrefix(query, "file:"))
		return c.readRows(dir, name, limit)
	default:
		return "", fmt.Errorf("unsupported query %q: use \"info\" or \"file:<name>\"", query)
	}
}

// describe summarizes a dataset: its files, sizes, and column headers.
func (c *DatasetCatalog) describe(dataset, dir string) (string, error) {
	files, err := tabularFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return fmt.Sprintf("Dataset %s contains no CSV/TSV files.", dataset), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset: %s\nFiles: %d\n\n", dataset, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "- %s (%d bytes)\n", f, info.Size())
		header, err := readHeader(path)
		if err == nil && len(header) > 0 {
			fmt.Fprintf(&sb, "  columns: %s\n", strings.Join(header, ", "))
		}
	}
	return sb.String(), nil
}

// readRows returns up to limit data rows from the named file, rendered as
// tab-separated text with the header first.
func (c *DatasetCatalog) readRows(dir, name string, limit int) (string, error) {
	if limit <= 0 {
		limit = 50
	}

	path, err := resolveTabularFile(dir, name)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := newTableReader(f, path)

	var sb strings.Builder
	rows := 0
	totalRead := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		totalRead++
		// First record is the header; it does not count against limit.
		if totalRead > limit+1 {
			fmt.Fprintf(&sb, "... (showing first %d rows)\n", limit)
			break
		}
		sb.WriteString(strings.Join(record, "\t"))
		sb.WriteByte('\n')
		if totalRead > 1 {
			rows++
		}
	}

	if rows == 0 {
		return fmt.Sprintf("%s is empty.", filepath.Base(path)), nil
	}
	return sb.String(), nil
}

// resolveTabularFile finds the file for a name that may omit its extension.
func resolveTabularFile(dir, name string) (string, error) {
	candidates := []string{name, name + ".csv", name + ".tsv"}
	for _, cand := range candidates {
		path := filepath.Join(dir, filepath.Base(cand))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	files, _ := tabularFiles(dir)
	return "", fmt.Errorf("no file %q in dataset (available: %s)", name, strings.Join(files, ", "))
}

// tabularFiles lists the CSV/TSV files in a dataset directory.
func tabularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".tsv":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// readHeader returns the first record of a tabular file.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return newTableReader(f, path).Read()
}

// newTableReader builds a csv.Reader with the delimiter implied by the
// file extension.
func newTableReader(r io.Reader, path string) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		cr.Comma = '\t'
	}
	return cr
}
