// Package ingest turns external hierarchy data into trees the layout engine
// can build graphs from.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TFMV/topograph/models"
)

// ErrUnsupportedFormat is returned for unknown formats and file extensions
var ErrUnsupportedFormat = errors.New("ingest: unsupported format")

// TreeProcessor defines the interface that all hierarchy processors must implement
type TreeProcessor interface {
	// ProcessData takes raw data bytes and returns the hierarchy root
	ProcessData(data []byte) (*models.TreeNode, error)

	// GetName returns the name of the processor
	GetName() string
}

// JSONProcessor handles nested JSON hierarchies
type JSONProcessor struct{}

// NewJSONProcessor creates a new nested JSON processor
func NewJSONProcessor() *JSONProcessor {
	return &JSONProcessor{}
}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

type jsonNode struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Title    string      `json:"title"`
	Level    *int        `json:"level"`
	URL      string      `json:"url"`
	Children []*jsonNode `json:"children"`
}

// ProcessData parses a nested tree of {id, label, level, url, children}
func (p *JSONProcessor) ProcessData(data []byte) (*models.TreeNode, error) {
	var root jsonNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	if root.ID == "" {
		return nil, ErrNoRoot
	}
	return root.tree(0), nil
}

func (n *jsonNode) tree(depth int) *models.TreeNode {
	t := &models.TreeNode{ID: n.ID, Label: n.Label, Level: depth, URL: n.URL}
	if t.Label == "" {
		t.Label = n.Title
	}
	if t.Label == "" {
		t.Label = n.ID
	}
	if n.Level != nil {
		t.Level = *n.Level
	}
	for _, c := range n.Children {
		// subtrees without an id are dropped when the graph is built
		if c == nil {
			continue
		}
		t.Children = append(t.Children, c.tree(depth+1))
	}
	return t
}

// RecordsProcessor handles flat JSON arrays of page records
type RecordsProcessor struct{}

// NewRecordsProcessor creates a new flat record processor
func NewRecordsProcessor() *RecordsProcessor {
	return &RecordsProcessor{}
}

// GetName returns the name of the processor
func (p *RecordsProcessor) GetName() string {
	return "Records Processor"
}

// ProcessData parses [{id, parent_id, label, level, url}] and links it
func (p *RecordsProcessor) ProcessData(data []byte) (*models.TreeNode, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing JSON records: %w", err)
	}
	return BuildTree(records)
}

// CSVProcessor handles CSV page lists with a header row
type CSVProcessor struct{}

// NewCSVProcessor creates a new CSV processor
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{}
}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData reads one record per row. Columns are found by header name.
func (p *CSVProcessor) ProcessData(data []byte) (*models.TreeNode, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	idIdx, parentIdx, labelIdx, levelIdx, urlIdx := -1, -1, -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "id", "page", "slug":
			idIdx = i
		case "parent", "parent_id", "parentid":
			parentIdx = i
		case "label", "title", "name":
			labelIdx = i
		case "level", "depth":
			levelIdx = i
		case "url", "href", "link":
			urlIdx = i
		}
	}
	if idIdx == -1 {
		return nil, fmt.Errorf("CSV must contain an id column")
	}

	field := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
		}

		rec := Record{
			ID:       field(row, idIdx),
			ParentID: field(row, parentIdx),
			Label:    field(row, labelIdx),
			URL:      field(row, urlIdx),
		}
		if lv, err := strconv.Atoi(field(row, levelIdx)); err == nil {
			rec.Level = &lv
		}
		records = append(records, rec)
	}

	return BuildTree(records)
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (TreeProcessor, error) {
	switch strings.ToLower(format) {
	case "json", "tree":
		return NewJSONProcessor(), nil
	case "records":
		return NewRecordsProcessor(), nil
	case "csv":
		return NewCSVProcessor(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat picks the JSON processor for nested objects and the records
// processor for arrays
func DetectFormat(data []byte) string {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return "records"
	}
	return "json"
}

// Parse reads a hierarchy in the given format. An empty format for JSON
// data is detected from its shape.
func Parse(format string, data []byte) (*models.TreeNode, error) {
	if format == "" {
		format = DetectFormat(data)
	}
	proc, err := GetProcessor(format)
	if err != nil {
		return nil, err
	}
	return proc.ProcessData(data)
}

// LoadFile reads a hierarchy from disk, choosing the processor by extension
func LoadFile(ctx context.Context, path string) (*models.TreeNode, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		src, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		defer src.Close()

		records, err := src.Records(ctx)
		if err != nil {
			return nil, err
		}
		return BuildTree(records)

	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return Parse("", data)

	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return Parse("csv", data)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
