package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"math-showcase/metrics"
	"math-showcase/models"
)

// DefaultPageSize gilt, wenn eine Page keine Größe angibt.
const DefaultPageSize = 20

// PageView ist eine Dataset-Page, wie die Galerie sie ausliefert.
type PageView struct {
	models.DatasetPage
	TotalPages int `json:"totalPages"`
	Shown      int `json:"shown"`
}

// GalleryService liest den veröffentlichten Datenbaum.
type GalleryService struct {
	DataDir string
	Logger  *zap.Logger
}

func NewGalleryService(dataDir string, logger *zap.Logger) *GalleryService {
	return &GalleryService{DataDir: dataDir, Logger: logger}
}

// LoadIndex liest index.json.
func (g *GalleryService) LoadIndex() (*models.DatasetIndex, error) {
	var idx models.DatasetIndex
	if err := g.readJSON(filepath.Join(g.DataDir, "index.json"), &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// LoadMeta liest datasets/<id>/meta.json.
func (g *GalleryService) LoadMeta(datasetID string) (*models.DatasetMeta, error) {
	if err := ValidateDatasetID(datasetID); err != nil {
		return nil, err
	}
	var meta models.DatasetMeta
	if err := g.readJSON(filepath.Join(g.DataDir, "datasets", datasetID, "meta.json"), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadPage liest datasets/<id>/pages/<page>.json ungetypt, so wie der Batch-Lauf
// sie schreibt. Seiten < 1 lesen Seite 1.
func (g *GalleryService) LoadPage(datasetID string, page int) (any, error) {
	if err := ValidateDatasetID(datasetID); err != nil {
		return nil, err
	}
	path := filepath.Join(g.DataDir, "datasets", datasetID, "pages", strconv.Itoa(max(page, 1))+".json")
	raw, err := readDataFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := decodePage(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.ToSlash(path), err)
	}
	return doc, nil
}

// ViewPage lädt eine Page, repariert ihre Texte fürs Rendern und filtert die Samples.
// Nicht-String-Felder im content werden unverändert ausgeliefert.
func (g *GalleryService) ViewPage(datasetID string, page int, query string) (*PageView, error) {
	doc, err := g.LoadPage(datasetID, page)
	if err != nil {
		return nil, err
	}
	repaired, stats := RepairDatasetPage(doc)
	metrics.LatexRepairs.Add(float64(stats.FieldsChanged))

	fields, ok := repaired.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dataset %s page %d: not a JSON object", datasetID, max(page, 1))
	}
	samples, _ := fields["samples"].([]any)
	samples = FilterSamples(samples, query)
	if samples == nil {
		samples = []any{}
	}

	view := &PageView{
		DatasetPage: models.DatasetPage{
			DatasetID: stringField(fields, "datasetId"),
			Page:      intField(fields, "page"),
			PageSize:  intField(fields, "pageSize"),
			Total:     intField(fields, "total"),
			Samples:   samples,
		},
		Shown: len(samples),
	}
	view.TotalPages = TotalPages(view.Total, view.PageSize)
	return view, nil
}

func (g *GalleryService) readJSON(path string, dst any) error {
	raw, err := readDataFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.ToSlash(path), err)
	}
	return nil
}

func readDataFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.ToSlash(path), ErrNotFound)
	}
	return raw, err
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// intField liest eine ganze Zahl aus einer mit UseNumber dekodierten Map; alles andere ist 0.
func intField(m map[string]any, key string) int {
	n, ok := m[key].(json.Number)
	if !ok {
		return 0
	}
	i, err := n.Int64()
	if err != nil {
		return 0
	}
	return int(i)
}

// ValidateDatasetID lehnt IDs ab, die aus dem datasets-Verzeichnis herausführen würden.
func ValidateDatasetID(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("dataset id %q: %w", id, ErrInvalidInput)
	}
	return nil
}

// TotalPages ist max(1, ceil(total/pageSize)); fehlt pageSize, gilt DefaultPageSize.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return max(1, (total+pageSize-1)/pageSize)
}

// FilterDatasets behält Karten, deren id, name, description, taskType oder tags query enthalten.
func FilterDatasets(cards []models.DatasetCard, query string) []models.DatasetCard {
	q := foldText(strings.TrimSpace(query))
	if q == "" {
		return cards
	}
	out := make([]models.DatasetCard, 0, len(cards))
	for _, d := range cards {
		parts := append([]string{d.ID, d.Name, d.Description, d.TaskType}, d.Tags...)
		if haystackContains(parts, q) {
			out = append(out, d)
		}
	}
	return out
}

// FilterSamples behält Samples, deren id, Textfelder oder topics query enthalten.
func FilterSamples(samples []any, query string) []any {
	q := foldText(strings.TrimSpace(query))
	if q == "" {
		return samples
	}
	out := make([]any, 0, len(samples))
	for _, s := range samples {
		if haystackContains(sampleHaystack(s), q) {
			out = append(out, s)
		}
	}
	return out
}

// sampleHaystack sammelt die durchsuchbaren Texte eines Samples; Nicht-Strings zählen nicht.
func sampleHaystack(s any) []string {
	sample, ok := s.(map[string]any)
	if !ok {
		return nil
	}
	parts := []string{stringField(sample, "id")}
	if content, ok := sample["content"].(map[string]any); ok {
		for _, field := range contentTextFields {
			parts = append(parts, stringField(content, field))
		}
	}
	return append(parts, sampleTopics(sample)...)
}

// sampleTopics liefert annotations.topics als Strings; andere Typen werden ignoriert.
func sampleTopics(sample map[string]any) []string {
	annotations, _ := sample["annotations"].(map[string]any)
	raw, ok := annotations["topics"].([]any)
	if !ok {
		return nil
	}
	topics := make([]string, 0, len(raw))
	for _, t := range raw {
		if str, ok := t.(string); ok {
			topics = append(topics, str)
		}
	}
	return topics
}

func haystackContains(parts []string, foldedQuery string) bool {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Contains(foldText(strings.Join(nonEmpty, " ")), foldedQuery)
}

// foldText: Kleinbuchstaben ohne Akzente, damit "Lösung" auch "losung" findet.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
