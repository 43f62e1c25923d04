package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Textfelder des content-Objekts, die die Normalisierung umschreibt.
var contentTextFields = []string{"prompt_md", "answer_md", "solution_md"}

// PageStats zählt, was ein Durchlauf über eine Page angefasst hat.
type PageStats struct {
	Samples       int
	Fields        int
	FieldsChanged int
}

// MapContentFields liefert eine Kopie von page, in der fn auf jedes vorhandene
// Textfeld im content jedes Samples angewendet wurde. Page, Samples und content
// werden flach kopiert, alle anderen Werte teilt die Kopie mit der Eingabe.
// Fields und FieldsChanged zählen nur String-Felder. Pages ohne samples-Array
// und Samples, die keine Objekte sind, bleiben unverändert.
func MapContentFields(page any, fn func(any) any) (any, PageStats) {
	var stats PageStats

	pageMap, ok := page.(map[string]any)
	if !ok {
		return page, stats
	}
	samples, ok := pageMap["samples"].([]any)
	if !ok {
		return page, stats
	}

	out := make([]any, len(samples))
	for i, s := range samples {
		stats.Samples++
		sample, ok := s.(map[string]any)
		if !ok {
			out[i] = s
			continue
		}
		content, ok := sample["content"].(map[string]any)
		if !ok {
			out[i] = sample
			continue
		}

		newContent := shallowCopy(content)
		for _, field := range contentTextFields {
			value, present := content[field]
			if !present {
				continue
			}
			mapped := fn(value)
			newContent[field] = mapped
			if text, ok := value.(string); ok {
				stats.Fields++
				if mapped != text {
					stats.FieldsChanged++
				}
			}
		}

		newSample := shallowCopy(sample)
		newSample["content"] = newContent
		out[i] = newSample
	}

	newPage := shallowCopy(pageMap)
	newPage["samples"] = out
	return newPage, stats
}

// NormalizeDatasetPage wendet Cleaner und Math-Wrapping auf eine dekodierte Page an.
func NormalizeDatasetPage(page any) (any, PageStats) {
	return MapContentFields(page, NormalizeMarkdownValue)
}

// RepairDatasetPage wendet RepairLatex auf eine dekodierte Page an.
func RepairDatasetPage(page any) (any, PageStats) {
	return MapContentFields(page, RepairLatexValue)
}

func shallowCopy(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// decodePage liest genau einen JSON-Wert; Zahlen bleiben als json.Number erhalten.
func decodePage(raw []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// encodePage schreibt v mit 2 Leerzeichen Einrückung und abschließendem Newline.
// Objekt-Schlüssel erscheinen sortiert, nicht in der Reihenfolge der Quelle.
func encodePage(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
