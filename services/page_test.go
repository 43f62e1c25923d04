package services

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func upperValue(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s)
	}
	return v
}

func mustDecodePage(t *testing.T, raw string) any {
	t.Helper()
	page, err := decodePage([]byte(raw))
	if err != nil {
		t.Fatalf("decodePage() error = %v", err)
	}
	return page
}

func TestMapContentFields(t *testing.T) {
	page := mustDecodePage(t, `{
  "datasetId": "algebra",
  "page": 1,
  "samples": [
    {
      "id": "s1",
      "content": {"prompt_md": "a", "answer_md": 42, "solution_md": null, "extra": "a"},
      "annotations": {"topics": ["a"], "difficulty": "easy"}
    },
    {"id": "s2", "content": "not an object"},
    "not a sample"
  ]
}`)
	before, _ := json.Marshal(page)

	got, stats := MapContentFields(page, upperValue)

	after, _ := json.Marshal(page)
	if !bytes.Equal(before, after) {
		t.Fatalf("input page was mutated:\n%s\n%s", before, after)
	}

	samples := got.(map[string]any)["samples"].([]any)
	first := samples[0].(map[string]any)
	content := first["content"].(map[string]any)
	if content["prompt_md"] != "A" {
		t.Errorf("prompt_md = %v, want A", content["prompt_md"])
	}
	if content["answer_md"] != json.Number("42") {
		t.Errorf("answer_md = %#v, want json.Number 42", content["answer_md"])
	}
	if v, ok := content["solution_md"]; !ok || v != nil {
		t.Errorf("solution_md = %v (present %v), want null kept", v, ok)
	}
	if content["extra"] != "a" {
		t.Errorf("extra = %v, want untouched", content["extra"])
	}

	origFirst := page.(map[string]any)["samples"].([]any)[0].(map[string]any)
	if reflect.ValueOf(first["annotations"]).UnsafePointer() != reflect.ValueOf(origFirst["annotations"]).UnsafePointer() {
		t.Error("annotations were copied, want the same map")
	}
	if first["id"] != "s1" {
		t.Errorf("id = %v", first["id"])
	}
	if samples[1].(map[string]any)["content"] != "not an object" {
		t.Errorf("non-object content changed: %v", samples[1])
	}
	if samples[2] != "not a sample" {
		t.Errorf("non-object sample changed: %v", samples[2])
	}

	want := PageStats{Samples: 3, Fields: 1, FieldsChanged: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestMapContentFieldsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		page any
	}{
		{"array page", []any{"x"}},
		{"no samples", map[string]any{"page": json.Number("1")}},
		{"samples not an array", map[string]any{"samples": "x"}},
		{"nil", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, stats := MapContentFields(tc.page, upperValue)
			if !reflect.DeepEqual(got, tc.page) {
				t.Errorf("got %v, want %v", got, tc.page)
			}
			if stats != (PageStats{}) {
				t.Errorf("stats = %+v, want zero", stats)
			}
		})
	}
}

func TestNormalizeDatasetPage(t *testing.T) {
	page := mustDecodePage(t, `{"samples": [{"id": "s1", "content": {"prompt_md": "\\Compute\\ \\sqrt{2}", "answer_md": "\\(x\\)"}}]}`)
	got, stats := NormalizeDatasetPage(page)

	content := got.(map[string]any)["samples"].([]any)[0].(map[string]any)["content"].(map[string]any)
	if content["prompt_md"] != `Compute $\sqrt{2}$` {
		t.Errorf("prompt_md = %q", content["prompt_md"])
	}
	if content["answer_md"] != "(x)" {
		t.Errorf("answer_md = %q", content["answer_md"])
	}
	if stats.FieldsChanged != 2 {
		t.Errorf("FieldsChanged = %d, want 2", stats.FieldsChanged)
	}
}

func TestRepairDatasetPage(t *testing.T) {
	page := mustDecodePage(t, `{"samples": [{"id": "s1", "content": {"prompt_md": "x ge 1", "answer_md": 42, "solution_md": "\\frac{1}{2}"}}]}`)
	got, stats := RepairDatasetPage(page)

	content := got.(map[string]any)["samples"].([]any)[0].(map[string]any)["content"].(map[string]any)
	if content["prompt_md"] != `x \ge 1` {
		t.Errorf("prompt_md = %q", content["prompt_md"])
	}
	if content["answer_md"] != json.Number("42") {
		t.Errorf("answer_md = %#v, want number kept", content["answer_md"])
	}
	if content["solution_md"] != `\frac{1}{2}` {
		t.Errorf("solution_md = %q, want unchanged", content["solution_md"])
	}
	want := PageStats{Samples: 1, Fields: 2, FieldsChanged: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"object", `{"samples": []}`, false},
		{"trailing whitespace", "{\"samples\": []}\n\n", false},
		{"trailing value", `{"samples": []} {}`, true},
		{"trailing garbage", `{"samples": []}}`, true},
		{"truncated", `{"samples": [`, true},
		{"empty", ``, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodePage([]byte(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Errorf("decodePage(%q) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
			}
		})
	}
}

func TestEncodePage(t *testing.T) {
	page := mustDecodePage(t, `{"total": 12345678901234567890, "ratio": 1.50, "samples": [{"id": "a<b>&c"}]}`)
	out, err := encodePage(page)
	if err != nil {
		t.Fatalf("encodePage() error = %v", err)
	}

	want := `{
  "ratio": 1.50,
  "samples": [
    {
      "id": "a<b>&c"
    }
  ],
  "total": 12345678901234567890
}
`
	if string(out) != want {
		t.Errorf("encodePage() =\n%s\nwant\n%s", out, want)
	}
}
