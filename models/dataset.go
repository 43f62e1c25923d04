package models

// DatasetCard ist ein Eintrag im Dataset-Index der Galerie.
type DatasetCard struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TaskType    string   `json:"taskType,omitempty"`
	SampleCount *int     `json:"sampleCount,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

// DatasetIndex entspricht data/index.json.
type DatasetIndex struct {
	Datasets []DatasetCard `json:"datasets"`
}

// DatasetMeta entspricht data/datasets/<id>/meta.json.
type DatasetMeta struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// DatasetPage ist eine paginierte JSON-Datei mit Samples eines Datasets.
// Samples bleiben ungetypt: content-Felder dürfen auch Zahlen oder null sein,
// und unbekannte Schlüssel werden unverändert durchgereicht.
type DatasetPage struct {
	DatasetID string `json:"datasetId"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
	Total     int    `json:"total"`
	Samples   []any  `json:"samples"`
}
