package models

// DCATDataset represents a dataset in DCAT-AP format
type DCATDataset struct {
	Context       string             `json:"@context"`
	Type          string             `json:"@type"`
	ID            string             `json:"@id"`
	Identifier    string             `json:"dct:identifier"`
	Title         string             `json:"dct:title"`
	Description   string             `json:"dct:description"`
	Abstract      string             `json:"dct:abstract,omitempty"`
	Issued        string             `json:"dct:issued,omitempty"`
	Modified      string             `json:"dct:modified"`
	Publisher     DCATPublisher      `json:"dct:publisher"`
	Theme         []string           `json:"dcat:theme,omitempty"`
	Spatial       *DCATSpatial       `json:"dct:spatial,omitempty"`
	Temporal      *DCATTemporal      `json:"dct:temporal,omitempty"`
	Periodicity   string             `json:"dct:accrualPeriodicity,omitempty"`
	Distribution  []DCATDistribution `json:"dcat:distribution"`
	Documentation []string           `json:"foaf:page,omitempty"`
	License       string             `json:"dct:license,omitempty"`
}

// DCATPublisher represents the publishing organisation
type DCATPublisher struct {
	Type string `json:"@type"`
	ID   string `json:"@id"`
}

// DCATSpatial represents geographic coverage
type DCATSpatial struct {
	Type  string `json:"@type"`
	Label string `json:"skos:prefLabel"`
}

// DCATTemporal represents the period covered by the data
type DCATTemporal struct {
	Type    string `json:"@type"`
	EndDate string `json:"dcat:endDate"`
}

// DCATDistribution represents a downloadable data file
type DCATDistribution struct {
	Type      string `json:"@type"`
	Title     string `json:"dct:title"`
	Format    string `json:"dct:format,omitempty"`
	AccessURL string `json:"dcat:accessURL"`
	EndDate   string `json:"dcat:endDate,omitempty"`
}
