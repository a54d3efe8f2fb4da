package storage

import (
	"sort"

	"github.com/hacknation/dataset-publisher/internal/models"
)

// Stats holds the aggregate counts shown on the operations dashboard
type Stats struct {
	Datasets          int           `json:"datasets"`
	Datafiles         int           `json:"datafiles"`
	Docs              int           `json:"docs"`
	Publishers        int           `json:"publishers"`
	Published         int           `json:"published"`
	Drafts            int           `json:"drafts"`
	WithNoDatafiles   int           `json:"with_no_datafiles"`
	DatafilesByFormat []FormatCount `json:"datafiles_by_format"`
}

// FormatCount is the number of datafiles with one format
type FormatCount struct {
	Format string `json:"format"`
	Count  int    `json:"count"`
}

func computeStats(datasets []*models.Dataset) *Stats {
	st := &Stats{}
	publishers := make(map[int64]struct{})
	formats := make(map[string]int)

	for _, ds := range datasets {
		st.Datasets++
		publishers[ds.OrganisationID] = struct{}{}
		switch ds.Status {
		case models.StatusPublished:
			st.Published++
		case models.StatusDraft:
			st.Drafts++
		}
		if len(ds.Links) == 0 {
			st.WithNoDatafiles++
		}
		st.Datafiles += len(ds.Links)
		st.Docs += len(ds.Docs)
		for _, l := range ds.Links {
			formats[l.Format]++
		}
	}
	st.Publishers = len(publishers)
	st.DatafilesByFormat = sortFormats(formats)
	return st
}

// sortFormats orders formats by count, most common first
func sortFormats(formats map[string]int) []FormatCount {
	out := make([]FormatCount, 0, len(formats))
	for f, n := range formats {
		out = append(out, FormatCount{Format: f, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Format < out[j].Format
	})
	return out
}
