package gss

import (
	"cmp"
	"slices"
	"time"
)

// StagedFile is a screenshot in the staging directory with its parsed name.
type StagedFile struct {
	Path   string
	Name   string
	Title  string
	Time   time.Time
	Manual bool
}

// Cluster is a run of staged files for one title with no internal gap at or
// above the session gap threshold. Files are sorted by time.
type Cluster struct {
	Title string
	Files []StagedFile
}

// Start returns the first timestamp in the cluster.
func (c Cluster) Start() time.Time { return c.Files[0].Time }

// End returns the last timestamp in the cluster.
func (c Cluster) End() time.Time { return c.Files[len(c.Files)-1].Time }

// BuildClusters groups files by title, sorts each title by time, and starts a
// new cluster whenever consecutive files are gap or more apart. The result
// is ordered by cluster start across all titles.
func BuildClusters(files []StagedFile, gap time.Duration) []Cluster {
	byTitle := make(map[string][]StagedFile)
	for _, f := range files {
		byTitle[f.Title] = append(byTitle[f.Title], f)
	}

	var clusters []Cluster
	for title, group := range byTitle {
		slices.SortStableFunc(group, func(a, b StagedFile) int {
			if c := a.Time.Compare(b.Time); c != 0 {
				return c
			}
			return cmp.Compare(a.Name, b.Name)
		})

		current := Cluster{Title: title, Files: []StagedFile{group[0]}}
		for _, f := range group[1:] {
			if f.Time.Sub(current.End()) >= gap {
				clusters = append(clusters, current)
				current = Cluster{Title: title}
			}
			current.Files = append(current.Files, f)
		}
		clusters = append(clusters, current)
	}

	slices.SortStableFunc(clusters, func(a, b Cluster) int {
		if c := a.Start().Compare(b.Start()); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return clusters
}
