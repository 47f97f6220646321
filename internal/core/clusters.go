package core

import (
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strings"
)

// ClusterSummary is the view of a cluster CSV: the header row and the first
// data row split into the algorithm name and one field per cluster.
type ClusterSummary struct {
	Header    []string `json:"header"`
	Algorithm string   `json:"algorithm"`
	Clusters  []string `json:"clusters"`
}

func newClusterReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// ParseClusterSummary reads the header and the first data row. Any rows after
// the first data row are never read.
func ParseClusterSummary(r io.Reader) (ClusterSummary, error) {
	reader := newClusterReader(r)

	rows := make([][]string, 0, 2)
	for len(rows) < 2 {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ClusterSummary{}, Errorf(ParseError, "error parsing csv: %v", err)
		}
		rows = append(rows, row)
	}

	if len(rows) < 2 {
		return ClusterSummary{}, Errorf(MissingInput, "CSV file does not have the required rows")
	}

	data := rows[1]
	return ClusterSummary{
		Header:    rows[0],
		Algorithm: data[0],
		Clusters:  data[1:],
	}, nil
}

// SplitGoIds splits a cluster cell into its trimmed, non-empty members. It
// never returns nil so that empty cells serialize as [].
func SplitGoIds(cell string) []string {
	ids := []string{}
	for _, id := range strings.Split(cell, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type ClusterNodes struct {
	Algorithm   string     `json:"algorithm"`
	Clusters    [][]string `json:"clusters"`
	SortedNodes []string   `json:"sorted_nodes"`
	NumClusters int        `json:"num_clusters"`
}

// Nodes expands every cluster field into its members and collects the sorted
// set of distinct nodes across all clusters.
func (s ClusterSummary) Nodes() ClusterNodes {
	clusters := make([][]string, 0, len(s.Clusters))
	seen := make(map[string]struct{})
	for _, cell := range s.Clusters {
		members := SplitGoIds(cell)
		for _, m := range members {
			seen[m] = struct{}{}
		}
		clusters = append(clusters, members)
	}

	sorted := make([]string, 0, len(seen))
	for node := range seen {
		sorted = append(sorted, node)
	}
	sort.Strings(sorted)

	return ClusterNodes{
		Algorithm:   strings.TrimSpace(s.Algorithm),
		Clusters:    clusters,
		SortedNodes: sorted,
		NumClusters: max(len(s.Header)-1, 0),
	}
}

// ClusterRow is one data row of a cluster CSV.
type ClusterRow struct {
	Algorithm string
	Clusters  [][]string
}

// ReadClusterRows skips the header and yields every data row with its cluster
// cells split into members.
func ReadClusterRows(r io.Reader) ([]ClusterRow, error) {
	reader := newClusterReader(r)

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Errorf(ParseError, "csv file is empty")
		}
		return nil, Errorf(ParseError, "error reading csv header: %v", err)
	}

	var rows []ClusterRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Errorf(ParseError, "error parsing csv: %v", err)
		}

		row := ClusterRow{Algorithm: record[0], Clusters: make([][]string, 0, len(record)-1)}
		for _, cell := range record[1:] {
			row.Clusters = append(row.Clusters, SplitGoIds(cell))
		}
		rows = append(rows, row)
	}

	return rows, nil
}
