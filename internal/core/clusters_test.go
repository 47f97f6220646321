package core_test

import (
	"net/http"
	"strings"
	"testing"
	"toden-backend/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClusterSummary(t *testing.T) {
	csv := "ID,0,1\n\"AlgoX\",\"g1,g2\",\"g3\"\n"

	summary, err := core.ParseClusterSummary(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "0", "1"}, summary.Header)
	assert.Equal(t, "AlgoX", summary.Algorithm)
	assert.Equal(t, []string{"g1,g2", "g3"}, summary.Clusters)
}

func TestParseClusterSummary_IgnoresTrailingRows(t *testing.T) {
	base := "ID,0,1\nAlgoX,\"g1,g2\",g3\n"

	expected, err := core.ParseClusterSummary(strings.NewReader(base))
	require.NoError(t, err)

	for _, trailing := range []string{
		"AlgoY,g4,g5\n",
		"AlgoY,g4\nAlgoZ,g6,g7,g8\n",
		"unterminated,\"quote\n",
	} {
		summary, err := core.ParseClusterSummary(strings.NewReader(base + trailing))
		require.NoError(t, err)
		assert.Equal(t, expected, summary)
	}
}

func TestParseClusterSummary_TooFewRows(t *testing.T) {
	for _, csv := range []string{"", "ID,0,1\n"} {
		_, err := core.ParseClusterSummary(strings.NewReader(csv))
		require.Error(t, err)
		assert.Equal(t, core.MissingInput, core.KindOf(err, core.IOError))
		assert.Equal(t, http.StatusBadRequest, core.KindOf(err, core.IOError).HTTPStatus())
		assert.Equal(t, "CSV file does not have the required rows", err.Error())
	}
}

func TestSplitGoIds(t *testing.T) {
	assert.Equal(t, []string{"g1", "g2"}, core.SplitGoIds("g1,g2"))
	assert.Equal(t, []string{"g1", "g2"}, core.SplitGoIds(" g1 , ,g2, "))
	assert.Equal(t, []string{}, core.SplitGoIds(""))
	assert.NotNil(t, core.SplitGoIds(""))
}

func TestClusterSummary_Nodes(t *testing.T) {
	summary := core.ClusterSummary{
		Header:    []string{"ID", "0", "1", "2"},
		Algorithm: " AlgoX ",
		Clusters:  []string{"GO:3, GO:1", "GO:2,GO:1", ""},
	}

	nodes := summary.Nodes()
	assert.Equal(t, "AlgoX", nodes.Algorithm)
	assert.Equal(t, [][]string{{"GO:3", "GO:1"}, {"GO:2", "GO:1"}, {}}, nodes.Clusters)
	assert.Equal(t, []string{"GO:1", "GO:2", "GO:3"}, nodes.SortedNodes)
	assert.Equal(t, 3, nodes.NumClusters)
}

func TestReadClusterRows(t *testing.T) {
	csv := "ID,0,1\n\"AlgoX\",\"g1,g2\",\"g3\"\nAlgoY,\"\",g4\n"

	rows, err := core.ReadClusterRows(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []core.ClusterRow{
		{Algorithm: "AlgoX", Clusters: [][]string{{"g1", "g2"}, {"g3"}}},
		{Algorithm: "AlgoY", Clusters: [][]string{{}, {"g4"}}},
	}, rows)
}

func TestReadClusterRows_Empty(t *testing.T) {
	_, err := core.ReadClusterRows(strings.NewReader(""))
	require.Error(t, err)

	rows, err := core.ReadClusterRows(strings.NewReader("ID,0\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
