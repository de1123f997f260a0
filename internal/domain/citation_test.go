package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCitations_SingleMarker(t *testing.T) {
	answer := "The cache is bounded by memory. [citation:1]"

	citations, dropped := ExtractCitations(answer, 3)
	require.Zero(t, dropped)
	require.Len(t, citations, 1)
	require.Equal(t, 1, citations[0].PassageOrdinal)
	require.Equal(t, "The cache is bounded by memory", citations[0].Span)
}

func TestExtractCitations_MultipleSentences(t *testing.T) {
	answer := "First fact here.[citation:2] Second fact follows. [citation:1]"

	citations, dropped := ExtractCitations(answer, 2)
	require.Zero(t, dropped)
	require.Len(t, citations, 2)
	require.Equal(t, 2, citations[0].PassageOrdinal)
	require.Equal(t, "First fact here", citations[0].Span)
	require.Equal(t, 1, citations[1].PassageOrdinal)
	require.Equal(t, "Second fact follows", citations[1].Span)
}

func TestExtractCitations_AdjacentMarkersShareSpan(t *testing.T) {
	answer := "Both passages agree on this point.[citation:1][citation:2]"

	citations, dropped := ExtractCitations(answer, 2)
	require.Zero(t, dropped)
	require.Len(t, citations, 2)
	require.Equal(t, citations[0].Span, citations[1].Span)
	require.Equal(t, "Both passages agree on this point", citations[1].Span)
}

func TestExtractCitations_OutOfRangeDropped(t *testing.T) {
	answer := "Valid claim. [citation:1] Phantom claim. [citation:7]"

	citations, dropped := ExtractCitations(answer, 2)
	require.Equal(t, 1, dropped)
	require.Len(t, citations, 1)
	require.Equal(t, 1, citations[0].PassageOrdinal)
}

func TestExtractCitations_ZeroPassages(t *testing.T) {
	citations, dropped := ExtractCitations("Claim. [citation:1]", 0)
	require.Equal(t, 1, dropped)
	require.Empty(t, citations)
}

func TestExtractCitations_BareNumericNotRecognized(t *testing.T) {
	citations, dropped := ExtractCitations("Old style anchor. [1]", 3)
	require.Zero(t, dropped)
	require.Empty(t, citations)
}

func TestExtractCitations_NoMarkers(t *testing.T) {
	citations, dropped := ExtractCitations("Plain answer without markers.", 5)
	require.Zero(t, dropped)
	require.Empty(t, citations)
}

func TestExtractCitations_RepeatedOrdinal(t *testing.T) {
	answer := "One claim. [citation:1] Another claim. [citation:1]"

	citations, dropped := ExtractCitations(answer, 1)
	require.Zero(t, dropped)
	require.Len(t, citations, 2)
	require.Equal(t, 1, citations[0].PassageOrdinal)
	require.Equal(t, 1, citations[1].PassageOrdinal)
	require.NotEqual(t, citations[0].Span, citations[1].Span)
}
