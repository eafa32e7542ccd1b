package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const renderedResultPage = `
Отслеживание

Местонахождение
Moscow Region
Действие
Arrived
Страна
Russia
Дата и время
2024-01-01 10:00

Контакты
`

func TestParseStatus_AnchorsAndFollowingLines(t *testing.T) {
	t.Parallel()

	status, err := parseStatus("TKRU4471976", renderedResultPage)
	require.NoError(t, err)
	require.Equal(t, "TKRU4471976", status.Number)
	require.Equal(t, "Moscow Region", status.Location)
	require.Equal(t, "Arrived", status.Action)
	require.Equal(t, "Russia", status.Country)
	require.Equal(t, "2024-01-01 10:00", status.Timestamp)
}

func TestParseStatus_MissingAnchorIsParseFailure(t *testing.T) {
	t.Parallel()

	_, err := parseStatus("TKRU4471976", "Местонахождение\nMoscow\nДействие\nArrived\n")
	require.ErrorIs(t, err, ErrParse)
}

func TestParseStatus_AnchorMatchedBySubstring(t *testing.T) {
	t.Parallel()

	page := "📍 Местонахождение:\nTver\n⚙️ Действие:\nDeparted\n🌍 Страна:\nRussia\n🕒 Дата и время:\n2024-02-02 08:30"
	status, err := parseStatus("TKRU0000001", page)
	require.NoError(t, err)
	require.Equal(t, "Tver", status.Location)
	require.Equal(t, "Departed", status.Action)
}

func TestParseStatus_AnchorOnLastLine(t *testing.T) {
	t.Parallel()

	page := "Местонахождение\nMoscow\nДействие\nArrived\nСтрана\nRussia\nДата и время"
	status, err := parseStatus("TKRU0000002", page)
	require.NoError(t, err)
	require.Equal(t, "N/A", status.Timestamp)
}

func TestSplitLines_TrimsAndDropsEmpty(t *testing.T) {
	t.Parallel()

	lines := splitLines("  a  \n\n\t\nb\n   ")
	require.Equal(t, []string{"a", "b"}, lines)
}
