package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClientStoreAndGet(t *testing.T) {
	client, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	folder := ReportFolderPath("Morchella esculenta", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))

	require.NoError(t, client.StoreFile(ctx, folder, ReportFileName, []byte("<html>report</html>")))

	data, err := client.GetFile(ctx, folder+"/"+ReportFileName)
	require.NoError(t, err)
	assert.Equal(t, "<html>report</html>", string(data))
}

func TestLocalClientGetMissingFile(t *testing.T) {
	client, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetFile(context.Background(), "2024/01/01/nope/report.html")
	assert.Error(t, err)
}

func TestLocalClientListReportsNewestFirst(t *testing.T) {
	client, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	timestamps := []time.Time{
		time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, ts := range timestamps {
		folder := ReportFolderPath("chanterelle", ts)
		require.NoError(t, client.StoreFile(ctx, folder, ReportFileName, []byte("r")))
		// Sibling files must not show up in the listing.
		require.NoError(t, client.StoreFile(ctx, folder, "seasonal.png", []byte{0x89}))
	}

	reports, err := client.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Contains(t, reports[0], "2024/03/15")
	assert.Contains(t, reports[1], "2024/01/05")
	assert.Contains(t, reports[2], "2023/12/31")
}

func TestLocalClientListReportsLimit(t *testing.T) {
	client, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	for day := 1; day <= 5; day++ {
		folder := ReportFolderPath("bolete", time.Date(2024, 6, day, 12, 0, 0, 0, time.UTC))
		require.NoError(t, client.StoreFile(ctx, folder, ReportFileName, []byte("r")))
	}

	reports, err := client.ListReports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Contains(t, reports[0], "2024/06/05")
}

func TestReportFolderPath(t *testing.T) {
	ts := time.Date(2024, 3, 5, 8, 7, 6, 0, time.UTC)
	assert.Equal(t, "2024/03/05/amanita_muscaria-2024-03-05-08-07-06",
		ReportFolderPath("Amanita muscaria", ts))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "king_bolete", Slugify("  King Bolete "))
	assert.Equal(t, "a_b", Slugify("a/b"))
	assert.Equal(t, "report", Slugify(""))
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "text/html", GetContentType("report.html"))
	assert.Equal(t, "image/png", GetContentType("seasonal.png"))
	assert.Equal(t, "application/json", GetContentType("taxon_12345.json"))
	assert.Equal(t, "application/octet-stream", GetContentType("blob.bin"))
}
