package gindex

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportSQLite(t *testing.T) {
	ix, err := Build(testHandle(), nil)
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, exportSQLite(ix, db))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM variants"))
	assert.Equal(t, ix.Records(), n)

	var row sqliteRow
	require.NoError(t, db.Get(&row,
		"SELECT contig, start, end_, record, byte_offset, alleles, kind, qual, pass FROM variants ORDER BY record LIMIT 1"))
	assert.Equal(t, "chr1", row.Contig)
	assert.Equal(t, int64(10), row.Start)
	assert.Equal(t, int64(0), row.Byte)
	assert.Equal(t, uint16(2), row.Alleles)
}
