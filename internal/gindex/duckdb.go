package gindex

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// ExportDuckDB writes the position index into a DuckDB database as a
// `variants` table, so pipelines can run analytical SQL over the variant
// catalog without touching the source file. Use an empty path for an
// in-memory database (tests).
func ExportDuckDB(ix *Index, path string) error {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()
	return exportDuckDB(ix, db)
}

func exportDuckDB(ix *Index, db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS variants (
		contig VARCHAR,
		start BIGINT,
		end_ BIGINT,
		record INTEGER,
		byte_offset BIGINT,
		alleles INTEGER,
		kind INTEGER,
		qual FLOAT,
		pass BOOLEAN
	)`); err != nil {
		return fmt.Errorf("create variants table: %w", err)
	}

	conn, err := db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "variants")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, c := range ix.Contigs {
		for _, e := range c.Entries {
			if err := appender.AppendRow(
				c.Contig.Name, e.Pos, e.End,
				int32(e.Record), e.Byte,
				int32(e.Alleles), int32(e.Kind),
				e.Qual, e.Pass,
			); err != nil {
				return fmt.Errorf("append variant row: %w", err)
			}
		}
	}

	return appender.Flush()
}
