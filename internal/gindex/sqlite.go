package gindex

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteRow mirrors one index entry in the exported table.
type sqliteRow struct {
	Contig  string  `db:"contig"`
	Start   int64   `db:"start"`
	End     int64   `db:"end_"`
	Record  uint32  `db:"record"`
	Byte    int64   `db:"byte_offset"`
	Alleles uint16  `db:"alleles"`
	Kind    uint8   `db:"kind"`
	Qual    float32 `db:"qual"`
	Pass    bool    `db:"pass"`
}

// ExportSQLite writes the position index into a SQLite database as a
// `variants` table, following the shape of the bgenix .bgi sidecar so
// existing tooling can query it. Use ":memory:" for an in-memory database
// (tests).
func ExportSQLite(ix *Index, path string) error {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	return exportSQLite(ix, db)
}

func exportSQLite(ix *Index, db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS variants (
		contig TEXT NOT NULL,
		start INTEGER NOT NULL,
		end_ INTEGER NOT NULL,
		record INTEGER NOT NULL,
		byte_offset INTEGER NOT NULL,
		alleles INTEGER NOT NULL,
		kind INTEGER NOT NULL,
		qual REAL,
		pass INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create variants table: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO variants
		(contig, start, end_, record, byte_offset, alleles, kind, qual, pass)
		VALUES (:contig, :start, :end_, :record, :byte_offset, :alleles, :kind, :qual, :pass)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range ix.Contigs {
		for _, e := range c.Entries {
			row := sqliteRow{
				Contig:  c.Contig.Name,
				Start:   e.Pos,
				End:     e.End,
				Record:  e.Record,
				Byte:    e.Byte,
				Alleles: e.Alleles,
				Kind:    e.Kind,
				Qual:    e.Qual,
				Pass:    e.Pass,
			}
			if _, err := stmt.Exec(row); err != nil {
				return fmt.Errorf("insert variant row: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_variants_pos ON variants (contig, start)`); err != nil {
		return fmt.Errorf("create position index: %w", err)
	}
	return tx.Commit()
}
