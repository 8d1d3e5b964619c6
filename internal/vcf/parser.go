// Package vcf is the record-oriented variant backend, reading plain or
// gzipped VCF files.
package vcf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/variant"
)

// Parser streams records from a VCF file in physical order, tracking the
// byte offset of each record within the uncompressed stream.
type Parser struct {
	reader      *bufio.Reader
	file        *os.File
	gzipReader  *gzip.Reader
	lineNumber  int
	offset      int64 // bytes of the uncompressed stream consumed so far
	dataOffset  int64 // offset of the first data line
	contigs     []genome.Contig
	sampleNames []string
}

// NewParser creates a parser for the given file. Supports plain VCF and
// gzipped VCF (.vcf.gz); gzip is detected from the magic bytes, not the
// extension.
func NewParser(path string) (*Parser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	_, err = file.Read(buf)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read vcf header: %w", err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek vcf file: %w", err)
	}

	if buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// parseHeader reads the meta lines, collecting ##contig declarations and the
// sample names from the #CHROM column line.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++
		p.offset += int64(len(line))

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			if strings.HasPrefix(line, "##contig=") {
				if c, ok := parseContigLine(line); ok {
					p.contigs = append(p.contigs, c)
				}
			}
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			// Sample names are the columns after FORMAT (index 9+).
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				p.sampleNames = fields[9:]
			}
			p.dataOffset = p.offset
			return nil
		}

		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// parseContigLine extracts name and length from a ##contig meta line, e.g.
// ##contig=<ID=chr1,length=248956422>. Length is optional; when absent the
// contig length is unknown.
func parseContigLine(line string) (genome.Contig, bool) {
	name := headerField(line, "ID")
	if name == "" {
		return genome.Contig{}, false
	}
	c := genome.Contig{Name: name, Length: genome.MaxPos}
	if l := headerField(line, "length"); l != "" {
		if n, err := strconv.ParseInt(l, 10, 64); err == nil {
			c.Length = n
		}
	}
	return c, true
}

// headerField extracts a key=value field from a structured header line.
func headerField(input, name string) string {
	field := name + "="
	for {
		start := strings.Index(input, field)
		if start == -1 {
			return ""
		}
		if start > 0 && input[start-1] != ',' && input[start-1] != '<' {
			input = input[start+len(field):]
			continue
		}
		input = input[start+len(field):]
		if end := strings.IndexAny(input, ",>"); end > 0 {
			return input[:end]
		}
		return input
	}
}

// Next reads the next record, returning it with the byte offset of its line
// within the uncompressed stream. Returns nil, 0, nil after the last record.
func (p *Parser) Next() (*variant.Record, int64, error) {
	for {
		lineOffset := p.offset
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, 0, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" {
			return nil, 0, nil
		}
		p.lineNumber++
		p.offset += int64(len(line))

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue // skip empty lines
		}

		rec, perr := parseLine(line, p.lineNumber)
		if perr != nil {
			return nil, 0, perr
		}
		return rec, lineOffset, nil
	}
}

// parseLine parses a single VCF data line. POS is converted from the file's
// 1-based coordinate to the engine's 0-based coordinate.
func parseLine(line string, lineNumber int) (*variant.Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, _ = strconv.ParseFloat(fields[5], 64)
	}

	// A "." ALT marks a monomorphic record: no alternate alleles.
	var alts []string
	if fields[4] != "." {
		alts = strings.Split(fields[4], ",")
	}

	return &variant.Record{
		Chrom: fields[0],
		Pos:   pos - 1,
		ID:    fields[2],
		Ref:   fields[3],
		Alts:  alts,
		Qual:  qual,
		Pass:  fields[6] == "PASS" || fields[6] == ".",
	}, nil
}

// Contigs returns the contigs declared in the header, in header order.
func (p *Parser) Contigs() []genome.Contig {
	return p.contigs
}

// SampleNames returns the sample names from the #CHROM header line.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// DataOffset returns the byte offset of the first data line.
func (p *Parser) DataOffset() int64 {
	return p.dataOffset
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
