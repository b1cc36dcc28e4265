// Package sat parses the SAT article 69-B list of presumed invoice mills.
//
// The published CSV starts with free-text preamble lines; the header row is
// located by looking for the RFC and taxpayer-name columns.
package sat

import (
	"log/slog"
	"strings"

	"pldft/internal/sanctions/feeds"
	"pldft/internal/sanctions/models"
	"pldft/pkg/platform/text"
)

const (
	dataIDPrefix = "SAT-69B-"
	program      = "SAT 69-B - Empresas Factureras"
	listType     = "National"

	colRFC       = "RFC"
	colName      = "Nombre del Contribuyente"
	colSituation = "Situación del Contribuyente"
	colPublished = "Fecha de publicación página SAT presuntos"
)

// headerMarkers must all appear on the header line.
var headerMarkers = []string{colRFC, colName}

// Adapter parses the 69-B CSV.
type Adapter struct {
	logger *slog.Logger
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Source() string {
	return models.SourceSAT69B
}

func (a *Adapter) Parse(raw []byte) (*feeds.Batch, error) {
	content := feeds.DecodeText(raw)
	start, ok := locateHeader(content)
	if !ok {
		return nil, &feeds.ParseError{Source: a.Source(), Reason: "locate header", Err: feeds.ErrHeaderNotFound}
	}

	table, err := feeds.ReadTable(a.Source(), content[start:])
	if err != nil {
		return nil, err
	}

	batch := &feeds.Batch{
		Records: make([]models.CanonicalRecord, 0, len(table.Rows)),
		Skipped: table.Malformed,
	}
	for _, row := range table.Rows {
		rfc := row.Get(colRFC)
		name := row.Get(colName)
		if rfc == "" || name == "" {
			batch.Skipped++
			continue
		}
		published := feeds.ParseDate(row.Get(colPublished), feeds.LayoutDMY)
		batch.Records = append(batch.Records, models.CanonicalRecord{
			Source:          a.Source(),
			DataID:          dataIDPrefix + rfc,
			EntityName:      text.JoinNonEmpty(" ", name),
			Program:         program,
			Remarks:         "Situación: " + row.Get(colSituation) + ".",
			ReferenceNumber: rfc,
			ListType:        listType,
			ListedOn:        published,
			SanctionDate:    published,
			StrongKey:       text.StrongKey(rfc),
		})
	}
	if batch.Skipped > 0 {
		a.logger.Warn("skipped SAT rows", "source", a.Source(), "skipped", batch.Skipped)
	}
	return batch, nil
}

// locateHeader returns the byte offset of the first line carrying every
// header marker.
func locateHeader(content string) (int, bool) {
	offset := 0
	for offset <= len(content) {
		end := strings.IndexByte(content[offset:], '\n')
		line := content[offset:]
		if end >= 0 {
			line = content[offset : offset+end]
		}
		if hasMarkers(line) {
			return offset, true
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return 0, false
}

func hasMarkers(line string) bool {
	folded := text.Fold(line)
	for _, m := range headerMarkers {
		if !strings.Contains(folded, text.Fold(m)) {
			return false
		}
	}
	return true
}
