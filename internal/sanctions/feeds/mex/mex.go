// Package mex parses the Mexican federal list of sanctioned public servants
// and suppliers (CSV with a header on the first line).
package mex

import (
	"fmt"
	"log/slog"

	"pldft/internal/sanctions/feeds"
	"pldft/internal/sanctions/models"
	"pldft/pkg/platform/text"
)

const (
	dataIDPrefix = "MEX-"
	listType     = "National"

	colCase           = "expediente"
	colName           = "nombre"
	colPaternal       = "apellido_paterno"
	colMaternal       = "apellido_materno"
	colAgency         = "dependencia"
	colAuthority      = "autoridad"
	colCause          = "causa"
	colPenalty        = "sancion_impuesta"
	colLaw            = "ley"
	colResolutionDate = "fecha_resolucion"
	colStartDate      = "inicio"
	colRFC            = "rfc"
)

// Adapter parses the CSV export.
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
	return models.SourceMexSancionados
}

func (a *Adapter) Parse(raw []byte) (*feeds.Batch, error) {
	table, err := feeds.ReadTable(a.Source(), feeds.DecodeText(raw))
	if err != nil {
		return nil, err
	}
	if !table.HasColumn(colCase) {
		return nil, &feeds.ParseError{Source: a.Source(), Reason: fmt.Sprintf("missing %q column", colCase)}
	}

	batch := &feeds.Batch{
		Records: make([]models.CanonicalRecord, 0, len(table.Rows)),
		Skipped: table.Malformed,
	}
	for _, row := range table.Rows {
		caseNumber := row.Get(colCase)
		if caseNumber == "" {
			batch.Skipped++
			continue
		}
		batch.Records = append(batch.Records, a.toRecord(caseNumber, row))
	}
	if batch.Skipped > 0 {
		a.logger.Warn("skipped MEX rows", "source", a.Source(), "skipped", batch.Skipped)
	}
	return batch, nil
}

func (a *Adapter) toRecord(caseNumber string, row feeds.Row) models.CanonicalRecord {
	listedOn := feeds.ParseISODate(row.Get(colResolutionDate))
	if listedOn == nil && row.Get(colResolutionDate) != "" {
		a.logger.Debug("unparsable resolution date", "source", a.Source(), "expediente", caseNumber)
	}

	return models.CanonicalRecord{
		Source:          a.Source(),
		DataID:          dataIDPrefix + caseNumber,
		EntityName:      text.JoinNonEmpty(" ", row.Get(colName), row.Get(colPaternal), row.Get(colMaternal)),
		Program:         fmt.Sprintf("%s - %s", row.Get(colAgency), row.Get(colAuthority)),
		Remarks:         fmt.Sprintf("%s. Sancion: %s. Ley: %s", row.Get(colCause), row.Get(colPenalty), row.Get(colLaw)),
		ReferenceNumber: caseNumber,
		ListType:        listType,
		ListedOn:        listedOn,
		SanctionDate:    feeds.ParseISODate(row.Get(colStartDate)),
		StrongKey:       text.StrongKey(row.Get(colRFC)),
	}
}
