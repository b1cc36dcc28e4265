// Package un parses the UN Security Council consolidated list (XML).
package un

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"pldft/internal/sanctions/feeds"
	"pldft/internal/sanctions/models"
	"pldft/pkg/platform/text"
)

// consolidatedList mirrors the feed document. Every repeated element is
// decoded into a slice, so a list holding a single <INDIVIDUAL> and one holding
// many come out with the same shape.
type consolidatedList struct {
	XMLName     xml.Name     `xml:"CONSOLIDATED_LIST"`
	Individuals []individual `xml:"INDIVIDUALS>INDIVIDUAL"`
}

type individual struct {
	DataID          string        `xml:"DATAID"`
	FirstName       string        `xml:"FIRST_NAME"`
	SecondName      string        `xml:"SECOND_NAME"`
	ThirdName       string        `xml:"THIRD_NAME"`
	FourthName      string        `xml:"FOURTH_NAME"`
	ListType        string        `xml:"UN_LIST_TYPE"`
	ReferenceNumber string        `xml:"REFERENCE_NUMBER"`
	ListedOn        string        `xml:"LISTED_ON"`
	Gender          string        `xml:"GENDER"`
	Comments        string        `xml:"COMMENTS1"`
	Nationality     []string      `xml:"NATIONALITY>VALUE"`
	Designation     []string      `xml:"DESIGNATION>VALUE"`
	LastDayUpdated  []string      `xml:"LAST_DAY_UPDATED>VALUE"`
	Aliases         []alias       `xml:"INDIVIDUAL_ALIAS"`
	Addresses       []address     `xml:"INDIVIDUAL_ADDRESS"`
	BirthDates      []dateOfBirth `xml:"INDIVIDUAL_DATE_OF_BIRTH"`
	BirthPlaces     []place       `xml:"INDIVIDUAL_PLACE_OF_BIRTH"`
	Documents       []document    `xml:"INDIVIDUAL_DOCUMENT"`
}

type alias struct {
	Quality string `xml:"QUALITY"`
	Name    string `xml:"ALIAS_NAME"`
	Note    string `xml:"NOTE"`
}

type address struct {
	Street        string `xml:"STREET"`
	City          string `xml:"CITY"`
	StateProvince string `xml:"STATE_PROVINCE"`
	Country       string `xml:"COUNTRY"`
	Note          string `xml:"NOTE"`
}

type dateOfBirth struct {
	TypeOfDate string `xml:"TYPE_OF_DATE"`
	Date       string `xml:"DATE"`
	Year       string `xml:"YEAR"`
	FromYear   string `xml:"FROM_YEAR"`
	ToYear     string `xml:"TO_YEAR"`
}

type place struct {
	City          string `xml:"CITY"`
	StateProvince string `xml:"STATE_PROVINCE"`
	Country       string `xml:"COUNTRY"`
}

type document struct {
	Type           string `xml:"TYPE_OF_DOCUMENT"`
	Number         string `xml:"NUMBER"`
	IssuingCountry string `xml:"ISSUING_COUNTRY"`
	Note           string `xml:"NOTE"`
}

// Adapter parses the consolidated list XML.
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
	return models.SourceUNConsolidated
}

func (a *Adapter) Parse(raw []byte) (*feeds.Batch, error) {
	var doc consolidatedList
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, &feeds.ParseError{Source: a.Source(), Reason: "invalid XML document", Err: err}
	}

	batch := &feeds.Batch{Records: make([]models.CanonicalRecord, 0, len(doc.Individuals))}
	for _, ind := range doc.Individuals {
		record, ok := a.toRecord(ind)
		if !ok {
			batch.Skipped++
			continue
		}
		batch.Records = append(batch.Records, record)
	}
	if batch.Skipped > 0 {
		a.logger.Warn("dropped UN entries without DATAID", "source", a.Source(), "skipped", batch.Skipped)
	}
	return batch, nil
}

// charsetReader decodes the single-byte charsets older exports declare. The
// decoder only calls it for documents not declared as UTF-8.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "iso_8859-1", "latin1", "latin-1", "l1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "us-ascii", "ascii", "utf8":
		return input, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}

func (a *Adapter) toRecord(ind individual) (models.CanonicalRecord, bool) {
	dataID := strings.TrimSpace(ind.DataID)
	if dataID == "" {
		return models.CanonicalRecord{}, false
	}

	listedOn := feeds.ParseDate(ind.ListedOn, feeds.LayoutISODate, feeds.LayoutYear)
	lastUpdated := lastDate(ind.LastDayUpdated)
	nationalities := text.DedupeAndTrim(ind.Nationality)
	listType := strings.TrimSpace(ind.ListType)

	return models.CanonicalRecord{
		Source:          a.Source(),
		DataID:          dataID,
		EntityName:      text.JoinNonEmpty(" ", ind.FirstName, ind.SecondName, ind.ThirdName, ind.FourthName),
		Program:         listType,
		ListType:        listType,
		Remarks:         strings.TrimSpace(ind.Comments),
		ReferenceNumber: strings.TrimSpace(ind.ReferenceNumber),
		Gender:          strings.TrimSpace(ind.Gender),
		Nationality:     strings.Join(nationalities, ", "),
		ListedOn:        listedOn,
		SanctionDate:    listedOn,
		LastUpdated:     lastUpdated,
		Designations:    text.DedupeAndTrim(ind.Designation),
		Aliases:         toAliases(ind.Aliases),
		Addresses:       toAddresses(ind.Addresses),
		BirthDates:      toBirthDates(ind.BirthDates),
		BirthPlaces:     toPlaces(ind.BirthPlaces),
		Documents:       toDocuments(ind.Documents),
	}, true
}

func lastDate(values []string) *time.Time {
	for i := len(values) - 1; i >= 0; i-- {
		if strings.TrimSpace(values[i]) != "" {
			return feeds.ParseDate(values[i], feeds.LayoutISODate, feeds.LayoutYear)
		}
	}
	return nil
}

func toAliases(in []alias) []models.Alias {
	out := make([]models.Alias, 0, len(in))
	for _, a := range in {
		name := text.JoinNonEmpty(" ", a.Name)
		if name == "" {
			continue
		}
		out = append(out, models.Alias{
			Quality: strings.TrimSpace(a.Quality),
			Name:    name,
			Note:    strings.TrimSpace(a.Note),
		})
	}
	return out
}

func toAddresses(in []address) []models.Address {
	out := make([]models.Address, 0, len(in))
	for _, a := range in {
		addr := models.Address{
			Street:        strings.TrimSpace(a.Street),
			City:          strings.TrimSpace(a.City),
			StateProvince: strings.TrimSpace(a.StateProvince),
			Country:       strings.TrimSpace(a.Country),
			Note:          strings.TrimSpace(a.Note),
		}
		if addr == (models.Address{}) {
			continue
		}
		out = append(out, addr)
	}
	return out
}

func toBirthDates(in []dateOfBirth) []models.BirthDate {
	out := make([]models.BirthDate, 0, len(in))
	for _, d := range in {
		bd := models.BirthDate{
			TypeOfDate: strings.TrimSpace(d.TypeOfDate),
			Date:       strings.TrimSpace(d.Date),
			Year:       strings.TrimSpace(d.Year),
			FromYear:   strings.TrimSpace(d.FromYear),
			ToYear:     strings.TrimSpace(d.ToYear),
		}
		if bd == (models.BirthDate{}) {
			continue
		}
		out = append(out, bd)
	}
	return out
}

func toPlaces(in []place) []models.Place {
	out := make([]models.Place, 0, len(in))
	for _, p := range in {
		pl := models.Place{
			City:          strings.TrimSpace(p.City),
			StateProvince: strings.TrimSpace(p.StateProvince),
			Country:       strings.TrimSpace(p.Country),
		}
		if pl == (models.Place{}) {
			continue
		}
		out = append(out, pl)
	}
	return out
}

func toDocuments(in []document) []models.Document {
	out := make([]models.Document, 0, len(in))
	for _, d := range in {
		doc := models.Document{
			Type:           strings.TrimSpace(d.Type),
			Number:         strings.TrimSpace(d.Number),
			IssuingCountry: strings.TrimSpace(d.IssuingCountry),
			Note:           strings.TrimSpace(d.Note),
		}
		if doc == (models.Document{}) {
			continue
		}
		out = append(out, doc)
	}
	return out
}
