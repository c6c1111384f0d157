package catalog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const isbnMarker = "ISBN"

// Parse decodes an SRU searchRetrieve response and returns the Dublin Core
// records it carries. Records without an ISBN are dropped. A body that is not
// well-formed XML fails as a whole with ErrMalformedInput.
func Parse(data []byte) ([]Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	records := make([]Record, 0)
	depth := 0
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("%w: text outside the root element", ErrMalformedInput)
			}
		case xml.EndElement:
			depth--
		case xml.StartElement:
			if depth == 0 && sawRoot {
				return nil, fmt.Errorf("%w: more than one root element", ErrMalformedInput)
			}
			sawRoot = true
			if t.Name.Local != "recordData" {
				depth++
				continue
			}

			// parseRecordData consumes the matching end tag.
			found, err := parseRecordData(dec)
			if err != nil {
				return nil, err
			}
			records = append(records, found...)
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedInput)
	}
	return records, nil
}

// parseRecordData consumes the children of a recordData element up to and
// including its end tag.
func parseRecordData(dec *xml.Decoder) ([]Record, error) {
	var records []Record
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, unexpectedEOF(err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "dc" {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedInput, unexpectedEOF(err))
				}
				continue
			}
			rec, err := parseDublinCore(dec)
			if err != nil {
				return nil, err
			}
			if rec.ISBN == "" {
				continue
			}
			records = append(records, rec)
		case xml.EndElement:
			return records, nil
		}
	}
}

// parseDublinCore fills a Record from the children of an oai_dc:dc element.
func parseDublinCore(dec *xml.Decoder) (Record, error) {
	var rec Record
	for {
		tok, err := dec.Token()
		if err != nil {
			return rec, fmt.Errorf("%w: %v", ErrMalformedInput, unexpectedEOF(err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			if err := dec.DecodeElement(&text, &t); err != nil {
				return rec, fmt.Errorf("%w: %v", ErrMalformedInput, unexpectedEOF(err))
			}
			applyElement(&rec, t.Name.Local, strings.TrimSpace(text))
		case xml.EndElement:
			return rec, nil
		}
	}
}

func applyElement(rec *Record, tag, text string) {
	switch tag {
	case "identifier":
		if strings.Contains(text, isbnMarker) {
			rec.ISBN = strings.TrimSpace(strings.ReplaceAll(text, isbnMarker, ""))
			return
		}
		rec.Identifiers = appendUnique(rec.Identifiers, text)
	case "creator":
		rec.Authors = append(rec.Authors, text)
	case "title":
		rec.Title = text
	case "publisher":
		rec.Publisher = text
	case "language":
		rec.Languages = appendUnique(rec.Languages, text)
	case "type":
		rec.Types = appendUnique(rec.Types, text)
	case "format":
		rec.Format = text
	case "date":
		rec.Date = text
	case "rights":
		rec.Rights = appendUnique(rec.Rights, text)
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
