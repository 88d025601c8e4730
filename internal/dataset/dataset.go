package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// TalkRecord is one row of the talk dataset. DescriptionVector and SdgTags
// are derived columns filled in by the materializer.
type TalkRecord struct {
	Title             string
	Description       string
	URL               string
	DescriptionVector []float32
	SdgTags           []string
}

// Dataset is an ordered, insertion-order-preserving collection of talks.
// After initialization completes it is never mutated, so any number of
// request handlers can read it without locks.
type Dataset struct {
	Records []TalkRecord
}

// Len returns the number of talks.
func (d *Dataset) Len() int { return len(d.Records) }

// DescriptionVectors returns the row-aligned description vectors.
func (d *Dataset) DescriptionVectors() [][]float32 {
	vectors := make([][]float32, len(d.Records))
	for i := range d.Records {
		vectors[i] = d.Records[i].DescriptionVector
	}
	return vectors
}

// LoadCSV parses the raw tabular source. The header row must name at least
// title and description columns; url is optional and extra columns are
// ignored. Derived columns start empty.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	titleCol, descriptionCol, urlCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "title":
			titleCol = i
		case "description":
			descriptionCol = i
		case "url":
			urlCol = i
		}
	}
	if titleCol < 0 || descriptionCol < 0 {
		return nil, errors.New("dataset is missing title or description column")
	}

	dataset := &Dataset{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row: %w", err)
		}
		if titleCol >= len(row) || descriptionCol >= len(row) {
			continue
		}

		record := TalkRecord{
			Title:       row[titleCol],
			Description: row[descriptionCol],
			SdgTags:     []string{},
		}
		if urlCol >= 0 && urlCol < len(row) {
			record.URL = row[urlCol]
		}
		dataset.Records = append(dataset.Records, record)
	}

	return dataset, nil
}
