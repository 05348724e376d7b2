package history

import (
	"encoding/json"
	"fmt"

	"github.com/okian/marksense/internal/domain/model"
)

// rowDoc is the JSON shape rows take in key-value and SQL backends.
type rowDoc struct {
	Date    string             `json:"date"`
	Name    string             `json:"name"`
	Marks   map[string]float64 `json:"marks"`
	Total   float64            `json:"total"`
	Average float64            `json:"average"`
	Rank    int                `json:"rank"`
}

// EncodeRow renders r as JSON.
func EncodeRow(r model.HistoryRow) ([]byte, error) {
	return json.Marshal(rowDoc{
		Date:    model.FormatDay(model.Day(r.Date)),
		Name:    r.Name,
		Marks:   r.Marks,
		Total:   r.Total,
		Average: r.Average,
		Rank:    r.Rank,
	})
}

// DecodeRow parses a row written by EncodeRow. Failures wrap ErrCorruptRow.
func DecodeRow(b []byte) (model.HistoryRow, error) {
	var doc rowDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.HistoryRow{}, CorruptRow(fmt.Errorf("decode row: %w", err))
	}
	day, err := model.ParseDay(doc.Date)
	if err != nil {
		return model.HistoryRow{}, CorruptRow(err)
	}
	if doc.Marks == nil {
		doc.Marks = map[string]float64{}
	}
	return model.HistoryRow{
		Date:    day,
		Name:    doc.Name,
		Marks:   doc.Marks,
		Total:   doc.Total,
		Average: doc.Average,
		Rank:    doc.Rank,
	}, nil
}

// EncodeMarks renders marks as a JSON object.
func EncodeMarks(marks map[string]float64) (string, error) {
	b, err := json.Marshal(marks)
	if err != nil {
		return "", fmt.Errorf("encode marks: %w", err)
	}
	return string(b), nil
}

// DecodeMarks parses a JSON object written by EncodeMarks.
func DecodeMarks(s string) (map[string]float64, error) {
	marks := map[string]float64{}
	if err := json.Unmarshal([]byte(s), &marks); err != nil {
		return nil, CorruptRow(fmt.Errorf("decode marks: %w", err))
	}
	return marks, nil
}
