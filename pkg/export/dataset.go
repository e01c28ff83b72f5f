// Package export renders attendance and grade sheets as CSV or PDF.
package export

import "fmt"

// Dataset is a titled table with optional summary lines printed after the rows.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Summary []string
}

// Renderer turns a dataset into a file body.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

func (d Dataset) check() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
