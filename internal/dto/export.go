package dto

// ExportFormat selects the rendered sheet format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportedFile is a rendered sheet ready to stream.
type ExportedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
