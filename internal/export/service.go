package export

import (
	"context"
	"fmt"

	"autodoc/api/internal/store"
)

// Service provides document export functionality
type Service struct {
	renderPDF PDFRenderer
}

// NewService creates an export service. A nil renderer means headless
// Chrome.
func NewService(renderPDF PDFRenderer) *Service {
	if renderPDF == nil {
		renderPDF = ChromePDF
	}
	return &Service{renderPDF: renderPDF}
}

// DocumentPDF renders one stored document as a PDF.
func (s *Service) DocumentPDF(ctx context.Context, doc store.Document) (*Result, error) {
	data, err := NewTemplateData(doc)
	if err != nil {
		return nil, fmt.Errorf("build template data: %w", err)
	}
	html, err := RenderDocumentHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	pdf, err := s.renderPDF(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(doc.FormName) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// Catalog renders every document as an XLSX workbook.
func (s *Service) Catalog(docs []store.Document) (*Result, error) {
	data, err := CatalogXLSX(docs)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Filename: "documents.xlsx", MimeType: xlsxMimeType}, nil
}

// Export dispatches on format for a single document or the whole catalog.
func (s *Service) Export(ctx context.Context, format Format, docs []store.Document) (*Result, error) {
	switch format {
	case FormatXLSX:
		return s.Catalog(docs)
	case FormatPDF:
		if len(docs) != 1 {
			return nil, fmt.Errorf("pdf export needs exactly one document, got %d", len(docs))
		}
		return s.DocumentPDF(ctx, docs[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
