package export

import (
	"bytes"
	"html/template"
	"strings"

	"autodoc/api/internal/store"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
}).Parse(documentHTML))

// TemplateData holds data for document template rendering
type TemplateData struct {
	ID         int64
	FormName   string
	SchemaName string
	Pairs      []TemplatePair
	RawJSON    string
}

type TemplatePair struct {
	Key   string
	Value string
}

// NewTemplateData builds the view of doc used by the document template.
// Documents without a dataExtracted list fall back to their raw JSON.
func NewTemplateData(doc store.Document) (TemplateData, error) {
	data := TemplateData{
		ID:         doc.ID,
		FormName:   doc.FormName,
		SchemaName: doc.Data.SchemaName(),
	}
	for _, pair := range doc.Data.ExtractedPairs() {
		data.Pairs = append(data.Pairs, TemplatePair{Key: pair.Key, Value: pair.Value})
	}
	if len(data.Pairs) == 0 {
		raw, err := doc.Data.MarshalJSON()
		if err != nil {
			return TemplateData{}, err
		}
		data.RawJSON = string(raw)
	}
	return data, nil
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.FormName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 1.5rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; vertical-align: top; }
    th { background: #f5f5f5; width: 35%; }
    pre { background: #f5f5f5; padding: 1rem; white-space: pre-wrap; word-break: break-word; }
  </style>
</head>
<body>
  <h1>{{.FormName}}</h1>
  <div class="meta">Document #{{.ID}}{{if .SchemaName}} | {{upper .SchemaName}}{{end}}</div>
  {{if .Pairs}}
  <table>
    {{range .Pairs}}<tr><th>{{.Key}}</th><td>{{.Value}}</td></tr>
    {{end}}
  </table>
  {{else}}
  <pre>{{.RawJSON}}</pre>
  {{end}}
</body>
</html>`
