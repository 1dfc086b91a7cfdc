package llm

import (
	"context"
	"strings"
	"time"
)

const structurePrompt = `You turn raw text read from a business document (an invoice, a receipt,
a form) into structured JSON.

Read the text below and pull out every meaningful field and its value.
Give fields a Title Case name, inventing a sensible one when the document
has no label (a leading company name becomes "Vendor", "PO-12345" becomes
"PO Number"). Join values that span several lines into one line. Leave out
logos, greetings, decoration and fields that have no value.

Answer with a single JSON object and nothing else, in this shape:
{
  "schemaName": "<a descriptive name of at least four words for this kind of document, e.g. computer-purchase-invoice>",
  "dataExtracted": [
    { "key": "<Field Name>", "value": "<Field Value>" }
  ]
}

Raw text:
%RAW_TEXT%`

// Structurer asks the model to convert OCR text into a
// {schemaName, dataExtracted[]} JSON object.
type Structurer struct {
	client *Client
}

func NewStructurer(client *Client) *Structurer {
	return &Structurer{client: client}
}

// Structure returns the model's answer verbatim. The answer is checked
// against the expected shape but a mismatch is only logged; the caller
// decides whether the text is usable.
func (s *Structurer) Structure(ctx context.Context, rawText string) (string, error) {
	start := time.Now()
	s.client.log.Info().Int("text_len", len(rawText)).Msg("llm.structure.start")

	content, err := s.client.Complete(ctx, "structure", Completion{
		System:      strings.Replace(structurePrompt, "%RAW_TEXT%", rawText, 1),
		MaxTokens:   1600,
		Temperature: 0.7,
		TopP:        0.95,
	})
	if err != nil {
		s.client.log.Error().Err(err).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.structure.failed")
		return "", err
	}

	if err := ValidateStructuredShape([]byte(content)); err != nil {
		s.client.log.Warn().Err(err).Int("content_len", len(content)).Msg("llm.structure.shape_mismatch")
	}
	s.client.log.Info().Int("content_len", len(content)).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.structure.ok")
	return content, nil
}
