package llm

import (
	"context"
	"strings"
	"time"
)

const queryPromptHead = `You translate questions about stored business documents into a single
PostgreSQL query.

Table "Documents":
- "Id" integer primary key
- "FormName" text, the name of the uploaded file
- "Data" jsonb holding the extracted content

"Data" has this layout:
- "schemaName": the kind of document (a string, occasionally an array of strings)
- "dataExtracted": an array of { "key": "<field name>", "value": "<field value>" }

Quote every identifier exactly as written above. To reach fields use either
jsonb_array_elements("Data"->'dataExtracted') AS elem, or
jsonb_path_query_first("Data", '$.dataExtracted[*] ? (@.key == "<field name>")')->>'value'.

Rules:
1. Pick the schema name from the list below that best fits the question.
2. Filter with "Data"->>'schemaName' = '<schema name>'.
3. Use COUNT(*) when the question asks how many.
4. Only use field names that exist for that schema.
5. Give every output column a clear alias.
6. Reply with the SQL statement only. No explanation, no markdown.

Known schema names:
`

// QueryGenerator asks the model to turn a question into SQL.
type QueryGenerator struct {
	client *Client
}

func NewQueryGenerator(client *Client) *QueryGenerator {
	return &QueryGenerator{client: client}
}

// BuildQueryPrompt embeds the live schema names and the question.
func BuildQueryPrompt(question string, schemaNames []string) string {
	var b strings.Builder
	b.WriteString(queryPromptHead)
	if len(schemaNames) == 0 {
		b.WriteString("- (none stored yet)\n")
	}
	for _, name := range schemaNames {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	return b.String()
}

// GenerateSQL returns the model's answer verbatim. The text is not parsed,
// checked or cleaned here.
func (g *QueryGenerator) GenerateSQL(ctx context.Context, question string, schemaNames []string) (string, error) {
	start := time.Now()
	g.client.log.Info().Int("question_len", len(question)).Int("schema_names", len(schemaNames)).Msg("llm.query.start")

	content, err := g.client.Complete(ctx, "query", Completion{
		System:      BuildQueryPrompt(question, schemaNames),
		MaxTokens:   1600,
		Temperature: 0.2,
		TopP:        1,
	})
	if err != nil {
		g.client.log.Error().Err(err).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.query.failed")
		return "", err
	}
	g.client.log.Info().Int("sql_len", len(content)).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.query.ok")
	return content, nil
}
