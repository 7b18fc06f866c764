package contract_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/corrigo/corrigo-api/internal/similarity"
)

func compilePlagiarismSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "plagiarism_report.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func TestPlagiarismReportContract(t *testing.T) {
	schema := compilePlagiarismSchema(t)

	engine := similarity.NewEngine(similarity.Options{})
	target := "select nom, prenom from clients where actif = true order by nom"
	peers := []similarity.PeerDocument{
		{
			SubmissionID: 11,
			StudentID:    3,
			StudentName:  "Amina Diallo",
			Text:         "select nom, prenom from clients where actif = true order by nom",
			SubmittedAt:  time.Now().Add(-2 * time.Hour).UTC(),
		},
		{
			SubmissionID: 12,
			StudentID:    4,
			StudentName:  "Lucas Martin",
			Text:         "update commandes set statut = 'livree' where id = 9",
			SubmittedAt:  time.Now().Add(-time.Hour).UTC(),
		},
	}

	comparisons, summary := engine.Compare(target, peers)
	report := similarity.BuildReport(comparisons, summary)

	body, err := report.Marshal()
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestPlagiarismReportContractEmptyBatch(t *testing.T) {
	schema := compilePlagiarismSchema(t)

	engine := similarity.NewEngine(similarity.Options{})
	comparisons, summary := engine.Compare("une copie isolée sans aucun pair comparable disponible", nil)
	report := similarity.BuildReport(comparisons, summary)

	body, err := report.Marshal()
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
