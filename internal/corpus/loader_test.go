package corpus

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidCSV(t *testing.T) {
	csvData := "question,answer\nWhat are your hours?,9-5\nDo you ship?,Yes\n"

	rows, err := Load(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Question: "What are your hours?", Answer: "9-5"}, rows[0])
	assert.Equal(t, Row{Question: "Do you ship?", Answer: "Yes"}, rows[1])
}

func TestLoadPreservesRowOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("question,answer\n")
	sb.WriteString("q0,a0\nq1,a1\nq2,a2\nq3,a3\n")

	rows, err := Load(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, string(rune('0'+i)), row.Question[1:])
	}
}

func TestLoadMissingQuestionColumn(t *testing.T) {
	csvData := "q,answer\nfoo,bar\n"

	_, err := Load(strings.NewReader(csvData))
	var schemaErr *SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"'question'"}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "question")
}

func TestLoadMissingBothColumns(t *testing.T) {
	csvData := "foo,bar\n1,2\n"

	_, err := Load(strings.NewReader(csvData))
	var schemaErr *SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
	assert.Len(t, schemaErr.Missing, 2)
}

func TestLoadColumnNamesAreCaseSensitive(t *testing.T) {
	csvData := "Question,Answer\nfoo,bar\n"

	_, err := Load(strings.NewReader(csvData))
	var schemaErr *SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
}

func TestLoadEmptyDataIsNotAnError(t *testing.T) {
	// 只有表头、零数据行：返回空序列
	rows, err := Load(strings.NewReader("question,answer\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadCompletelyEmptyFile(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	var schemaErr *SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
}

func TestLoadExtraColumnsAreIgnored(t *testing.T) {
	csvData := "id,question,answer,category\n1,What?,Because.,misc\n"

	rows, err := Load(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "What?", rows[0].Question)
	assert.Equal(t, "Because.", rows[0].Answer)
}

func TestLoadNumericCellsKeptAsText(t *testing.T) {
	csvData := "question,answer\nHow many?,42\n"

	rows, err := Load(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, "42", rows[0].Answer)
}

func TestLoadShortRowFilledWithEmpty(t *testing.T) {
	csvData := "question,answer\nonly-question\n"

	rows, err := Load(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "only-question", rows[0].Question)
	assert.Equal(t, "", rows[0].Answer)
}

func TestValidateHeader(t *testing.T) {
	assert.NoError(t, ValidateHeader(strings.NewReader("question,answer\n")))

	err := ValidateHeader(strings.NewReader("foo,bar\n"))
	var schemaErr *SchemaValidationError
	assert.True(t, errors.As(err, &schemaErr))

	err = ValidateHeader(strings.NewReader(""))
	assert.True(t, errors.As(err, &schemaErr))
}
