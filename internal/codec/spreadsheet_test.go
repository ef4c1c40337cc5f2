package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"pim-service/internal/models"
)

func TestParseCSV_HeadersVerbatim(t *testing.T) {
	input := " Item No ,Product NAME\nITEM-001,Cordless Drill\n"
	rows, err := Parse(strings.NewReader(input), models.ImportFormatCSV)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	// header text is the key, untrimmed and case-preserved
	assert.Equal(t, "ITEM-001", rows[0][" Item No "])
	assert.Equal(t, "Cordless Drill", rows[0]["Product NAME"])
	assert.NotContains(t, rows[0], "item no")
	assert.Equal(t, "2", rows[0][RowNumberKey])
}

func TestParseCSV_RaggedRows(t *testing.T) {
	input := "A,B,C\n1,2\n4,5,6,7\n"
	rows, err := Parse(strings.NewReader(input), models.ImportFormatCSV)

	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	// short row: missing cell is simply absent
	_, ok := rows[0]["C"]
	assert.False(t, ok)
	// long row: surplus cells are dropped
	assert.Equal(t, "6", rows[1]["C"])
	assert.Equal(t, "3", rows[1][RowNumberKey])
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	rows, err := Parse(strings.NewReader("A,B\n"), models.ImportFormatCSV)

	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseCSV_EmptyInput(t *testing.T) {
	rows, err := Parse(strings.NewReader(""), models.ImportFormatCSV)

	assert.Error(t, err)
	assert.Nil(t, rows)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse(strings.NewReader("x"), models.ImportFormat("ods"))

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestParseXLSX_RoundTrip(t *testing.T) {
	f := excelize.NewFile()
	assert.NoError(t, f.SetCellValue("Sheet1", "A1", "Item No"))
	assert.NoError(t, f.SetCellValue("Sheet1", "B1", "Name"))
	assert.NoError(t, f.SetCellValue("Sheet1", "A2", "ITEM-001"))
	assert.NoError(t, f.SetCellValue("Sheet1", "B2", "Cordless Drill"))

	var buf bytes.Buffer
	assert.NoError(t, f.Write(&buf))
	assert.NoError(t, f.Close())

	rows, err := Parse(&buf, models.ImportFormatXLSX)

	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "ITEM-001", rows[0]["Item No"])
	assert.Equal(t, "Cordless Drill", rows[0]["Name"])
	assert.Equal(t, "2", rows[0][RowNumberKey])
}

func TestParseXLSX_CorruptContainer(t *testing.T) {
	_, err := Parse(strings.NewReader("not a zip archive"), models.ImportFormatXLSX)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func templateEntries() []models.MappingEntry {
	return []models.MappingEntry{
		{SourceColumn: "Item No", TargetEntity: models.TargetProduct, TargetField: "item_no"},
		{SourceColumn: "Name", TargetEntity: models.TargetProduct, TargetField: "name"},
		{SourceColumn: "Tags", TargetEntity: models.TargetTags, TargetField: "json_tags", IsDynamicKey: true},
	}
}

func TestEmitTemplate_CSVHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	err := EmitTemplate(templateEntries(), models.ImportFormatCSV, &buf)

	assert.NoError(t, err)
	records, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, [][]string{{"Item No", "Name", "Tags"}}, records)
}

func TestEmitTemplate_CSVDeterministic(t *testing.T) {
	var first, second bytes.Buffer
	assert.NoError(t, EmitTemplate(templateEntries(), models.ImportFormatCSV, &first))
	assert.NoError(t, EmitTemplate(templateEntries(), models.ImportFormatCSV, &second))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestEmitTemplate_XLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := EmitTemplate(templateEntries(), models.ImportFormatXLSX, &buf)
	assert.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Template")
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"Item No", "Name", "Tags"}, rows[0])
}

func TestEmitTemplate_SkipsEmptySourceColumns(t *testing.T) {
	entries := []models.MappingEntry{
		{SourceColumn: "Item No", TargetEntity: models.TargetProduct, TargetField: "item_no"},
		{SourceColumn: "", TargetEntity: models.TargetProduct, TargetField: "name"},
	}

	var buf bytes.Buffer
	assert.NoError(t, EmitTemplate(entries, models.ImportFormatCSV, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, [][]string{{"Item No"}}, records)
}

func TestFormatFromFilename(t *testing.T) {
	format, ok := FormatFromFilename("feed.csv")
	assert.True(t, ok)
	assert.Equal(t, models.ImportFormatCSV, format)

	format, ok = FormatFromFilename("FEED.XLSX")
	assert.True(t, ok)
	assert.Equal(t, models.ImportFormatXLSX, format)

	_, ok = FormatFromFilename("feed.ods")
	assert.False(t, ok)

	_, ok = FormatFromFilename("feed")
	assert.False(t, ok)
}
