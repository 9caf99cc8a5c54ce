package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/forest6511/vaultx/pkg/vault"
)

func TestXLSXCodec_Sheets(t *testing.T) {
	data, err := XLSXCodec{}.Encode(sampleRecords(), NewExportMeta(exportedAt))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{EntriesSheet, InfoSheet}, f.GetSheetList())

	header, err := f.GetRows(EntriesSheet)
	require.NoError(t, err)
	assert.Equal(t, exportHeader, header[0])

	total, err := f.GetCellValue(InfoSheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "3", total)

	version, err := f.GetCellValue(InfoSheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, Version, version)
}

// workbook builds an xlsx file with the given sheets, written in order.
func workbook(t *testing.T, sheets map[string][][]string, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		require.NoError(t, writeRows(f, name, sheets[name]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXCodec_Decode(t *testing.T) {
	t.Run("falls back to first sheet", func(t *testing.T) {
		data := workbook(t, map[string][][]string{
			"Logins": {{"URL", "Login", "Pwd"}, {"a.com", "alice", "pw"}, {"b.com", "", "pw"}},
			"Other":  {{"site", "user", "password"}, {"x", "y", "z"}},
		}, []string{"Logins", "Other"})

		got, err := XLSXCodec{}.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, []vault.Fields{{Site: "a.com", Username: "alice", Password: "pw"}}, got.Candidates)
		assert.Equal(t, []SkippedRow{{Row: 3, Reason: "missing username"}}, got.Skipped)
	})

	t.Run("prefers entries sheet", func(t *testing.T) {
		data := workbook(t, map[string][][]string{
			"Cover":      {{"nothing here"}},
			EntriesSheet: {{"Site", "Username", "Password", "Notes"}, {"s", "u", "p", "n"}},
		}, []string{"Cover", EntriesSheet})

		got, err := XLSXCodec{}.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, []vault.Fields{{Site: "s", Username: "u", Password: "p", Notes: "n"}}, got.Candidates)
	})

	t.Run("unresolved columns", func(t *testing.T) {
		data := workbook(t, map[string][][]string{
			"Sheet": {{"Name", "Value"}, {"a", "b"}},
		}, []string{"Sheet"})

		_, err := XLSXCodec{}.Decode(data)
		assert.ErrorIs(t, err, ErrMissingColumns)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := XLSXCodec{}.Decode([]byte("site,user,password\n"))
		assert.ErrorIs(t, err, ErrFormat)
	})
}
