package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr-cost/core/pricing"
	"cdr-cost/core/types"
	"cdr-cost/internal/errors"
)

const record = `{"CallId":"1a2b3c4d","UsageType":"USE1-US-outbound-minutes","BillableDurationMinutes":1.0}`

func resetFlags(cmds ...*cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	for _, c := range cmds {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd, enrichCmd, priceCmd)
	t.Cleanup(func() { resetFlags(rootCmd, enrichCmd, priceCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestEnrichLocalFileWithFixedPrice(t *testing.T) {
	in := writeTemp(t, "record.json", record)

	stdout, stderr, err := execute(t, "enrich", "--price", "0.0192", in)
	require.NoError(t, err)

	r, err := types.ParseRecord(bytes.TrimSpace([]byte(stdout)))
	require.NoError(t, err)
	assert.Equal(t, "0.0192", r.Text(types.FieldCostUSD))
	assert.Equal(t, "0.0192", r.Text(types.FieldPricePerUnitUSD))
	assert.Contains(t, stderr, "cost 0.0192 USD")
}

func TestEnrichWritesCSVFile(t *testing.T) {
	in := writeTemp(t, "record.json", record)
	out := filepath.Join(t.TempDir(), "record.csv")

	_, _, err := execute(t, "enrich", "--price", "0.0192", "--format", "csv", "-o", out, in)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"CallId,UsageType,BillableDurationMinutes,PricePerUnitUSD,CostUSD\n1a2b3c4d,USE1-US-outbound-minutes,1.0,0.0192,0.0192\n",
		string(data))
}

func TestEnrichSkipsRecordWithoutUsageType(t *testing.T) {
	in := writeTemp(t, "record.json", `{"CallId":"x"}`)

	stdout, stderr, err := execute(t, "enrich", "--price", "0.0192", in)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "no usage type")
}

func TestEnrichRejectsArrays(t *testing.T) {
	in := writeTemp(t, "records.json", "["+record+"]")

	_, _, err := execute(t, "enrich", "--price", "0.0192", in)
	assert.True(t, errors.IsType(err, errors.TypeInvalidRecord))
}

func TestEnrichObjectFromStoreDir(t *testing.T) {
	dir := t.TempDir()
	key := "folder/Amazon-Chime-Voice-Connector-CDRs/json/x.json"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cdrs", filepath.Dir(key)), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cdrs", key), []byte(record), 0644))

	_, stderr, err := execute(t, "enrich", "--price", "0.0192", "--store-dir", dir,
		"--target-bucket", "enriched", "--format", "csv", "s3://cdrs/"+key)
	require.NoError(t, err)
	assert.Contains(t, stderr, "s3://enriched/"+key+".csv")

	data, err := os.ReadFile(filepath.Join(dir, "enriched", key+".csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "0.0192\n")
}

func TestPriceCommandListsEntries(t *testing.T) {
	a, err := pricing.NewEntry(pricing.EntryParams{SKU: "AAA", UsageType: "USE1-US-outbound-minutes", USD: "0.0040000000"})
	require.NoError(t, err)
	b, err := pricing.NewEntry(pricing.EntryParams{SKU: "BBB", UsageType: "USE1-US-outbound-minutes", USD: "0.0192000000"})
	require.NoError(t, err)
	list := writeTemp(t, "prices.json", "["+string(a)+","+string(b)+"]")

	stdout, _, err := execute(t, "price", "--catalog-file", list, "--selection", "cheapest", "USE1-US-outbound-minutes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "AAA")
	assert.Contains(t, stdout, "0.0192000000")
	assert.Contains(t, stdout, "USE1-US-outbound-minutes (USE1, cheapest): 0.0040000000 USD per Minutes")

	_, _, err = execute(t, "price", "--catalog-file", list, "USE1-US-inbound-minutes")
	assert.True(t, errors.IsType(err, errors.TypeNoPriceFound))
}

func TestVersionAndConfig(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cdr-cost version "+Version+"\n", stdout)

	stdout, _, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"key_marker": "Amazon-Chime-Voice-Connector-CDRs"`)
}
