package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `Date,Price
20-May-87,18.63
21-May-87,18.45
22-May-87,18.55
`

var testArtifacts = map[string]string{
	"arima.json":  `{"order":[1,1,0],"mean":0.02,"ar":[0.4],"history":[70.1,71.3,70.8,72.4]}`,
	"garch.json":  `{"mu":0,"omega":0.02,"alpha":[0.08],"beta":[0.9],"residuals":[1.2],"variances":[1.5]}`,
	"lstm.json":   `{"backend":"native","layers":[{"units":1,"kernel":[[1,1,1,1]],"recurrent":[[0,0,0,0]],"bias":[0,0,0,0]}],"dense":{"kernel":[[2]],"bias":[0.5]}}`,
	"scaler.json": `{"type":"minmax","data_min":[10],"data_max":[110],"feature_range":[0,1]}`,
}

// writeFixture lays out artifacts, a CSV and a config file under a temp dir.
func writeFixture(t *testing.T, backend string) (cfgPath, csvPath string) {
	t.Helper()
	dir := t.TempDir()
	modelsDir := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))
	for name, body := range testArtifacts {
		require.NoError(t, os.WriteFile(filepath.Join(modelsDir, name), []byte(body), 0o644))
	}

	csvPath = filepath.Join(dir, "brent.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))

	historyPath := csvPath
	if backend == "sqlite" {
		historyPath = filepath.Join(dir, "brent.db")
	}

	cfg := fmt.Sprintf(`environment: test
log:
  level: error
  output: stderr
artifacts:
  dir: %s
history:
  backend: %s
  path: %s
`, modelsDir, backend, historyPath)
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, csvPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPredictHorizonCommand(t *testing.T) {
	cfg, _ := writeFixture(t, "csv")

	out, err := execute(t, "predict", "arima", "--steps", "3", "--config", cfg)
	require.NoError(t, err)

	var res struct {
		Kind   string    `json:"kind"`
		Values []float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "ARIMA", res.Kind)
	assert.Len(t, res.Values, 3)
}

func TestPredictRejectsZeroSteps(t *testing.T) {
	cfg, _ := writeFixture(t, "csv")
	_, err := execute(t, "predict", "garch", "--steps", "0", "--config", cfg)
	assert.Error(t, err)
}

func TestPredictUnavailableModel(t *testing.T) {
	cfg, _ := writeFixture(t, "csv")
	_, err := execute(t, "predict", "var", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VAR")
}

func TestPredictLSTMCommand(t *testing.T) {
	cfg, _ := writeFixture(t, "csv")

	out, err := execute(t, "predict", "lstm", "--input", "0.1, 0.2,0.3", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "LSTM"`)

	_, err = execute(t, "predict", "lstm", "--input", "a,b", "--config", cfg)
	assert.Error(t, err)
}

func TestModelsCommand(t *testing.T) {
	cfg, _ := writeFixture(t, "csv")

	out, err := execute(t, "models", "--config", cfg)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "KIND"))
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if fields[0] == "VAR" {
			assert.Equal(t, "false", fields[1])
		} else {
			assert.Equal(t, "true", fields[1], line)
		}
	}
}

func TestHistoryImportIntoSQLite(t *testing.T) {
	cfg, csvPath := writeFixture(t, "sqlite")

	out, err := execute(t, "history", "import", "--file", csvPath, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 rows")

	out, err = execute(t, "history", "summary", "--window", "2", "--config", cfg)
	require.NoError(t, err)
	var sum struct {
		Count     int       `json:"count"`
		First     string    `json:"first"`
		MovingAvg []float64 `json:"moving_average"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, "1987-05-20", sum.First)
	assert.Len(t, sum.MovingAvg, 2)
}

func TestSplitInput(t *testing.T) {
	assert.Equal(t, []any{"1", "2.5", "3"}, splitInput(" 1, 2.5 ,,3 "))
	assert.Empty(t, splitInput(""))
}
