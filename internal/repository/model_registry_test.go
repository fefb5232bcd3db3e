package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	"FinCast/pkg/config"
)

func zeros(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// modelJSON is an LSTM+Dense model whose output is always out.
func modelJSON(t *testing.T, steps int, out float64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"format":      "sequential",
		"input_shape": []int{steps, 1},
		"layers": []map[string]any{
			{"type": "lstm", "units": 2, "kernel": zeros(1, 8), "recurrent_kernel": zeros(2, 8), "bias": make([]float64, 8)},
			{"type": "dense", "units": 1, "kernel": zeros(2, 1), "bias": []float64{out}},
		},
	})
	require.NoError(t, err)
	return b
}

func scalerJSON(t *testing.T, lo, hi float64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"feature_range": []float64{0, 1},
		"data_min":      []float64{lo},
		"data_max":      []float64{hi},
		"n_features_in": 1,
	})
	require.NoError(t, err)
	return b
}

func writeArtifact(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writePair(t *testing.T, dir, key string) {
	t.Helper()
	writeArtifact(t, dir, key+"_model.json", modelJSON(t, models.WindowSize, 0.62))
	writeArtifact(t, dir, key+"_scaler.json", scalerJSON(t, 89.2, 189.2))
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"AAPL":     "AAPL",
		"BBCA.JK":  "BBCA_JK",
		"BRK-B":    "BRK_B",
		"^GSPC":    "^GSPC",
		"EURUSD=X": "EURUSD=X",
		"A.B-C.D":  "A_B_C_D",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeKey(in), in)
	}
}

func TestFSModelRegistry_StatAndLoad(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "BBCA_JK")

	reg, err := NewFSModelRegistry(dir)
	require.NoError(t, err)

	ref, err := reg.Stat("BBCA.JK")
	require.NoError(t, err)
	assert.Equal(t, "BBCA_JK", ref.Key)
	assert.Equal(t, filepath.Join(dir, "BBCA_JK_model.json"), ref.ModelPath)
	assert.Equal(t, filepath.Join(dir, "BBCA_JK_scaler.json"), ref.ScalerPath)
	assert.False(t, ref.ModTime.IsZero())

	pair, err := reg.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "BBCA.JK", pair.Instrument)
	assert.Equal(t, models.WindowSize, pair.Model.InputSteps())
	assert.Equal(t, 1, pair.Scaler.Features())
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")

	reg, err := NewFSModelRegistry(dir)
	require.NoError(t, err)

	pair, err := Resolve(context.Background(), reg, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", pair.Key)

	_, err = Resolve(context.Background(), reg, "FAKE.ZZ")
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}

func TestFSModelRegistry_MissingOrHalfPairIsNotFound(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "MSFT_model.json", modelJSON(t, models.WindowSize, 0.5))
	writeArtifact(t, dir, "TSLA_scaler.json", scalerJSON(t, 1, 2))

	reg, err := NewFSModelRegistry(dir)
	require.NoError(t, err)

	for _, id := range []string{"FAKE.ZZ", "MSFT", "TSLA", "", "../etc/passwd", "A/B"} {
		_, err := reg.Stat(id)
		assert.ErrorIs(t, err, models.ErrModelNotFound, id)
		assert.Equal(t, models.KindNotFound, models.KindOf(err), id)
	}

	_, err = reg.Stat("FAKE.ZZ")
	assert.ErrorContains(t, err, "model for FAKE.ZZ not available")
}

func TestFSModelRegistry_CollisionIsNotFound(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "BRK_B")

	reg, err := NewFSModelRegistry(dir)
	require.NoError(t, err)

	_, err = reg.Stat("BRK.B")
	require.NoError(t, err)

	_, err = reg.Stat("BRK-B")
	assert.ErrorIs(t, err, models.ErrModelNotFound)

	_, err = reg.Stat("BRK.B")
	assert.NoError(t, err, "first claimant keeps the key")
}

func TestFSModelRegistry_AllowList(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "AAPL")
	writePair(t, dir, "MSFT")

	_, err := NewFSModelRegistry(dir, WithInstruments([]string{"BRK.B", "BRK-B"}))
	require.ErrorContains(t, err, "share artifact key")

	reg, err := NewFSModelRegistry(dir, WithInstruments([]string{"AAPL", "GOOGL"}))
	require.NoError(t, err)

	_, err = reg.Stat("MSFT")
	assert.ErrorIs(t, err, models.ErrModelNotFound, "pair exists but is not allowed")

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.InstrumentInfo{Ticker: "AAPL", Key: "AAPL", Currency: "USD"}, list[0])
}

func TestFSModelRegistry_ShippedConfigServesDefaultInstruments(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	for _, key := range []string{"BBCA_JK", "BBRI_JK", "NVDA", "AAPL", "BTC_USD"} {
		writePair(t, dir, key)
	}

	reg, err := NewFSModelRegistry(dir,
		WithInstruments(cfg.Registry.Instruments),
		WithSuffixes(cfg.Registry.ModelSuffix, cfg.Registry.ScalerSuffix),
	)
	require.NoError(t, err)

	for _, id := range []string{"BBCA.JK", "BBRI.JK", "NVDA", "AAPL", "BTC-USD"} {
		ref, err := reg.Stat(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, ref.Instrument)
	}

	list, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, list, 5)
}

func TestFSModelRegistry_LoadFailures(t *testing.T) {
	t.Run("corrupt model", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "AAPL_model.json", []byte("{not json"))
		writeArtifact(t, dir, "AAPL_scaler.json", scalerJSON(t, 1, 2))
		reg, err := NewFSModelRegistry(dir)
		require.NoError(t, err)

		ref, err := reg.Stat("AAPL")
		require.NoError(t, err)
		pair, err := reg.Load(context.Background(), ref)
		assert.Nil(t, pair)
		assert.ErrorIs(t, err, models.ErrArtifactLoad)
	})

	t.Run("corrupt scaler yields no pair", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "AAPL_model.json", modelJSON(t, models.WindowSize, 0.5))
		writeArtifact(t, dir, "AAPL_scaler.json", []byte(`{"data_min":[1],"data_max":[2],"feature_range":[0,1],"n_features_in":3}`))
		reg, err := NewFSModelRegistry(dir)
		require.NoError(t, err)

		ref, err := reg.Stat("AAPL")
		require.NoError(t, err)
		pair, err := reg.Load(context.Background(), ref)
		assert.Nil(t, pair)
		assert.ErrorIs(t, err, models.ErrArtifactLoad)
	})

	t.Run("wrong window length", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "AAPL_model.json", modelJSON(t, 30, 0.5))
		writeArtifact(t, dir, "AAPL_scaler.json", scalerJSON(t, 1, 2))
		reg, err := NewFSModelRegistry(dir)
		require.NoError(t, err)

		ref, err := reg.Stat("AAPL")
		require.NoError(t, err)
		_, err = reg.Load(context.Background(), ref)
		assert.ErrorIs(t, err, models.ErrArtifactLoad)
	})

	t.Run("file removed after stat", func(t *testing.T) {
		dir := t.TempDir()
		writePair(t, dir, "AAPL")
		reg, err := NewFSModelRegistry(dir)
		require.NoError(t, err)

		ref, err := reg.Stat("AAPL")
		require.NoError(t, err)
		require.NoError(t, os.Remove(ref.ScalerPath))
		_, err = reg.Load(context.Background(), ref)
		assert.ErrorIs(t, err, models.ErrModelNotFound)
	})
}

func TestFSModelRegistry_List(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "MSFT")
	writePair(t, dir, "AAPL")
	writeArtifact(t, dir, "TSLA_model.json", modelJSON(t, models.WindowSize, 1))
	writeArtifact(t, dir, "README.md", []byte("notes"))

	reg, err := NewFSModelRegistry(dir)
	require.NoError(t, err)

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Key)
	assert.Equal(t, "MSFT", list[1].Key)
}

func TestFSModelRegistry_RequiresDirectory(t *testing.T) {
	_, err := NewFSModelRegistry(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestFSModelRegistry_KeyOfFile(t *testing.T) {
	reg, err := NewFSModelRegistry(t.TempDir())
	require.NoError(t, err)

	key, ok := reg.KeyOfFile("/models/BBCA_JK_scaler.json")
	assert.True(t, ok)
	assert.Equal(t, "BBCA_JK", key)

	_, ok = reg.KeyOfFile("/models/notes.txt")
	assert.False(t, ok)
}
