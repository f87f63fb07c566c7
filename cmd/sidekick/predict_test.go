package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexandersjoberg/sidekick/pkg/deployment"
	"github.com/alexandersjoberg/sidekick/pkg/encode"
	"github.com/alexandersjoberg/sidekick/pkg/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doublerSchema = `{"components": {"schemas": {
	"input-row": {"properties": {"x": {"extensions": {"x-peltarion": {"type": "numeric", "shape": [1]}}}}},
	"output-row-batch": {"properties": {"rows": {"properties": {
		"y": {"extensions": {"x-peltarion": {"type": "numeric", "shape": [1]}}}
	}}}}
}}}`

func newDoubler(t *testing.T) *deployment.Deployment {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(doublerSchema))
	})
	mux.HandleFunc("POST /forward", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Rows []struct {
				X float64 `json:"x"`
			} `json:"rows"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rows := make([]map[string]float64, len(req.Rows))
		for i, row := range req.Rows {
			rows[i] = map[string]float64{"y": row.X * 2}
		}
		json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	conf := deployment.DefaultConfig(server.URL+"/forward", "token")
	conf.BatchSize = 2
	d, err := deployment.New(context.Background(), conf)
	require.NoError(t, err)
	return d
}

func TestPredict(t *testing.T) {
	d := newDoubler(t)
	var out bytes.Buffer
	err := predict(context.Background(), d, strings.NewReader("{\"x\": 1}\n{\"x\": 2.5}\n{\"x\": -3}\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "{\"y\":2}\n{\"y\":5}\n{\"y\":-6}\n", out.String())
}

func TestPredict_BadInput(t *testing.T) {
	d := newDoubler(t)
	var out bytes.Buffer
	err := predict(context.Background(), d, strings.NewReader("{\"x\": 1}\nnot json\n"), &out)
	assert.ErrorContains(t, err, "item 2")
}

func TestLoadItem_ReadsBinaryFiles(t *testing.T) {
	arr, err := npy.New([]int{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	data, err := npy.Marshal(arr)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.npy")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	specs := []encode.FeatureSpec{
		{Name: "tensor", DType: encode.DTypeNumpy, Shape: encode.Shape{2, 2}},
		{Name: "label", DType: encode.DTypeText, Shape: encode.Shape{10}},
	}
	item, err := loadItem(map[string]any{"tensor": path, "label": "cat.npy"}, specs)
	require.NoError(t, err)
	assert.Equal(t, arr, item["tensor"])
	assert.Equal(t, "cat.npy", item["label"])

	_, err = loadItem(map[string]any{"tensor": "input.txt"}, specs)
	assert.Error(t, err)
}

func TestRenderItem(t *testing.T) {
	rendered, err := renderItem(encode.DataItem{
		"score":   0.5,
		"classes": map[string]float64{"a": 1},
		"tensor":  npy.Zeros(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, rendered["score"])
	assert.Equal(t, map[string]float64{"a": 1}, rendered["classes"])
	assert.True(t, strings.HasPrefix(rendered["tensor"].(string), "data:"+npy.MediaType+";base64,"))

	_, err = renderItem(encode.DataItem{"bad": struct{}{}})
	assert.Error(t, err)
}
