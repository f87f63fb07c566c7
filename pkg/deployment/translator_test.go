package deployment

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/alexandersjoberg/sidekick/pkg/encode"
	"github.com/alexandersjoberg/sidekick/pkg/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var translatorSpecs = []encode.FeatureSpec{
	{Name: "score", DType: encode.DTypeNumeric, Shape: encode.Shape{1}},
	{Name: "label", DType: encode.DTypeText, Shape: encode.Shape{10}},
}

func TestBuildRequest(t *testing.T) {
	request, err := BuildRequest([]encode.DataItem{
		{"score": 1, "label": "a", "ignored": true},
		{"score": 2.5, "label": "b"},
	}, translatorSpecs)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"score": 1, "label": "a"},
		{"score": 2.5, "label": "b"},
	}, request.Rows)
}

func TestBuildRequest_Errors(t *testing.T) {
	_, err := BuildRequest([]encode.DataItem{{"score": 1}}, translatorSpecs)
	assert.ErrorIs(t, err, ErrMissingFeature)

	_, err = BuildRequest([]encode.DataItem{{"score": "1", "label": "a"}}, translatorSpecs)
	assert.ErrorIs(t, err, encode.ErrType)
}

func TestParseResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		message string
	}{
		{
			name:    "error code wins over rows",
			body:    `{"errorCode": "E42", "errorMessage": "model not loaded", "rows": [{"score": 1}]}`,
			wantErr: ErrServer,
			message: "E42: model not loaded",
		},
		{
			name:    "error code without message",
			body:    `{"errorCode": "E42"}`,
			wantErr: ErrServer,
			message: "E42: ",
		},
		{
			name:    "null error code",
			body:    `{"errorCode": null, "rows": []}`,
			wantErr: ErrServer,
		},
		{
			name:    "missing rows",
			body:    `{"predictions": []}`,
			wantErr: ErrMalformedResponse,
			message: "malformed prediction response: return data does not contain rows",
		},
		{name: "rows not a list", body: `{"rows": {"score": 1}}`, wantErr: ErrMalformedResponse},
		{name: "invalid json", body: `{"rows": [`, wantErr: ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tt.body), translatorSpecs)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.message != "" {
				assert.EqualError(t, err, tt.message)
			}
		})
	}
}

func TestParseResponse_DecodesLazily(t *testing.T) {
	predictions, err := ParseResponse([]byte(`{"rows": [
		{"score": 0.5, "label": "cat"},
		{"score": 0.25},
		{"score": 1, "label": "dog"}
	]}`), translatorSpecs)
	require.NoError(t, err)

	require.True(t, predictions.Next())
	assert.Equal(t, encode.DataItem{"score": 0.5, "label": "cat"}, predictions.Item())

	assert.False(t, predictions.Next())
	assert.ErrorIs(t, predictions.Err(), ErrMissingFeature)
	assert.Nil(t, predictions.Item())
	assert.False(t, predictions.Next())
}

func TestParseResponse_FeatureNamesWithDots(t *testing.T) {
	specs := []encode.FeatureSpec{{Name: "a.b", DType: encode.DTypeNumeric, Shape: encode.Shape{1}}}
	predictions, err := ParseResponse([]byte(`{"rows": [{"a.b": 3}]}`), specs)
	require.NoError(t, err)

	items, err := predictions.Collect()
	require.NoError(t, err)
	assert.Equal(t, []encode.DataItem{{"a.b": 3.0}}, items)
}

func TestParseResponse_RowNotObject(t *testing.T) {
	predictions, err := ParseResponse([]byte(`{"rows": [1]}`), translatorSpecs)
	require.NoError(t, err)
	_, err = predictions.Collect()
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseResponse_OversizedArray(t *testing.T) {
	text := "{'descr': '<f4', 'fortran_order': False, 'shape': (9223372036854775807, 2), }\n"
	data := append([]byte("\x93NUMPY"), 1, 0)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(text)))
	data = append(data, text...)
	data = append(data, make([]byte, 8)...)

	body, err := json.Marshal(map[string]any{"rows": []map[string]any{
		{"tensor": encode.EncodeDataURL(npy.MediaType, data)},
	}})
	require.NoError(t, err)
	specs := []encode.FeatureSpec{{Name: "tensor", DType: encode.DTypeNumpy, Shape: encode.Shape{2}}}

	predictions, err := ParseResponse(body, specs)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		_, err = predictions.Collect()
	})
	assert.ErrorIs(t, err, npy.ErrShape)
}

func TestPredictions_CloseStops(t *testing.T) {
	stopped := 0
	p := newPredictions(func() (encode.DataItem, bool, error) {
		return encode.DataItem{"score": 1.0}, true, nil
	}, func() { stopped++ })

	assert.True(t, p.Next())
	p.Close()
	p.Close()
	assert.False(t, p.Next())
	assert.Equal(t, 1, stopped)
}
