package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{name: "bare string", input: "X", want: "X", ok: true},
		{name: "padded string", input: "  X ", want: "X", ok: true},
		{name: "underscore id object", input: map[string]any{"_id": "X"}, want: "X", ok: true},
		{name: "id object", input: map[string]any{"id": "X"}, want: "X", ok: true},
		{name: "value object", input: map[string]any{"value": "X"}, want: "X", ok: true},
		{name: "nested oid", input: map[string]any{"_id": map[string]any{"$oid": "X"}}, want: "X", ok: true},
		{name: "string map", input: map[string]string{"id": "X"}, want: "X", ok: true},
		{name: "_id wins over id", input: map[string]any{"_id": "A", "id": "B"}, want: "A", ok: true},
		{name: "empty _id falls through", input: map[string]any{"_id": "", "id": "B"}, want: "B", ok: true},
		{name: "ref value", input: Ref{ID: "X"}, want: "X", ok: true},
		{name: "ref pointer", input: &Ref{ID: "X"}, want: "X", ok: true},
		{name: "raw json object", input: json.RawMessage(`{"_id":"X"}`), want: "X", ok: true},
		{name: "raw json string", input: json.RawMessage(`"X"`), want: "X", ok: true},
		{name: "number", input: float64(42), want: "42", ok: true},
		{name: "int", input: 7, want: "7", ok: true},
		{name: "nil", input: nil, ok: false},
		{name: "empty string", input: "", ok: false},
		{name: "object without id", input: map[string]any{"name": "Dr. Who"}, ok: false},
		{name: "unsupported", input: []string{"X"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRef_UnmarshalJSON(t *testing.T) {
	var payload struct {
		Patient Ref `json:"patientId"`
		Doctor  Ref `json:"doctorId"`
		Clinic  Ref `json:"clinicId"`
		Missing Ref `json:"serviceType"`
	}
	body := `{
		"patientId": "p-1",
		"doctorId": {"_id": "d-1", "firstName": "Ada", "lastName": "Lovelace"},
		"clinicId": {"id": "c-1", "name": "North Clinic"},
		"serviceType": null
	}`

	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, Ref{ID: "p-1"}, payload.Patient)
	assert.Equal(t, Ref{ID: "d-1", Name: "Ada Lovelace"}, payload.Doctor)
	assert.Equal(t, Ref{ID: "c-1", Name: "North Clinic"}, payload.Clinic)
	assert.True(t, payload.Missing.IsZero())
}

func TestRef_UnmarshalJSON_RejectsObjectWithoutID(t *testing.T) {
	var ref Ref
	err := json.Unmarshal([]byte(`{"name":"nobody"}`), &ref)
	assert.Error(t, err)
}

func TestRef_MarshalJSON_IsBareID(t *testing.T) {
	data, err := json.Marshal(Ref{ID: "d-1", Name: "Ada"})
	require.NoError(t, err)
	assert.JSONEq(t, `"d-1"`, string(data))
}
