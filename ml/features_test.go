package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetFeatures(t *testing.T) {
	basic, err := PresetFeatures(PresetBasic)
	require.NoError(t, err)
	assert.Equal(t, []string{"num_tickets", "trades"}, basic)

	reputation, err := PresetFeatures(PresetReputation)
	require.NoError(t, err)
	assert.Equal(t, []string{"num_tickets", "trades", "reputation"}, reputation)

	// callers get a copy
	basic[0] = "changed"
	again, err := PresetFeatures(PresetBasic)
	require.NoError(t, err)
	assert.Equal(t, "num_tickets", again[0])

	_, err = PresetFeatures("everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "basic, reputation")
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{name: "basic", schema: NewSchema([]string{"num_tickets", "trades"}, ""), wantErr: false},
		{name: "no features", schema: NewSchema(nil, ""), wantErr: true},
		{name: "duplicate", schema: NewSchema([]string{"trades", "trades"}, ""), wantErr: true},
		{name: "blank", schema: NewSchema([]string{"trades", " "}, ""), wantErr: true},
		{name: "feature is label", schema: NewSchema([]string{"trades", "is_scalper"}, ""), wantErr: true},
		{name: "no label", schema: Schema{Features: []string{"trades"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemaSameFeatures(t *testing.T) {
	a := NewSchema([]string{"num_tickets", "trades"}, "is_scalper")
	assert.True(t, a.SameFeatures(NewSchema([]string{"num_tickets", "trades"}, "other")))
	assert.False(t, a.SameFeatures(NewSchema([]string{"trades", "num_tickets"}, "")))
	assert.False(t, a.SameFeatures(NewSchema([]string{"num_tickets"}, "")))
	assert.Equal(t, 2, a.Arity())
	assert.Equal(t, "[num_tickets, trades] -> is_scalper", a.String())
}
