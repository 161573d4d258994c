package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustMarshalJSON(t *testing.T) {
	data := MustMarshalJSON(map[string]bool{"cc_on_file": false})
	assert.JSONEq(t, `{"cc_on_file": false}`, string(data))
}

func TestMustMarshalJSON_PanicsOnUnsupportedValue(t *testing.T) {
	assert.Panics(t, func() {
		MustMarshalJSON(make(chan int))
	})
}

func TestUnmarshalJSON(t *testing.T) {
	var out struct {
		Sent bool `json:"intake_forms_sent"`
	}
	require.NoError(t, UnmarshalJSON([]byte(`{"intake_forms_sent": true}`), &out))
	assert.True(t, out.Sent)

	assert.Error(t, UnmarshalJSON([]byte(`{`), &out))
}
