package eso

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandUnmarshal(t *testing.T) {
	raw := `[
		{"command": "settings", "settings": {"ajaxPageState": {"theme": "eso"}}, "merge": true},
		{"command": "update_build_id", "old": "form-old", "new": "form-new"},
		{"command": "insert", "method": "replaceWith", "selector": "#graph", "data": "<div></div>"},
		{"command": "settings", "settings": {"eso_consumption_history_form": null}},
		{"command": "settings", "settings": {"eso_consumption_history_form": {"graphics_data": "broken"}}},
		"not an object",
		{"command": "settings", "settings": {"eso_consumption_history_form": {"graphics_data": {"datasets": [
			{"key": "P+", "record": [{"date": "202403150100", "value": "1.5"}, {"date": 202403150200, "value": 2}]}
		]}}}}
	]`

	var commands []Command
	require.NoError(t, json.Unmarshal([]byte(raw), &commands))
	require.Len(t, commands, 7)

	assert.Equal(t, CommandOther, commands[0].Kind, "settings without the consumption form are ignored")
	assert.Equal(t, "settings", commands[0].Name)

	assert.Equal(t, CommandUpdateBuildID, commands[1].Kind)
	assert.Equal(t, "form-old", commands[1].OldBuildID)
	assert.Equal(t, "form-new", commands[1].NewBuildID)

	assert.Equal(t, CommandOther, commands[2].Kind)
	assert.Equal(t, "insert", commands[2].Name)

	assert.Equal(t, CommandOther, commands[3].Kind)
	assert.NoError(t, commands[3].Err)

	assert.Equal(t, CommandOther, commands[4].Kind)
	assert.Error(t, commands[4].Err)

	assert.Equal(t, CommandOther, commands[5].Kind)

	require.Equal(t, CommandSettings, commands[6].Kind)
	require.NotNil(t, commands[6].Consumption)
	datasets := commands[6].Consumption.GraphicsData.Datasets
	require.Len(t, datasets, 1)
	assert.Equal(t, "P+", datasets[0].Key)
	require.Len(t, datasets[0].Records, 2)
	assert.Equal(t, flexString("202403150200"), datasets[0].Records[1].Date)
	assert.Equal(t, flexString("2"), datasets[0].Records[1].Value)
}

func TestCommandUnmarshalEmptyBuildID(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{"command": "update_build_id", "old": "a", "new": ""}`), &cmd))
	assert.Equal(t, CommandOther, cmd.Kind)
}
