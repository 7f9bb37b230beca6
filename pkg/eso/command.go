package eso

import (
	"encoding/json"
	"fmt"
)

// consumptionFormID is both the form_id the data endpoint expects and the key
// of the settings command that carries the datasets.
const consumptionFormID = "eso_consumption_history_form"

// CommandKind distinguishes the AJAX commands returned by the portal.
type CommandKind int

const (
	// CommandOther is any command we don't care about.
	CommandOther CommandKind = iota
	// CommandSettings is a drupalSettings update.
	CommandSettings
	// CommandUpdateBuildID rotates the form_build_id.
	CommandUpdateBuildID
)

// Command is a single entry of the portal's AJAX response.
type Command struct {
	Kind CommandKind
	Name string

	// Consumption is set for settings commands carrying the consumption form.
	Consumption *ConsumptionForm
	// Err is set when a settings command carried the consumption key but its
	// payload could not be decoded.
	Err error

	// OldBuildID and NewBuildID are set for update_build_id commands.
	OldBuildID string
	NewBuildID string
}

// ConsumptionForm is the part of the settings payload holding the graph data.
type ConsumptionForm struct {
	GraphicsData struct {
		Datasets []RawDataset `json:"datasets"`
	} `json:"graphics_data"`
}

// RawDataset is a single named series as returned by the portal.
type RawDataset struct {
	Key     string      `json:"key"`
	Records []RawRecord `json:"record"`
}

// RawRecord is one reading. Date is the end of the hourly period.
type RawRecord struct {
	Date  flexString `json:"date"`
	Value flexString `json:"value"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n)
	return nil
}

// UnmarshalJSON decodes a command without ever failing. Anything that doesn't
// look like a command we understand becomes CommandOther.
func (c *Command) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Command  string                     `json:"command"`
		Settings map[string]json.RawMessage `json:"settings"`
		Old      string                     `json:"old"`
		New      string                     `json:"new"`
	}
	*c = Command{Kind: CommandOther}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil
	}
	c.Name = envelope.Command

	switch envelope.Command {
	case "settings":
		raw, ok := envelope.Settings[consumptionFormID]
		if !ok || isEmptyJSON(raw) {
			return nil
		}
		var form ConsumptionForm
		if err := json.Unmarshal(raw, &form); err != nil {
			c.Err = fmt.Errorf("failed to decode %s settings: %w", consumptionFormID, err)
			return nil
		}
		c.Kind = CommandSettings
		c.Consumption = &form
	case "update_build_id":
		if envelope.New == "" {
			return nil
		}
		c.Kind = CommandUpdateBuildID
		c.OldBuildID = envelope.Old
		c.NewBuildID = envelope.New
	}
	return nil
}

// isEmptyJSON reports whether raw is a falsy JSON value.
func isEmptyJSON(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "false", "[]", "{}", `""`, "0":
		return true
	}
	return false
}
