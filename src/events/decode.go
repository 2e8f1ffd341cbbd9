package events

import (
	"encoding/json"
	"strings"

	"capture-tool/src/helpers"
	"capture-tool/src/models"
)

// DecodeStrings reads a list of strings. A bare JSON string is accepted as a
// one-element list because some backends announce a single channel that way.
func DecodeStrings(event models.MEvent) ([]string, error) {
	raw := strings.TrimSpace(string(event.Payload))
	if raw == "" || raw == "null" {
		return nil, nil
	}

	if strings.HasPrefix(raw, `"`) {
		var one string
		if err := json.Unmarshal(event.Payload, &one); err != nil {
			return nil, helpers.NewDecodeError(event.Topic+" payload", err)
		}
		return []string{one}, nil
	}

	var list []string
	if err := json.Unmarshal(event.Payload, &list); err != nil {
		return nil, helpers.NewDecodeError(event.Topic+" payload", err)
	}
	return list, nil
}

// -----------------------------------------------------------------------------

// DecodeString reads a single string payload.
func DecodeString(event models.MEvent) (string, error) {
	var s string
	if err := json.Unmarshal(event.Payload, &s); err != nil {
		return "", helpers.NewDecodeError(event.Topic+" payload", err)
	}
	return s, nil
}

// -----------------------------------------------------------------------------

// DecodeBatch reads an ordered sequence of scalars.
func DecodeBatch(event models.MEvent) (models.MSampleBatch, error) {
	var batch models.MSampleBatch
	if len(event.Payload) == 0 {
		return batch, nil
	}
	if err := json.Unmarshal(event.Payload, &batch); err != nil {
		return nil, helpers.NewDecodeError(event.Topic+" batch", err)
	}
	return batch, nil
}
