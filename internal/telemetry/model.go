package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Model identifies which of the two side-by-side backends a sample or
// event belongs to.
type Model int

const (
	ModelA Model = iota
	ModelB
)

// Models lists both model tags in display order.
var Models = []Model{ModelA, ModelB}

var modelNames = map[Model]string{
	ModelA: "A",
	ModelB: "B",
}

var modelFromName = map[string]Model{
	"a":       ModelA,
	"b":       ModelB,
	"model_a": ModelA,
	"model_b": ModelB,
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return "unknown"
}

func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseModel(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseModel resolves a wire-format model tag. The harness emits "A"/"B"
// but older builds used "model_a"/"model_b"; both spellings are accepted,
// case-insensitively. An empty or unrecognized tag is an error — samples
// are never attributed to a model by inference.
func ParseModel(s string) (Model, error) {
	if v, ok := modelFromName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unrecognized model tag %q", s)
}
