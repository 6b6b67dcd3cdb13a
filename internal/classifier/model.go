package classifier

import (
	"fmt"
	"strings"
)

// ModelType identifies one of the supported pretrained classifiers.
type ModelType int

const (
	MobileNetV2 ModelType = iota
	ResNet50
)

// DefaultModel is selected when nothing else is configured.
const DefaultModel = MobileNetV2

var modelNames = [...]string{
	MobileNetV2: "MobileNetV2",
	ResNet50:    "ResNet50",
}

// AllModelTypes returns every model in declaration order.
func AllModelTypes() []ModelType {
	return []ModelType{MobileNetV2, ResNet50}
}

// String returns the user-facing model name.
func (m ModelType) String() string {
	if !m.Valid() {
		return fmt.Sprintf("ModelType(%d)", int(m))
	}
	return modelNames[m]
}

// Valid reports whether m is a supported model.
func (m ModelType) Valid() bool {
	return m >= MobileNetV2 && int(m) < len(modelNames)
}

// MarshalText implements encoding.TextMarshaler so model types can be map keys in JSON.
func (m ModelType) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid model type %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ModelType) UnmarshalText(text []byte) error {
	parsed, err := ParseModelType(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseModelType resolves a model name, case-insensitively.
func ParseModelType(name string) (ModelType, error) {
	name = strings.TrimSpace(name)
	for _, m := range AllModelTypes() {
		if strings.EqualFold(name, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown model %q, expected one of %v", name, AllModelTypes())
}

// EffectiveModels returns the models a single request runs: every model in
// compare mode, otherwise only current.
func EffectiveModels(current ModelType, compare bool) []ModelType {
	if compare {
		return AllModelTypes()
	}
	return []ModelType{current}
}
