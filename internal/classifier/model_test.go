package classifier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier/internal/conf"
)

func TestModelTypeNames(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, len(AllModelTypes()))
	for _, m := range AllModelTypes() {
		names = append(names, m.String())
	}
	assert.Equal(t, []string{"MobileNetV2", "ResNet50"}, names)
	assert.Equal(t, conf.ModelNames, names, "config validation must accept exactly the model names")
	assert.Equal(t, MobileNetV2, DefaultModel)
	assert.Equal(t, conf.DefaultModel, DefaultModel.String())
}

func TestParseModelType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    ModelType
		wantErr bool
	}{
		{"MobileNetV2", MobileNetV2, false},
		{"resnet50", ResNet50, false},
		{"  ResNet50 ", ResNet50, false},
		{"VGG16", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseModelType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveModels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []ModelType{ResNet50}, EffectiveModels(ResNet50, false))
	assert.Equal(t, AllModelTypes(), EffectiveModels(ResNet50, true))
}

func TestModelTypeJSONKeys(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[ModelType]string{ResNet50: "x", MobileNetV2: "y"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"MobileNetV2":"y","ResNet50":"x"}`, string(data))

	var back map[ModelType]string
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "x", back[ResNet50])

	assert.Equal(t, "ModelType(7)", ModelType(7).String())
	_, err = ModelType(7).MarshalText()
	require.Error(t, err)
}
