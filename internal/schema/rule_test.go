package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProperties() Properties {
	return Properties{
		"name": {{Type: RuleString, Min: Number(2)}},
		"id":   {{Type: RuleString, Optional: Bool(false)}},
		"age":  {{Type: RuleInteger, Optional: Bool(true)}},
		"address": {{
			Type:   RuleObject,
			Strict: true,
			Properties: Properties{
				"city": {{Type: RuleString}},
				"zip":  {{Type: RuleString}, {Type: RuleString, Pattern: "^[0-9]+$"}},
			},
		}},
		"tags": {{Type: RuleArray, Items: Rules{{Type: RuleString}}}},
	}
}

func TestConvertForUpdateRelaxesRequiredness(t *testing.T) {
	out := ConvertForUpdate(sampleProperties())

	assert.True(t, out["name"][0].IsOptional())
	assert.True(t, out["age"][0].IsOptional())
	assert.True(t, out["tags"][0].IsOptional())
	assert.True(t, out["address"][0].IsOptional())

	nested := out["address"][0].Properties
	assert.True(t, nested["city"][0].IsOptional())
	require.Len(t, nested["zip"], 2)
	assert.True(t, nested["zip"][0].IsOptional())
	assert.True(t, nested["zip"][1].IsOptional())

	// Array items stay as they are.
	assert.Nil(t, out["tags"][0].Items[0].Optional)
}

func TestConvertForUpdateKeepsExplicitRequired(t *testing.T) {
	out := ConvertForUpdate(sampleProperties())

	require.NotNil(t, out["id"][0].Optional)
	assert.True(t, out["id"][0].IsRequiredOverride())
}

func TestConvertForUpdateDoesNotMutateInput(t *testing.T) {
	in := sampleProperties()
	_ = ConvertForUpdate(in)

	assert.Nil(t, in["name"][0].Optional)
	assert.Nil(t, in["address"][0].Optional)
	assert.Nil(t, in["address"][0].Properties["city"][0].Optional)
	assert.Equal(t, 2.0, *in["name"][0].Min)
}

func TestConvertForUpdateIsIdempotent(t *testing.T) {
	once := ConvertForUpdate(sampleProperties())
	twice := ConvertForUpdate(once)

	assert.Equal(t, once, twice)
	assert.True(t, twice["id"][0].IsRequiredOverride())
}

func TestConvertForUpdateEmpty(t *testing.T) {
	assert.Empty(t, ConvertForUpdate(nil))
}

func TestRulesPrimary(t *testing.T) {
	assert.Equal(t, RuleAny, Rules(nil).Primary().Type)
	assert.Equal(t, RuleString, Rules{{Type: RuleString}, {Type: RuleAny}}.Primary().Type)
}
