package command_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codexlab/codexcore/internal/command"
)

func TestUnitResultHasNoMessageParts(t *testing.T) {
	parts, err := command.Unit().ToMessageParts()
	require.NoError(t, err)
	require.Empty(t, parts)
}

func TestTextResultProducesSinglePlainPart(t *testing.T) {
	parts, err := command.TextResult("hello").ToMessageParts()
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, "text/plain", parts[0].MediaType)
	require.Equal(t, "hello", parts[0].Text)
}

func TestJSONResultProducesPrettyAndRawParts(t *testing.T) {
	parts, err := command.JSONResult(map[string]int{"a": 1}).ToMessageParts()
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, "text/plain", parts[0].MediaType)
	require.Contains(t, parts[0].Text, "\n")
	require.Equal(t, "application/json", parts[1].MediaType)
	require.Equal(t, `{"a":1}`, parts[1].Text)
}

func TestConfidenceSettingGetSet(t *testing.T) {
	setting := command.NewConfidenceSetting(0.5)
	require.Equal(t, float32(0.5), setting.Get())
	setting.Set(0.8)
	require.Equal(t, float32(0.8), setting.Get())
}
