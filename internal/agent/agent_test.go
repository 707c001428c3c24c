package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSpec(t *testing.T) {
	tests := []struct {
		name      string
		spec      Spec
		wantModel string
		wantErr   string
	}{
		{name: "default model", spec: Spec{Name: "researcher", Prompt: "Find facts"}, wantModel: "gpt-oss"},
		{name: "explicit model", spec: Spec{Name: "writer", Prompt: "Write", Model: "llama3"}, wantModel: "llama3"},
		{name: "missing name", spec: Spec{Prompt: "x"}, wantErr: "no name"},
		{name: "reserved name", spec: Spec{Name: "coordinator", Prompt: "x"}, wantErr: "reserved"},
		{name: "missing prompt", spec: Spec{Name: "idle", Prompt: "  "}, wantErr: "no prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := FromSpec(tt.spec, "gpt-oss")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec.Name, d.Name)
			assert.Equal(t, tt.spec.Prompt, d.Prompt)
			assert.Equal(t, tt.wantModel, d.Model)
		})
	}
}

func TestDescriptor_Blurb(t *testing.T) {
	long := strings.Repeat("a", 150)

	tests := []struct {
		name string
		d    Descriptor
		want string
	}{
		{name: "role wins", d: Descriptor{Role: "Researcher", Prompt: "Intro Your role: dig"}, want: "Researcher"},
		{name: "text before marker", d: Descriptor{Prompt: "Expert analyst. Your role: analyze"}, want: "Expert analyst."},
		{name: "long prompt", d: Descriptor{Prompt: long}, want: long[:100]},
		{name: "short prompt", d: Descriptor{Prompt: "Short"}, want: "Short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Blurb())
		})
	}
}

func TestRegistry_CoordinatorAlwaysPresent(t *testing.T) {
	r := NewRegistry(Coordinator("gpt-oss"))

	d, ok := r.Resolve(CoordinatorName)
	require.True(t, ok)
	assert.Equal(t, CoordinatorPrompt, d.Prompt)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Workers())
}

func TestRegistry_RefusesReservedName(t *testing.T) {
	r := NewRegistry(Coordinator("gpt-oss"))

	err := r.Register(Descriptor{Name: CoordinatorName, Prompt: "hijack"})
	assert.ErrorIs(t, err, ErrReservedName)

	d, _ := r.Resolve(CoordinatorName)
	assert.Equal(t, CoordinatorPrompt, d.Prompt)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	r := NewRegistry(Coordinator("gpt-oss"))

	require.NoError(t, r.Register(Descriptor{Name: "a", Prompt: "first"}))
	require.NoError(t, r.Register(Descriptor{Name: "b", Prompt: "other"}))
	require.NoError(t, r.Register(Descriptor{Name: "a", Prompt: "second"}))

	d, ok := r.Resolve("a")
	require.True(t, ok)
	assert.Equal(t, "second", d.Prompt)

	workers := r.Workers()
	require.Len(t, workers, 2)
	assert.Equal(t, "a", workers[0].Name)
	assert.Equal(t, "b", workers[1].Name)
}

func TestRegistry_ResolveMissing(t *testing.T) {
	r := NewRegistry(Coordinator("gpt-oss"))

	_, ok := r.Resolve("ghost")
	assert.False(t, ok)
}
