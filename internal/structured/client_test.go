package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/backend/backendtest"
	"github.com/aristath/agentgraph/internal/errs"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `  {"a": 1}  `, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "generic fence", in: "```\n[1, 2]\n```\ntrailing", want: `[1, 2]`},
		{name: "unterminated fence", in: "```json\n{\"a\": 1}", want: `{"a": 1}`},
		{name: "fence not leading", in: "Here you go:\n```json\n{}\n```", want: "Here you go:\n```json\n{}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestCall_FirstReplyParses(t *testing.T) {
	fake := backendtest.Sequence("```json\n{\"satisfactory\": true}\n```")
	client := NewClient(fake, nil)

	result, err := client.Call(context.Background(), "gpt-oss", []backend.Message{backend.User("judge")})
	require.NoError(t, err)

	assert.True(t, result.Get("satisfactory").Bool())
	assert.Equal(t, 1, fake.CallCount(), "no repair call for a valid reply")

	call := fake.Calls()[0]
	assert.Equal(t, "gpt-oss", call.Model)
	assert.Len(t, call.Messages, 1)
}

func TestCall_RepairsOnce(t *testing.T) {
	fake := backendtest.Sequence("sure! {not json", `{"workers": []}`)
	client := NewClient(fake, nil)

	original := []backend.Message{backend.System("coordinator"), backend.User("define")}
	result, err := client.Call(context.Background(), "m", original)
	require.NoError(t, err)
	assert.True(t, result.Get("workers").IsArray())
	require.Equal(t, 2, fake.CallCount())

	repair := fake.Calls()[1]
	require.Len(t, repair.Messages, 4)
	assert.Equal(t, original[0], repair.Messages[0])
	assert.Equal(t, original[1], repair.Messages[1])
	assert.Equal(t, backend.Assistant("sure! {not json"), repair.Messages[2])
	assert.Equal(t, backend.User(RepairInstruction), repair.Messages[3])
}

func TestCall_SecondFailureIsTerminal(t *testing.T) {
	fake := backendtest.Sequence("nope", "still nope", `{"late": true}`)
	client := NewClient(fake, nil)

	_, err := client.Call(context.Background(), "m", []backend.Message{backend.User("x")})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindMalformedOutput))
	assert.Equal(t, 2, fake.CallCount(), "at most one repair attempt")
}

func TestCall_TransportFailure(t *testing.T) {
	fake := backendtest.Sequence(errors.New("connection refused"))
	client := NewClient(fake, nil)

	_, err := client.Call(context.Background(), "m", []backend.Message{backend.User("x")})
	require.Error(t, err)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 1, fake.CallCount())
}

func TestCall_TransportFailureDuringRepair(t *testing.T) {
	fake := backendtest.Sequence("garbage", errors.New("timeout"))
	client := NewClient(fake, nil)

	_, err := client.Call(context.Background(), "m", []backend.Message{backend.User("x")})
	require.Error(t, err)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestComplete_ReturnsText(t *testing.T) {
	fake := backendtest.Sequence("free text answer")
	client := NewClient(fake, nil)

	text, err := client.Complete(context.Background(), "m", []backend.Message{backend.User("x")})
	require.NoError(t, err)
	assert.Equal(t, "free text answer", text)
}
