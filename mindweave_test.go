package mindweave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
	"github.com/mindweave/mindweave/record"
)

func newTestEngine() *Engine {
	m := model.NewMockModel("test")
	m.AddToolArguments("record_extraction", `{
		"entities": [{"id": "grandmother", "label": "Grandmother", "type": "person", "importance": 8}],
		"relationships": []
	}`)
	m.AddToolArguments("review_reply", `{"approved": true, "crisisDetected": false}`)

	return NewWithModel(m, func(o *Options) {
		o.Records = record.NewInMemoryStore()
		o.Logger = logging.NoOpLogger{}
	})
}

func TestEngine_UserMessage(t *testing.T) {
	e := newTestEngine()
	uni := core.NewChannelEmitter(64)

	err := e.HandleMessage(context.Background(), core.Message{
		SessionID: "s1",
		Type:      core.MessageUser,
		Content:   "my grandmother taught me to bake",
	}, uni, nil)
	require.NoError(t, err)

	snap, ok := e.Snapshot("s1")
	require.True(t, ok)
	assert.Equal(t, 1, snap.Turn)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "grandmother", snap.Nodes[0].ID)

	var sawGraphUpdate, sawReply bool
	for {
		select {
		case ev := <-uni.Events():
			switch ev.EventType() {
			case "graph_update":
				sawGraphUpdate = true
			case "part_response":
				sawReply = true
			}
			continue
		default:
		}
		break
	}
	assert.True(t, sawGraphUpdate)
	assert.True(t, sawReply)
}

func TestEngine_RejectsMalformedMessage(t *testing.T) {
	e := newTestEngine()
	uni := core.NewChannelEmitter(8)

	err := e.HandleMessage(context.Background(), core.Message{
		SessionID: "s1",
		Type:      core.MessageUser,
		// Content missing for a user_message.
	}, uni, nil)
	require.Error(t, err)

	ev := <-uni.Events()
	assert.Equal(t, "error", ev.EventType())

	// No session state was created for the rejected message.
	_, ok := e.Snapshot("s1")
	assert.False(t, ok)
}

func TestEngine_NodeQuery(t *testing.T) {
	e := newTestEngine()

	require.NoError(t, e.HandleMessage(context.Background(), core.Message{
		SessionID: "s1", Type: core.MessageUser, Content: "about grandmother",
	}, nil, nil))

	uni := core.NewChannelEmitter(16)
	require.NoError(t, e.HandleMessage(context.Background(), core.Message{
		SessionID: "s1", Type: core.MessageNodeQuery, NodeID: "grandmother", Question: "who is she?",
	}, uni, nil))

	var answer *core.NodeAnswer
	for {
		select {
		case ev := <-uni.Events():
			if na, ok := ev.(core.NodeAnswer); ok {
				answer = &na
			}
			continue
		default:
		}
		break
	}
	require.NotNil(t, answer)
	assert.Equal(t, "grandmother", answer.NodeID)
	assert.NotEmpty(t, answer.Answer)
}

func TestEngine_AttachObserver(t *testing.T) {
	e := newTestEngine()
	uni := core.NewChannelEmitter(8)

	require.NoError(t, e.AttachObserver(context.Background(), "s1", "inner_critic", uni))

	ev := <-uni.Events()
	loaded, ok := ev.(core.ScenarioLoaded)
	require.True(t, ok)
	assert.Equal(t, "inner_critic", loaded.Scenario.ID)
	assert.NotEmpty(t, loaded.GraphData.Nodes)
	assert.Empty(t, loaded.TriggeredMilestones)
}

func TestEngine_Exports(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.HandleMessage(context.Background(), core.Message{
		SessionID: "s1", Type: core.MessageUser, Content: "hello",
	}, nil, nil))

	data, err := e.ExportJSON("s1")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessionId": "s1"`)

	md, err := e.ExportMarkdown("s1")
	require.NoError(t, err)
	assert.Contains(t, md, "# Session s1")

	_, err = e.ExportJSON("missing")
	assert.Error(t, err)
}

func TestMarshalEventCarriesType(t *testing.T) {
	data, err := core.MarshalEvent(core.ErrorEvent{Message: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"nope"}`, string(data))
}
