package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  EventType
		ok    bool
	}{
		{"join", "game.join", EventGameJoin, true},
		{"leave", "game.leave", EventGameLeave, true},
		{"start", "game.control.start", EventGameControlStart, true},
		{"pause", "game.control.pause", EventGameControlPause, true},
		{"resume", "game.control.resume", EventGameControlResume, true},
		{"speed", "game.control.speed", EventGameControlSpeed, true},
		{"score update", "game.score.update", EventGameScoreUpdate, true},
		{"error", "game.error", EventGameError, true},
		{"unknown", "game.destroy", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEventType(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEventTypeIsControl(t *testing.T) {
	assert.True(t, EventGameControlStart.IsControl())
	assert.True(t, EventGameControlPause.IsControl())
	assert.True(t, EventGameControlResume.IsControl())
	assert.True(t, EventGameControlSpeed.IsControl())
	assert.False(t, EventGameJoin.IsControl())
	assert.False(t, EventGameScoreUpdate.IsControl())
	assert.False(t, EventGameError.IsControl())
}

func TestParseChannel(t *testing.T) {
	c, ok := ParseChannel("scores_update")
	require.True(t, ok)
	assert.Equal(t, ChannelScores, c)

	c, ok = ParseChannel("controls")
	require.True(t, ok)
	assert.Equal(t, ChannelControls, c)

	_, ok = ParseChannel("replays")
	assert.False(t, ok)
}

func TestDefaultRelayChannels(t *testing.T) {
	assert.Equal(t, []Channel{ChannelScores, ChannelControls}, DefaultRelayChannels())
}

func TestTypeOf(t *testing.T) {
	// In-process brokers deliver the original map with a typed value.
	typed := Message{KeyType: EventGameControlPause}
	got, ok := TypeOf(typed)
	require.True(t, ok)
	assert.Equal(t, EventGameControlPause, got)

	// Networked brokers round-trip through JSON and deliver plain strings.
	raw := Message{KeyType: "game.score.update"}
	got, ok = TypeOf(raw)
	require.True(t, ok)
	assert.Equal(t, EventGameScoreUpdate, got)

	_, ok = TypeOf(Message{KeyType: 42})
	assert.False(t, ok)

	_, ok = TypeOf(Message{})
	assert.False(t, ok)
}

func TestNewScoreUpdate(t *testing.T) {
	record := map[string]any{"points": 15, "server": "home"}
	msg := NewScoreUpdate(record)

	assert.Equal(t, "game.score.update", msg[KeyType])
	assert.Equal(t, record, msg[KeyData])
}

func TestGameIDOf(t *testing.T) {
	id, ok := GameIDOf(Message{KeyGameID: "g1"})
	require.True(t, ok)
	assert.Equal(t, "g1", id)

	_, ok = GameIDOf(Message{KeyGameID: ""})
	assert.False(t, ok)

	_, ok = GameIDOf(Message{})
	assert.False(t, ok)
}

func TestMessageError(t *testing.T) {
	err := NewMessageError("Invalid data schema.")
	assert.Equal(t, "Invalid data schema.", err.Error())
}
