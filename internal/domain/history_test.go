package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryContent_StripsLegacySeparator(t *testing.T) {
	stored := `{"context":"abc123"}__LLM_RESPONSE__The actual answer.`
	require.Equal(t, "The actual answer.", HistoryContent(stored))
}

func TestHistoryContent_PlainTextUnchanged(t *testing.T) {
	require.Equal(t, "No separator here.", HistoryContent("No separator here."))
}

func TestHistoryContent_UsesLastSeparator(t *testing.T) {
	stored := "a__LLM_RESPONSE__b__LLM_RESPONSE__c"
	require.Equal(t, "c", HistoryContent(stored))
}

func TestValidateTurns(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		want  error
	}{
		{
			name:  "empty",
			turns: nil,
			want:  ErrEmptyTurns,
		},
		{
			name:  "last turn assistant",
			turns: []Turn{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}},
			want:  ErrLastTurnNotUser,
		},
		{
			name:  "single user turn",
			turns: []Turn{{Role: RoleUser, Content: "q"}},
			want:  nil,
		},
		{
			name: "conversation ending with user",
			turns: []Turn{
				{Role: RoleUser, Content: "q1"},
				{Role: RoleAssistant, Content: "a1"},
				{Role: RoleUser, Content: "q2"},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurns(tt.turns)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWindowTurns(t *testing.T) {
	turns := make([]Turn, 12)
	for i := range turns {
		turns[i] = Turn{Role: RoleUser, Ordinal: i + 1}
	}

	windowed := WindowTurns(turns, 10)
	require.Len(t, windowed, 10)
	require.Equal(t, 3, windowed[0].Ordinal)
	require.Equal(t, 12, windowed[9].Ordinal)

	require.Len(t, WindowTurns(turns[:4], 10), 4)
	require.Len(t, WindowTurns(turns, 0), 12)
}
