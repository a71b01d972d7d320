package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandSubscribe(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Mask
	}{
		{"create", `{"command":"subscribe","mask":256}`, Create},
		{"zero", `{"command":"subscribe","mask":0}`, 0},
		{"all bits", `{"command":"subscribe","mask":-1}`, Everything},
		{"field order", `{"mask":512,"command":"subscribe"}`, Delete},
		{"extra fields", `{"command":"subscribe","mask":8,"id":"x"}`, CloseWrite},
		{"generated", string(SubscribeMessage(Create | Delete)), Create | Delete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, CommandSubscribe, cmd.Kind)
			assert.Equal(t, tt.want, cmd.Mask)
		})
	}
}

func TestParseCommandIgnored(t *testing.T) {
	for _, in := range []string{
		`{}`,
		`{"mask":256}`,
		`{"command":null,"mask":256}`,
		`{"command":"unsubscribe","mask":256}`,
		`{"command":"subscribe"}`,
		`{"command":"subscribe","mask":null}`,
	} {
		cmd, err := ParseCommand([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, CommandNone, cmd.Kind, in)
	}
}

func TestParseCommandMalformed(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`[1,2,3]`,
		`"subscribe"`,
		`{"command":42,"mask":1}`,
		`{"command":"subscribe","mask":"256"}`,
		`{"command":"subscribe","mask":1.5}`,
		`{"command":"subscribe","mask":99999999999999999999}`,
	} {
		_, err := ParseCommand([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedCommand, in)
	}
}
