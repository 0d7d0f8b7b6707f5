package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "   ", want: nil},
		{name: "comment", input: "# companionctl stop", want: nil},
		{name: "plain", input: "companionctl stop", want: []string{"companionctl", "stop"}},
		{name: "single quotes", input: "notify-send 'drover stopped'", want: []string{"notify-send", "drover stopped"}},
		{name: "double quotes", input: `companionctl follow --label "keep close"`, want: []string{"companionctl", "follow", "--label", "keep close"}},
		{name: "escaped space", input: `run my\ tool`, want: []string{"run", "my tool"}},
		{name: "adjacent quoted", input: `echo a"b c"d`, want: []string{"echo", "ab cd"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			argv, err := parseArgv(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.want, argv)
		})
	}
}

func TestParseArgvErrors(t *testing.T) {
	t.Parallel()

	_, err := parseArgv("companionctl 'stop")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated quote")

	_, err = parseArgv(`companionctl stop\`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated escape")
}
