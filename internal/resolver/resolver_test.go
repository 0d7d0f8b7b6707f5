package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"drover/internal/dispatch"
)

// fakeCompleter records calls and returns a scripted reply.
type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.calls++
	f.last = prompt
	return f.reply, f.err
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "stop right there", Normalize("  Stop RIGHT There  "))
	require.Equal(t, "", Normalize("   "))
}

func TestResolveEmptyCommand(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Resolve(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyCommand)
	require.Equal(t, 0, r.Cache().Len())
}

func TestResolveHeuristicPriority(t *testing.T) {
	tests := []struct {
		text string
		want dispatch.Action
	}{
		{text: "stop and jump", want: dispatch.ActionStop}, // STOP outranks JUMP
		{text: "please follow me", want: dispatch.ActionFollow},
		{text: "back off now", want: dispatch.ActionBackoff},
		{text: "jump over it", want: dispatch.ActionJump},
		{text: "just relax for a bit", want: dispatch.ActionIdle},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			r := New(nil, nil)
			got, err := r.Resolve(context.Background(), tc.text)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestResolveNegationFlipsAction(t *testing.T) {
	tests := []struct {
		text string
		want dispatch.Action
	}{
		{text: "don't stop", want: dispatch.ActionFollow},
		{text: "do not jump", want: dispatch.ActionIdle},
		{text: "don't follow me", want: dispatch.ActionStop},
		{text: "do not back off", want: dispatch.ActionFollow},
		{text: "don't just stand down", want: dispatch.ActionFollow},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			r := New(nil, nil)
			got, err := r.Resolve(context.Background(), tc.text)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestResolveCacheHitSkipsLowerTiers(t *testing.T) {
	remote := &fakeCompleter{reply: "JUMP"}
	r := New(remote, nil)

	first, err := r.Resolve(context.Background(), "Vault The Fence")
	require.NoError(t, err)
	require.Equal(t, dispatch.ActionJump, first)
	require.Equal(t, 1, remote.calls)

	second, err := r.Resolve(context.Background(), "  vault the fence  ")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, remote.calls) // pure cache hit, no remote work
}

func TestResolveHeuristicMatchIsCached(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Resolve(context.Background(), "STOP now")
	require.NoError(t, err)

	cached, ok := r.Cache().Get("stop now")
	require.True(t, ok)
	require.Equal(t, dispatch.ActionStop, cached)
}

func TestResolveRemoteReceivesRawCommand(t *testing.T) {
	remote := &fakeCompleter{reply: "BACKOFF"}
	r := New(remote, nil)

	got, err := r.Resolve(context.Background(), "  Shoo, Go Bother Someone Else  ")
	require.NoError(t, err)
	require.Equal(t, dispatch.ActionBackoff, got)
	require.Equal(t, "  Shoo, Go Bother Someone Else  ", remote.last)
}

func TestResolveRemoteReplyNormalizedAndCached(t *testing.T) {
	remote := &fakeCompleter{reply: "  follow \n"}
	r := New(remote, nil)

	got, err := r.Resolve(context.Background(), "shadow my movements")
	require.NoError(t, err)
	require.Equal(t, dispatch.ActionFollow, got)

	cached, ok := r.Cache().Get("shadow my movements")
	require.True(t, ok)
	require.Equal(t, dispatch.ActionFollow, cached)
}

func TestResolveRemoteFailureNotCached(t *testing.T) {
	remote := &fakeCompleter{err: errors.New("socket timeout")}
	r := New(remote, nil)

	_, err := r.Resolve(context.Background(), "shadow my movements")
	require.ErrorIs(t, err, ErrRemoteResolution)
	require.Equal(t, 0, r.Cache().Len())
}

func TestResolveRemoteEmptyReplyNotCached(t *testing.T) {
	remote := &fakeCompleter{reply: "   "}
	r := New(remote, nil)

	_, err := r.Resolve(context.Background(), "shadow my movements")
	require.ErrorIs(t, err, ErrRemoteResolution)
	require.Equal(t, 0, r.Cache().Len())
}

func TestResolveNoRemoteConfigured(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Resolve(context.Background(), "shadow my movements")
	require.ErrorIs(t, err, ErrRemoteResolution)
}

func TestResolveDisabledHeuristicsGoStraightToRemote(t *testing.T) {
	remote := &fakeCompleter{reply: "STOP"}
	r := NewWithOptions(remote, nil, Options{DisableHeuristics: true})

	got, err := r.Resolve(context.Background(), "stop now")
	require.NoError(t, err)
	require.Equal(t, dispatch.ActionStop, got)
	require.Equal(t, 1, remote.calls) // the rule table would have matched
}

func TestResolveDisabledCacheRepeatsWork(t *testing.T) {
	remote := &fakeCompleter{reply: "JUMP"}
	r := NewWithOptions(remote, nil, Options{DisableCache: true})

	_, err := r.Resolve(context.Background(), "vault the fence")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "vault the fence")
	require.NoError(t, err)

	require.Equal(t, 2, remote.calls)
	require.Equal(t, 0, r.Cache().Len())
}

func TestClassifyNoMatch(t *testing.T) {
	_, ok := Classify("completely unrelated chatter", DefaultRules())
	require.False(t, ok)

	_, ok = Classify("", DefaultRules())
	require.False(t, ok)
}
