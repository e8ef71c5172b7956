package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ReturnCode
	}{
		{name: "nil", err: nil, want: Success},
		{name: "unknown", err: errors.New("boom"), want: FailureGeneric},
		{name: "pattern invalid", err: ErrPatternInvalid, want: FailurePatternInvalid},
		{name: "pattern too long", err: ErrPatternTooLong, want: FailurePatternTooLong},
		{name: "duplicate hook", err: ErrDuplicateHook, want: FailureDuplicacy},
		{name: "missing hook", err: ErrHookNotFound, want: FailureDuplicacy},
		{name: "invalid caller", err: ErrInvalidCaller, want: FailureInvalidParam},
		{name: "low version", err: ErrLowVersion, want: FailureLowVersion},
		{name: "null pointer", err: ErrNullPointer, want: FailureNullPointer},
		{name: "unsupported", err: ErrUnsupported, want: FailureUnsupportedYet},
		{name: "unsupported executable", err: ErrUnsupportedExecutable, want: ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestCodeOf_SurvivesWrapping(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entry := rapid.SampledFrom(codeOfError).Draw(t, "entry")
		depth := rapid.IntRange(1, 5).Draw(t, "depth")

		err := entry.err
		for i := 0; i < depth; i++ {
			err = fmt.Errorf("layer %d: %w", i, err)
		}
		if got := CodeOf(err); got != entry.code {
			t.Fatalf("CodeOf(%v) = %v, want %v", err, got, entry.code)
		}
	})
}

func TestReturnCode_Classes(t *testing.T) {
	assert.True(t, Success.OK())
	assert.False(t, FailureGeneric.OK())
	assert.False(t, FailureNullPointer.Fatal())
	assert.True(t, ErrorFatal.Fatal())
	assert.True(t, ErrorWinAPI.Fatal())
	assert.Contains(t, FailureHooking.String(), "FailureHooking")
	assert.Equal(t, "unrecognized return code 42", ReturnCode(42).String())
}

func TestGameFlags(t *testing.T) {
	assert.True(t, FlagAllGames.Has(GameLE2))
	assert.False(t, FlagAllGames.Has(GameLauncher))
	assert.False(t, FlagAllGames.Has(GameUnsupported))
	assert.True(t, (FlagLauncher | FlagLE3).Has(GameLauncher))

	assert.Equal(t, "LE1|LE2|LE3", FlagAllGames.String())
	assert.Equal(t, "none", GameFlags(0).String())
	assert.Equal(t, GameFlags(0), GameUnsupported.Flag())
}

func TestGame_IsGame(t *testing.T) {
	assert.False(t, GameLauncher.IsGame())
	assert.True(t, GameLE1.IsGame())
	assert.True(t, GameLE3.IsGame())
	assert.False(t, GameUnsupported.IsGame())
	assert.Equal(t, "Unsupported(4)", GameUnsupported.String())
}

func TestTarget_MatchesTitle(t *testing.T) {
	target := Target{Game: GameLE1, WindowTitle: "Mass Effect", SplashTitles: []string{"Mass Effect Splash"}}

	assert.True(t, target.MatchesTitle("Mass Effect"))
	assert.True(t, target.MatchesTitle("Mass Effect Splash"))
	assert.False(t, target.MatchesTitle("Mass Effect 2"))
	assert.False(t, target.MatchesTitle("mass effect"))
	assert.False(t, target.MatchesTitle(""))
	assert.False(t, Target{}.MatchesTitle(""))
}

func TestHostContext_ResolvePath(t *testing.T) {
	dir := t.TempDir()
	host := HostContext{ExeDir: dir}

	assert.Equal(t, filepath.Join(dir, "ASI"), host.ResolvePath("ASI"))
	assert.Equal(t, dir, host.ResolvePath(dir))
	assert.Equal(t, "ASI", HostContext{}.ResolvePath("ASI"))
}
