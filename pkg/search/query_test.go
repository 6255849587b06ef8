package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want ParsedQuery
	}{
		{
			name: "plain term",
			raw:  "  犬  ",
			want: ParsedQuery{Kind: KindTerm, Mode: ModeExact, SearchTerm: "犬", HasTerm: true},
		},
		{
			name: "frequency only",
			raw:  "#frq12",
			want: ParsedQuery{Kind: KindFrequency, Mode: ModeExact, Frequency: 12, HasFrequency: true, TagOnly: true},
		},
		{
			name: "negative frequency",
			raw:  "#frq -3",
			want: ParsedQuery{Kind: KindFrequency, Mode: ModeExact, Frequency: -3, HasFrequency: true, TagOnly: true},
		},
		{
			name: "tag only",
			raw:  "#n",
			want: ParsedQuery{Kind: KindTag, Mode: ModeExact, TagFilter: "n", HasTag: true, TagOnly: true},
		},
		{
			name: "wildcard tag",
			raw:  "#",
			want: ParsedQuery{Kind: KindTag, Mode: ModeExact, HasTag: true, TagOnly: true},
		},
		{
			name: "term with tag",
			raw:  "犬 #n",
			want: ParsedQuery{Kind: KindTerm, Mode: ModeExact, SearchTerm: "犬", HasTerm: true, TagFilter: "n", HasTag: true},
		},
		{
			name: "term with frequency",
			raw:  "犬 #frq5",
			want: ParsedQuery{Kind: KindFrequency, Mode: ModeExact, SearchTerm: "犬", HasTerm: true, Frequency: 5, HasFrequency: true},
		},
		{
			name: "splits on first marker only",
			raw:  "a #b #c",
			want: ParsedQuery{Kind: KindTerm, Mode: ModeExact, SearchTerm: "a", HasTerm: true, TagFilter: "b #c", HasTag: true},
		},
		{
			name: "hash without leading space is part of the term",
			raw:  "c#",
			want: ParsedQuery{Kind: KindTerm, Mode: ModeExact, SearchTerm: "c#", HasTerm: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseQuery(tt.raw, "exact")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuery_InvalidFrequency(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"#frqabc", "#frq", "犬 #frq1.5", "犬 #frqx"} {
		_, err := ParseQuery(raw, "exact")
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrInvalidFrequency), raw)
		assert.True(t, errors.Is(err, ErrValidation), raw)
	}
}

func TestParseQuery_KeepsUnknownMode(t *testing.T) {
	t.Parallel()

	q, err := ParseQuery("犬", "fuzzy")
	require.NoError(t, err)
	assert.Equal(t, Mode("fuzzy"), q.Mode)
	assert.False(t, q.Mode.Valid())
	assert.True(t, ModeEnAny.Valid())
}
