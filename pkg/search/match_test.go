package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/kotoba/pkg/dictionary"
)

type matched struct {
	term    string
	meaning string
}

func summarize(entries []dictionary.Entry) []matched {
	out := make([]matched, 0, len(entries))
	for _, e := range entries {
		out = append(out, matched{e.Term, e.Meanings[0]})
	}
	return out
}

func TestMatch(t *testing.T) {
	t.Parallel()

	entries := fixtureEntries()
	resolver := fixtureResolver()

	tests := []struct {
		name string
		raw  string
		mode string
		want []matched
	}{
		{"exact term", "犬", "exact", []matched{{"犬", "dog"}, {"犬", "spy"}}},
		{"exact reading", "いぬ", "exact", []matched{{"犬", "dog"}, {"犬", "spy"}}},
		{"substring", "犬", "any", []matched{{"子犬", "puppy"}, {"犬", "dog"}, {"犬", "spy"}}},
		{"both", "犬,いぬ", "both", []matched{{"犬", "dog"}, {"犬", "spy"}}},
		{"both without comma", "犬", "both", nil},
		{"both with two commas", "犬,いぬ,x", "both", nil},
		{"english exact ignores case", "DOG", "en_exact", []matched{{"犬", "dog"}}},
		{"english exact needs whole meaning", "do", "en_exact", nil},
		{"english substring", "NOO", "en_any", []matched{{"犬", "spy"}}},
		{"missing mode matches no term", "犬", "", nil},
		{"unknown mode matches no term", "犬", "fuzzy", nil},
		{"tag only", "#n", "", []matched{{"猫", "cat"}, {"子犬", "puppy"}, {"犬", "dog"}, {"犬", "spy"}}},
		{"wildcard puts unranked last", "#", "", []matched{
			{"猫", "cat"}, {"子犬", "puppy"}, {"犬", "dog"}, {"犬", "spy"}, {"走る", "to run"},
		}},
		{"frequency", "#frq12", "", []matched{{"猫", "cat"}, {"子犬", "puppy"}}},
		{"frequency without hits", "#frq99", "exact", nil},
		{"term narrows frequency", "犬 #frq12", "any", []matched{{"子犬", "puppy"}}},
		{"term and frequency disagree", "犬 #frq12", "exact", nil},
		{"term with tag", "犬 #P", "exact", []matched{{"犬", "dog"}}},
		{"term with other tag", "犬 #v5", "exact", nil},
		{"term with empty tag", "犬 #", "exact", []matched{{"犬", "dog"}, {"犬", "spy"}}},
		{"unknown tag", "#zzz", "", nil},
		{"term with unknown tag", "犬 #zzz", "exact", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := ParseQuery(tt.raw, tt.mode)
			require.NoError(t, err)

			got := Match(entries, resolver, q)
			require.NotNil(t, got)
			want := tt.want
			if want == nil {
				want = []matched{}
			}
			assert.Equal(t, want, summarize(got))
		})
	}
}

func TestMatch_OrderIsDescendingAndStable(t *testing.T) {
	t.Parallel()

	entries := []dictionary.Entry{
		unranked("a", "a", nil, "1"),
		ranked("b", "b", 5, nil, "2"),
		ranked("c", "c", 7, nil, "3"),
		unranked("d", "d", nil, "4"),
		ranked("e", "e", 5, nil, "5"),
	}
	q, err := ParseQuery("#", "")
	require.NoError(t, err)

	got := summarize(Match(entries, fixtureResolver(), q))
	assert.Equal(t, []matched{{"c", "3"}, {"b", "2"}, {"e", "5"}, {"a", "1"}, {"d", "4"}}, got)
}

func TestMatch_DoesNotReorderInput(t *testing.T) {
	t.Parallel()

	entries := fixtureEntries()
	q, err := ParseQuery("#", "")
	require.NoError(t, err)
	Match(entries, fixtureResolver(), q)

	assert.Equal(t, fixtureEntries(), entries)
}
