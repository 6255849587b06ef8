package search

import (
	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/tags"
)

func ranked(term, reading string, freq int64, pos []string, meanings ...string) dictionary.Entry {
	return dictionary.Entry{
		Term:             term,
		Reading:          reading,
		PartOfSpeechTags: pos,
		Frequency:        freq,
		Ranked:           true,
		Meanings:         meanings,
	}
}

func unranked(term, reading string, pos []string, meanings ...string) dictionary.Entry {
	return dictionary.Entry{
		Term:             term,
		Reading:          reading,
		PartOfSpeechTags: pos,
		Meanings:         meanings,
	}
}

func fixtureResolver() *tags.Resolver {
	return tags.NewResolver([]tags.Definition{
		{Symbol: "n", Category: "partOfSpeech", Description: "noun"},
		{Symbol: "v5", Category: "partOfSpeech", Description: "Godan verb"},
		{Symbol: "P", Category: "popular", Description: "popular term"},
	})
}

func fixtureEntries() []dictionary.Entry {
	dog := ranked("犬", "いぬ", 10, []string{"n"}, "dog")
	dog.ExtraTags = []string{"P"}
	return []dictionary.Entry{
		dog,
		ranked("猫", "ねこ", 12, []string{"n"}, "cat"),
		unranked("走る", "はしる", []string{"v5"}, "to run"),
		ranked("犬", "いぬ", 3, []string{"n"}, "spy", "snoop"),
		ranked("子犬", "こいぬ", 12, []string{"n"}, "puppy"),
	}
}

func fixtureStore() *dictionary.Store {
	return dictionary.NewStore(fixtureEntries(), []dictionary.FuriganaEntry{
		{Term: "犬", Reading: "いぬ", Segments: []dictionary.FuriganaSegment{{Ruby: "犬", Rt: "いぬ"}}},
	})
}
