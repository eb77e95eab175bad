package generator

import "strings"

// topicBuckets maps an upper word-count bound to the number of topics asked for.
var topicBuckets = []struct {
	maxWords int
	topics   int
}{
	{1000, 5},
	{6000, 10},
	{12000, 10},
	{24000, 10},
}

const maxTopics = 10

// TopicCount returns how many topics to generate for a text of the given word count.
func TopicCount(words int) int {
	for _, b := range topicBuckets {
		if words <= b.maxWords {
			return b.topics
		}
	}
	return maxTopics
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
