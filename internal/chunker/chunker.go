// Package chunker splits input text into bounded-size chunks for speech
// synthesis.
//
// The upstream provider rejects oversized requests, so long text is cut at
// sentence boundaries where possible, at word boundaries when a single
// sentence is too long, and by hard truncation when a single word exceeds
// the limit.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultMaxChunkSize is the chunk size limit applied when the caller does
// not configure one.
const DefaultMaxChunkSize = 4000

// Joining separators. Sentence terminators are discarded during splitting,
// so accumulated sentences are rejoined with a plain period.
const (
	sentenceSeparator = ". "
	wordSeparator     = " "
)

var sentenceTerminatorPattern = regexp.MustCompile(`[.!?]+`)

// Split divides text into an ordered sequence of non-empty chunks, each at
// most maxChunkSize characters. Text at or under the limit is returned
// unchanged as a single chunk. If splitting yields nothing usable, the
// original text is returned as a single chunk rather than an empty sequence.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	if len(text) <= maxChunkSize {
		return []string{text}
	}

	var (
		chunks  []string
		current string
	)

	for _, sentence := range splitSentences(text) {
		if len(current)+len(sentence)+len(sentenceSeparator) > maxChunkSize {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				current = ""
			}

			if len(sentence) > maxChunkSize {
				chunks, current = packWords(sentence, maxChunkSize, chunks)

				continue
			}

			current = sentence

			continue
		}

		if current == "" {
			current = sentence
		} else {
			current += sentenceSeparator + sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	if len(chunks) == 0 {
		return []string{text}
	}

	return chunks
}

// splitSentences cuts text on runs of sentence terminators, trimming
// whitespace and dropping empty fragments.
func splitSentences(text string) []string {
	fragments := sentenceTerminatorPattern.Split(text, -1)

	sentences := make([]string, 0, len(fragments))

	for _, fragment := range fragments {
		trimmed := strings.TrimSpace(fragment)
		if trimmed == "" {
			continue
		}

		sentences = append(sentences, trimmed)
	}

	return sentences
}

// packWords greedily packs the words of an oversized sentence into chunks
// under the limit. The trailing partial chunk is returned as the new
// accumulator so following sentences can still join it.
func packWords(sentence string, maxChunkSize int, chunks []string) ([]string, string) {
	var wordChunk string

	for _, word := range strings.Fields(sentence) {
		for len(word) > maxChunkSize {
			if wordChunk != "" {
				chunks = append(chunks, wordChunk)
				wordChunk = ""
			}

			chunks = append(chunks, word[:maxChunkSize])
			word = word[maxChunkSize:]
		}

		if word == "" {
			continue
		}

		if len(wordChunk)+len(word)+len(wordSeparator) > maxChunkSize {
			if wordChunk != "" {
				chunks = append(chunks, wordChunk)
				wordChunk = ""
			}
		}

		if wordChunk == "" {
			wordChunk = word
		} else {
			wordChunk += wordSeparator + word
		}
	}

	return chunks, wordChunk
}
