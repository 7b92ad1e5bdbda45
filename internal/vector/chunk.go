package vector

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text into overlapping chunks of at most size bytes,
// preferring to end a chunk on a sentence terminator within its last 100 bytes
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			searchStart := end - 100
			if searchStart < start {
				searchStart = start
			}
			for i := end; i > searchStart; i-- {
				if strings.IndexByte(".!?", text[i]) >= 0 {
					end = i + 1
					break
				}
			}
		}

		for end < len(text) && end > start+1 && !utf8.RuneStart(text[end]) {
			end--
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return chunks
}
