package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrUnsupportedType is returned for document formats that are not parsed here (PDF, DOCX, ...)
var ErrUnsupportedType = errors.New("unsupported document type")

// TextExtractor turns uploaded documents into plain text
type TextExtractor struct{}

// NewTextExtractor creates a new text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// ExtractText returns the plain text of data; an empty mimeType is sniffed
func (x *TextExtractor) ExtractText(data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("parse mime type %q: %w", mimeType, err)
	}

	switch mediaType {
	case "text/plain", "text/markdown", "text/x-markdown", "text/csv":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedType, mediaType)
		}
		return normalizeText(string(data)), nil
	case "text/html", "application/xhtml+xml":
		doc, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		return normalizeText(extractVisibleText(doc)), nil
	case "application/json":
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return "", fmt.Errorf("parse json: %w", err)
		}
		var parts []string
		collectStrings(v, &parts)
		return normalizeText(strings.Join(parts, "\n")), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}
}

// IsAudio reports whether a MIME type should go through speech-to-text
func IsAudio(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/") || mediaType == "video/webm"
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				buf.WriteString("\n")
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// collectStrings gathers string leaves of decoded JSON in a stable order
func collectStrings(v interface{}, out *[]string) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) != "" {
			*out = append(*out, t)
		}
	case []interface{}:
		for _, item := range t {
			collectStrings(item, out)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectStrings(t[k], out)
		}
	}
}

// normalizeText collapses runs of spaces while keeping line structure
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
