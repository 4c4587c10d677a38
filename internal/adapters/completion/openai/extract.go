package openai

import (
	"fmt"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/tidwall/gjson"
)

const NoContentPlaceholder = domain.NoContentPlaceholder

// Content entry kinds that carry answer text in the output-items envelope.
var textualKinds = map[string]struct{}{
	"output_text": {},
	"text":        {},
	"message":     {},
}

type shapeMatcher struct {
	name  string
	match func(doc gjson.Result) (string, bool)
}

// Tried in order; the first match wins.
var shapeMatchers = []shapeMatcher{
	{name: "output_typed_text", match: matchOutputTypedText},
	{name: "output_first_text", match: matchOutputFirstText},
	{name: "chat_choice", match: matchChatChoice},
}

// ExtractText pulls the answer out of a completion response body. The only
// error is a body that is not JSON at all.
func ExtractText(body []byte) (string, error) {
	text, _, err := extract(body)
	return text, err
}

func extract(body []byte) (text string, shape string, err error) {
	if !gjson.ValidBytes(body) {
		return "", "", fmt.Errorf("%w: body is not valid JSON", domain.ErrMalformedResponse)
	}

	doc := gjson.ParseBytes(body)
	for _, matcher := range shapeMatchers {
		if text, ok := matcher.match(doc); ok {
			return text, matcher.name, nil
		}
	}

	return NoContentPlaceholder, "", nil
}

func firstOutputContent(doc gjson.Result) (gjson.Result, bool) {
	output := doc.Get("output")
	if !output.IsArray() {
		return gjson.Result{}, false
	}
	content := output.Get("0.content")
	if !content.IsArray() {
		return gjson.Result{}, false
	}

	return content, true
}

// Only the first entry with a textual kind is considered, even when its text
// is empty.
func matchOutputTypedText(doc gjson.Result) (string, bool) {
	content, ok := firstOutputContent(doc)
	if !ok {
		return "", false
	}

	for _, entry := range content.Array() {
		if _, textual := textualKinds[entry.Get("type").String()]; !textual {
			continue
		}
		return nonEmptyString(entry.Get("text"))
	}

	return "", false
}

func matchOutputFirstText(doc gjson.Result) (string, bool) {
	content, ok := firstOutputContent(doc)
	if !ok {
		return "", false
	}

	return nonEmptyString(content.Get("0.text"))
}

func matchChatChoice(doc gjson.Result) (string, bool) {
	return nonEmptyString(doc.Get("choices.0.message.content"))
}

func nonEmptyString(value gjson.Result) (string, bool) {
	if value.Type != gjson.String || value.Str == "" {
		return "", false
	}

	return value.Str, true
}
