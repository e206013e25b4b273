package screen

import (
	"strings"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
)

// Keyword vocabularies for the coarse element classifier. This is a
// heuristic, not a learned model; a smarter classifier can replace it without
// changing the Analyzer contract.
var (
	buttonWords = map[string]struct{}{
		"ok": {}, "cancel": {}, "submit": {}, "login": {}, "log": {},
		"sign": {}, "save": {}, "open": {}, "close": {}, "next": {},
		"back": {}, "continue": {}, "done": {}, "apply": {}, "yes": {},
		"no": {}, "send": {}, "search": {}, "download": {}, "install": {},
		"play": {}, "pause": {}, "start": {}, "stop": {}, "accept": {},
	}
	inputWords = map[string]struct{}{
		"email": {}, "password": {}, "username": {}, "name": {},
		"search...": {}, "address": {}, "phone": {}, "message": {},
		"type": {}, "enter": {}, "field": {}, "subject": {},
	}
)

// Classify tags each fragment as button, input or plain text by keyword
// membership. Input fragments are returned with their original order intact.
func Classify(fragments []schemas.TextFragment) []schemas.TextFragment {
	out := make([]schemas.TextFragment, len(fragments))
	for i, f := range fragments {
		f.Kind = classifyText(f.Text)
		out[i] = f
	}
	return out
}

func classifyText(text string) schemas.FragmentKind {
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?")
		if _, ok := buttonWords[word]; ok {
			return schemas.FragmentButton
		}
		if _, ok := inputWords[word]; ok {
			return schemas.FragmentInput
		}
	}
	return schemas.FragmentPlain
}
