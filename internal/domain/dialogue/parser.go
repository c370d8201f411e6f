package dialogue

import "strings"

type tokenKind int

const (
	tokText tokenKind = iota
	tokSystem
	tokUser
	tokAssistant
	tokEnd
	tokEndOfText
)

type token struct {
	kind tokenKind
	text string
}

var markers = []struct {
	literal string
	kind    tokenKind
}{
	{SystemMarker, tokSystem},
	{UserMarker, tokUser},
	{AssistantMarker, tokAssistant},
	{EndMarker, tokEnd},
	{EndOfText, tokEndOfText},
}

// tokenize splits s into marker tokens and the text between them.
func tokenize(s string) []token {
	var toks []token
	start := 0
	for i := 0; i < len(s); {
		if !strings.HasPrefix(s[i:], "<|") {
			i++
			continue
		}
		matched := false
		for _, m := range markers {
			if strings.HasPrefix(s[i:], m.literal) {
				if i > start {
					toks = append(toks, token{kind: tokText, text: s[start:i]})
				}
				toks = append(toks, token{kind: m.kind, text: m.literal})
				i += len(m.literal)
				start = i
				matched = true
				break
			}
		}
		if !matched {
			i += 2
		}
	}
	if start < len(s) {
		toks = append(toks, token{kind: tokText, text: s[start:]})
	}
	return toks
}

type parseState int

const (
	seekAssistant parseState = iota
	inAssistant
	done
)

// ExtractReply returns the first assistant segment of generated text with
// terminators stripped and whitespace trimmed. The segment runs until the
// next role marker or the end of the text. When the text has no assistant
// marker at all, the trimmed raw text is returned.
func ExtractReply(generated string) string {
	var sb strings.Builder
	state := seekAssistant
	found := false

	for _, t := range tokenize(generated) {
		switch state {
		case seekAssistant:
			if t.kind == tokAssistant {
				state = inAssistant
				found = true
			}
		case inAssistant:
			switch t.kind {
			case tokText:
				sb.WriteString(t.text)
			case tokEnd, tokEndOfText:
			default:
				state = done
			}
		}
		if state == done {
			break
		}
	}

	if !found {
		return strings.TrimSpace(generated)
	}
	return strings.TrimSpace(sb.String())
}
