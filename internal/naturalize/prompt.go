package naturalize

import (
	"fmt"
	"regexp"
	"strings"
)

// systemPrompt is the fixed instruction block sent with every batch. The
// response contract is loose free text; ParseNaturalNames tolerates whatever
// shape comes back.
const systemPrompt = `You shorten raw business names into the short conversational form a person would say out loud.

Rules:
- Remove legal suffixes (LLC, Inc., Corp., Ltd., Co., LLP, PLLC and similar).
- Remove generic business-type suffixes (Store, Shop, Services, Company, Group and similar) when the name stays unambiguous without them.
- Strip stray formatting characters such as quotes, asterisks, and trailing punctuation.
- Prefer the shortest form that is still unambiguous.
- Never translate, never add words, never explain.

Reply with exactly one name per line, numbered to match the input list, and nothing else.`

// BuildUserMessage renders a batch of names as a numbered list.
func BuildUserMessage(names []string) string {
	var sb strings.Builder
	sb.WriteString("Shorten the following business names:\n\n")
	for i, name := range names {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, name)
	}
	return sb.String()
}

// ordinalRe matches a leading ordinal marker like "3.", "12)", or "7 -".
var ordinalRe = regexp.MustCompile(`^\s*\d+\s*[.)\-:]?\s*`)

// ParseNaturalNames extracts one natural name per input name from a free-text
// response. The output always has the same length and order as the input:
// blank lines are skipped, missing tail entries fall back to the original
// name, and extra lines beyond the input length are ignored.
func ParseNaturalNames(text string, input []string) []string {
	out := make([]string, len(input))
	copy(out, input)

	i := 0
	for _, line := range strings.Split(text, "\n") {
		if i >= len(input) {
			break
		}
		line = strings.TrimSpace(ordinalRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out[i] = line
		i++
	}

	return out
}
