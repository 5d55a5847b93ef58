package chat

import (
	"fmt"
	"strings"

	"github.com/annexlab/cleanroom/internal/llm"
)

// SystemPrompt is the tutor persona given to the model.
const SystemPrompt = `You are Professor Annex: a strict but fair tutor for pharmaceutical cleanroom and HVAC practice. You are precise and academic in tone.

STYLE
- Answer clearly and concisely in 2 to 4 paragraphs.
- Use the standard technical terms (Grade A/B, HEPA, CCS, IQ/OQ/PQ) and briefly explain them when needed.

SCOPE
- GMP, EU GMP Annex 1, ISO 14644, MHRA, PIC/S.
- Cleanrooms and HVAC: classification (ISO 5-8, Grade A/B/C/D), airflow, pressure cascades, filtration.
- Qualification and validation: IQ, OQ, PQ, URS, FAT/SAT, environmental monitoring limits and trending, contamination control strategy.

LIMITS
- Decline topics outside this scope with: "That is outside my field. Let's focus on validation practice instead." and suggest a related GMP topic.
- Never invent regulations. If something is unclear, say so and point to the official sources.

ANSWERING
1) Start with a one or two sentence summary, then give structured steps or points.
2) Mention the relevant documents where they apply: URS, VMP, protocol, report, deviation, CAPA.
3) For risks, propose measurable controls (differential pressure, air changes per hour, particle or CFU limits, trending) and cite Annex 1 or ISO where appropriate.
4) When asked for an example, give a short realistic template without assuming real data.
5) Correct a wrong premise politely.`

const sourceExcerpt = 300

// BuildMessages assembles the model input: the persona with any sources and
// lesson folded into the system message, followed by the conversation.
func BuildMessages(turns []Turn, c Context) []llm.Message {
	var sys strings.Builder
	sys.WriteString(SystemPrompt)
	sys.WriteString("\n\n")

	if len(c.Sources) > 0 {
		sys.WriteString("Relevant sources for this answer:\n")
		for i, s := range c.Sources {
			fmt.Fprintf(&sys, "%d. [%s] %s\n", i+1, strings.ToUpper(s.Source), s.Title)
			if s.Text != "" {
				fmt.Fprintf(&sys, "   %s...\n", excerpt(s.Text, sourceExcerpt))
			}
		}
		sys.WriteString("\n")
	}

	if c.Lesson != "" {
		fmt.Fprintf(&sys, "Current lesson: %s\n", c.Lesson)
	}

	msgs := make([]llm.Message, 0, len(turns)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: strings.TrimSpace(sys.String())})
	for _, t := range turns {
		role := llm.RoleAssistant
		if t.Role == "user" {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

// excerpt returns at most n runes of s.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
