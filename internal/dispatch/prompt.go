package dispatch

import (
	"fmt"
	"strings"
)

// ReplyContext carries everything the prompt builder may use when shaping the
// system instruction for a review reply.
type ReplyContext struct {
	// BusinessProfile holds identity/voice/policy fields supplied by the
	// producer (business_name, industry, tone, response_style, ...).
	BusinessProfile map[string]any

	// CustomPrompt, when set, replaces the profile-driven instruction with
	// the caller's own reduced-context instruction.
	CustomPrompt string

	// ReviewRating is the star rating (1-5); zero means not provided.
	ReviewRating float64

	// ReviewerName is used for first-name personalization.
	ReviewerName string
}

// PromptBuilder produces the system instruction for ai_generation jobs. It is
// injected into the Dispatcher so handler logic can be tested independently
// of prompt content.
type PromptBuilder interface {
	BuildSystemPrompt(rc ReplyContext) string
}

// DefaultPromptBuilder assembles system prompts from the business profile, or
// passes through a custom prompt when one is supplied.
type DefaultPromptBuilder struct{}

func (DefaultPromptBuilder) BuildSystemPrompt(rc ReplyContext) string {
	var b strings.Builder

	if rc.CustomPrompt != "" {
		b.WriteString(strings.TrimSpace(rc.CustomPrompt))
	} else {
		b.WriteString("You write replies to customer reviews on behalf of a business.")

		if name := profileString(rc.BusinessProfile, "business_name"); name != "" {
			fmt.Fprintf(&b, " The business is called %s.", name)
		}
		if industry := profileString(rc.BusinessProfile, "industry"); industry != "" {
			fmt.Fprintf(&b, " It operates in the %s industry.", industry)
		}
		if tone := profileString(rc.BusinessProfile, "tone"); tone != "" {
			fmt.Fprintf(&b, " Write in a %s tone.", tone)
		}
		if style := profileString(rc.BusinessProfile, "response_style"); style != "" {
			fmt.Fprintf(&b, " Response style: %s.", style)
		}
		b.WriteString(" Keep the reply concise, specific to the review, and ready to post without editing.")
	}

	switch {
	case rc.ReviewRating >= 4:
		b.WriteString(" The review is positive: thank the customer warmly.")
	case rc.ReviewRating > 0 && rc.ReviewRating <= 2:
		b.WriteString(" The review is negative: acknowledge the problem, apologize sincerely, and offer a path to resolution.")
	case rc.ReviewRating == 3:
		b.WriteString(" The review is mixed: thank the customer and address their concerns directly.")
	}

	if first := firstName(rc.ReviewerName); first != "" {
		fmt.Fprintf(&b, " Address the reviewer by their first name, %s.", first)
	}

	return b.String()
}

func profileString(profile map[string]any, key string) string {
	if profile == nil {
		return ""
	}
	s, _ := profile[key].(string)
	return strings.TrimSpace(s)
}

// firstName returns the first whitespace-separated token of a full name.
func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
