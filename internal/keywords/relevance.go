package keywords

import (
	"fmt"
	"strings"
)

// WhyItFits produces a one-sentence explanation of how an event name
// relates to the weekly theme. This is keyword containment, not
// semantic matching: false negatives are expected, and the contract is
// only "always produce a sentence".
func WhyItFits(theme, eventName string) string {
	name := strings.ToLower(eventName)

	var matched []string
	for _, term := range Extract(theme) {
		if strings.Contains(name, term) {
			matched = append(matched, term)
		}
	}

	if len(matched) > 0 {
		return fmt.Sprintf("Connects to your '%s' theme through %s", theme, strings.Join(matched, ", "))
	}
	return fmt.Sprintf("Enriches your learning about %s.", theme)
}
