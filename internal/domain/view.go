package domain

import "strings"

// View is a top-level screen of the assistant.
type View string

const (
	ViewOnboarding   View = "ONBOARDING"
	ViewSearch       View = "SEARCH"
	ViewPastor       View = "PASTOR"
	ViewPrayer       View = "PRAYER"
	ViewQuiz         View = "QUIZ"
	ViewSettings     View = "SETTINGS"
	ViewSubscription View = "SUBSCRIPTION"
)

var fragmentViews = map[string]View{
	"search": ViewSearch,
	"pastor": ViewPastor,
	"prayer": ViewPrayer,
	"quiz":   ViewQuiz,
}

// ParseView resolves a deep-link fragment such as "#quiz" to a view.
// Unknown fragments leave def unchanged.
func ParseView(fragment string, def View) View {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
	if v, ok := fragmentViews[f]; ok {
		return v
	}
	return def
}
