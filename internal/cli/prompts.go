package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/i18n"
)

// formPrompter asks through terminal forms.
type formPrompter struct{}

func (formPrompter) Preferences(p domain.UserPreferences) (domain.UserPreferences, error) {
	cat := i18n.Options()

	faith := make([]huh.Option[domain.FaithStatus], 0, len(cat.FaithOptions))
	for _, f := range cat.FaithOptions {
		faith = append(faith, huh.NewOption(f.Label, f.Value))
	}
	versions := make([]huh.Option[string], 0, len(cat.BibleVersions))
	for _, v := range cat.BibleVersions {
		versions = append(versions, huh.NewOption(v.Name, v.Code))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("What should we call you?").
				Placeholder("optional").
				Value(&p.Name),
			huh.NewSelect[domain.FaithStatus]().
				Title("Where are you in your faith journey?").
				Options(faith...).
				Value(&p.FaithStatus),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Denomination").
				Options(huh.NewOptions(cat.Denominations...)...).
				Value(&p.Denomination),
			huh.NewSelect[string]().
				Title("Bible version").
				Options(versions...).
				Value(&p.BibleVersion),
			huh.NewSelect[string]().
				Title("Language").
				Options(huh.NewOptions(cat.Languages...)...).
				Value(&p.Language),
		),
	)
	if err := form.Run(); err != nil {
		return p, err
	}
	return p, nil
}

func (formPrompter) QuizOption(q domain.QuizQuestion, index, total int) (int, error) {
	opts := make([]huh.Option[int], 0, len(q.Options))
	for i, o := range q.Options {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%c) %s", 'A'+i, o), i))
	}
	var choice int
	err := huh.NewSelect[int]().
		Title(fmt.Sprintf("Question %d of %d", index+1, total)).
		Description(q.Question).
		Options(opts...).
		Value(&choice).
		Run()
	return choice, err
}

func (formPrompter) Secret(title string) (string, error) {
	var v string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&v).
		Run()
	return v, err
}
