package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/bibleai/internal/app"
	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/keys"
	"github.com/tbourn/bibleai/internal/quiz"
	"github.com/tbourn/bibleai/internal/services"
)

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Port string `help:"Listen port; overrides PORT."`
}

func (s *ServeCmd) Run(c *Context) error {
	if s.Port != "" {
		c.Config.Port = s.Port
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return app.Serve(ctx, a.Server())
}

// OnboardCmd collects preferences. Flags prefill the form; --yes skips it.
type OnboardCmd struct {
	Name         string `help:"Display name."`
	Faith        string `help:"Believer, Seeker, Skeptic/Curious or Church Leader/Pastor."`
	Denomination string `help:"Denomination."`
	Version      string `help:"Bible version code, e.g. NIV."`
	Language     string `help:"Answer language, e.g. English."`
	Yes          bool   `short:"y" help:"Save the flags without asking."`
}

func (o *OnboardCmd) Run(c *Context) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		p, err := a.Assistant.GetPreferences(ctx, session)
		if err != nil {
			return err
		}
		o.apply(&p)
		if !o.Yes {
			if p, err = c.prompter().Preferences(p); err != nil {
				return err
			}
		}
		saved, err := a.Assistant.UpdatePreferences(ctx, session, p)
		if err != nil {
			return err
		}
		c.printf("Saved: %s, %s, %s, %s\n", saved.FaithStatus, saved.Denomination, saved.BibleVersion, saved.Language)
		return nil
	})
}

func (o *OnboardCmd) apply(p *domain.UserPreferences) {
	if o.Name != "" {
		p.Name = o.Name
	}
	if o.Faith != "" {
		p.FaithStatus = domain.FaithStatus(o.Faith)
	}
	if o.Denomination != "" {
		p.Denomination = o.Denomination
	}
	if o.Version != "" {
		p.BibleVersion = strings.ToUpper(o.Version)
	}
	if o.Language != "" {
		p.Language = o.Language
	}
}

// ResetCmd sends the user back through onboarding, keeping saved values.
type ResetCmd struct{}

func (ResetCmd) Run(c *Context) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		if _, err := a.Assistant.ResetPreferences(ctx, session); err != nil {
			return err
		}
		c.printf("Preferences reset. Run `bibleai onboard` to continue.\n")
		return nil
	})
}

// SearchCmd looks up scriptures on a topic.
type SearchCmd struct {
	Query []string `arg:"" help:"Topic or question."`
}

func (s *SearchCmd) Run(c *Context) error { return c.turn(domain.SurfaceSearch, s.Query) }

// AskCmd asks the pastor persona a question.
type AskCmd struct {
	Question []string `arg:"" help:"Your question."`
}

func (s *AskCmd) Run(c *Context) error { return c.turn(domain.SurfacePastor, s.Question) }

// PrayCmd generates a prayer.
type PrayCmd struct {
	Topic []string `arg:"" help:"What to pray for."`
}

func (s *PrayCmd) Run(c *Context) error { return c.turn(domain.SurfacePrayer, s.Topic) }

func (c *Context) turn(surface domain.Surface, words []string) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		res, err := a.Assistant.Send(ctx, session, surface, strings.Join(words, " "))
		if errors.Is(err, services.ErrNotOnboarded) {
			return fmt.Errorf("%w: run `bibleai onboard` first", err)
		}
		if err != nil {
			return err
		}
		c.printReply(res)
		return nil
	})
}

func (c *Context) printReply(res services.SendResult) {
	c.printf("%s\n", res.Reply.Text)
	if len(res.Reply.References) > 0 {
		c.printf("\n")
		for _, r := range res.Reply.References {
			c.printf("  %s  %s\n", r.Ref, r.Text)
		}
	}
	if len(res.Reply.FollowUps) > 0 {
		c.printf("\nYou could also ask:\n")
		for _, f := range res.Reply.FollowUps {
			c.printf("  - %s\n", f)
		}
	}
	if !res.RateLimited {
		c.printf("\n(%d requests left today)\n", res.Remaining)
	}
}

// QuizCmd plays today's quiz.
type QuizCmd struct{}

func (QuizCmd) Run(c *Context) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		snap, err := a.Assistant.StartQuiz(ctx, session)
		switch {
		case errors.Is(err, quiz.ErrTerminal) && snap.State == quiz.StateAlreadyPlayed:
			c.printf("You already played today's quiz. Score: %d\nCome back tomorrow!\n", snap.Score)
			return nil
		case err != nil:
			return err
		}

		p := c.prompter()
		for snap.State == quiz.StatePlaying && snap.Current != nil {
			q := *snap.Current
			choice, err := p.QuizOption(q, snap.Index, snap.Total)
			if err != nil {
				return err
			}
			if snap, err = a.Assistant.SelectQuizOption(ctx, session, choice); err != nil {
				return err
			}
			if choice == q.CorrectIndex {
				c.printf("Correct! ")
			} else {
				c.printf("Not quite: %s. ", q.Options[q.CorrectIndex])
			}
			c.printf("%s (%s)\n\n", q.Explanation, q.Reference)
			if snap, err = a.Assistant.NextQuizQuestion(ctx, session); err != nil {
				return err
			}
		}
		c.printf("Score: %d / %d\n", snap.Score, snap.Total)
		return nil
	})
}

// ChapterCmd streams a full chapter.
type ChapterCmd struct {
	Chapter []string `arg:"" help:"Chapter reference, e.g. John 3."`
}

func (ch *ChapterCmd) Run(c *Context) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		printed := 0
		text, err := a.Assistant.ReadChapter(ctx, session, strings.Join(ch.Chapter, " "), func(full string) {
			c.printf("%s", full[printed:])
			printed = len(full)
		})
		if err != nil {
			if text == "" {
				return err
			}
			c.printf("\n%s\n", text)
			return err
		}
		c.printf("\n")
		return nil
	})
}

// UsageCmd shows today's remaining requests.
type UsageCmd struct{}

func (UsageCmd) Run(c *Context) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		u, err := a.Assistant.Usage(ctx, session)
		if err != nil {
			return err
		}
		c.printf("%s: %d of %d requests left\n", u.Date, u.Remaining, u.Limit)
		return nil
	})
}

// VerseCmd prints the verse of the day.
type VerseCmd struct{}

func (VerseCmd) Run(c *Context) error {
	return c.withApp(func(ctx context.Context, a *app.App, session string) error {
		v, err := a.Assistant.VerseOfTheDay(ctx, session)
		if err != nil {
			return err
		}
		c.printf("%s\n  %s\n", v.Text, v.Ref)
		return nil
	})
}

// KeySetCmd stores the Gemini API key in the OS keyring.
type KeySetCmd struct {
	Key string `arg:"" optional:"" help:"API key; prompted when omitted."`
}

func (k *KeySetCmd) Run(c *Context) error {
	key := k.Key
	if key == "" {
		var err error
		if key, err = c.prompter().Secret("Gemini API key"); err != nil {
			return err
		}
	}
	if err := keys.Set(key); err != nil {
		return err
	}
	c.printf("API key saved to the OS keyring.\n")
	return nil
}

// KeyDeleteCmd removes the stored key.
type KeyDeleteCmd struct{}

func (KeyDeleteCmd) Run(c *Context) error {
	if err := keys.Delete(); err != nil {
		return err
	}
	c.printf("API key removed.\n")
	return nil
}
