// Package cli implements the bibleai terminal commands on top of the same
// assistant the HTTP server uses. Commands run against a local SQLite file
// and a per-install session id.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tbourn/bibleai/internal/app"
	"github.com/tbourn/bibleai/internal/config"
	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/keys"
)

// Context is passed to every command's Run method.
type Context struct {
	Config  config.Config
	Version string
	Out     io.Writer
	// Session overrides the stored local session id.
	Session string

	// Open builds the App. Nil uses app.New with the keyring fallback for
	// the API key.
	Open func(ctx context.Context, cfg config.Config) (*app.App, error)
	// Prompter asks the user for input. Nil uses interactive forms.
	Prompter Prompter
}

// Prompter collects interactive input.
type Prompter interface {
	Preferences(current domain.UserPreferences) (domain.UserPreferences, error)
	QuizOption(q domain.QuizQuestion, index, total int) (int, error)
	Secret(title string) (string, error)
}

func (c *Context) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

func (c *Context) prompter() Prompter {
	if c.Prompter != nil {
		return c.Prompter
	}
	return formPrompter{}
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

// signalContext is cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *Context) open(ctx context.Context) (*app.App, error) {
	if c.Open != nil {
		return c.Open(ctx, c.Config)
	}
	return app.New(ctx, c.Config, app.Options{Version: c.Version, APIKey: keys.Resolve(c.Config.Gemini.APIKey)})
}

// withApp opens the App, resolves the session and runs fn under a context
// cancelled by SIGINT or SIGTERM.
func (c *Context) withApp(fn func(ctx context.Context, a *app.App, session string) error) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	session := c.Session
	if session == "" {
		if session, err = a.LocalSession(ctx); err != nil {
			return fmt.Errorf("local session: %w", err)
		}
	}
	return fn(ctx, a, session)
}
