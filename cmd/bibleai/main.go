// Command bibleai runs the devotional assistant: an HTTP API (serve) and a
// terminal client for onboarding, scripture search, pastoral questions,
// prayers, the daily quiz and chapter reading.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/bibleai/internal/cli"
	"github.com/tbourn/bibleai/internal/config"
	"github.com/tbourn/bibleai/internal/sysutil"
)

var version = "dev"

var CLI struct {
	Version kong.VersionFlag
	EnvFile []string `help:"Dotenv files to load before reading the environment." type:"path" default:".env"`
	Session string   `help:"Session id to use instead of the stored local one."`

	Serve   cli.ServeCmd   `cmd:"" help:"Run the HTTP API."`
	Onboard cli.OnboardCmd `cmd:"" help:"Set your preferences."`
	Reset   cli.ResetCmd   `cmd:"" help:"Return to onboarding."`
	Search  cli.SearchCmd  `cmd:"" help:"Find scriptures on a topic."`
	Ask     cli.AskCmd     `cmd:"" help:"Ask the pastor a question."`
	Pray    cli.PrayCmd    `cmd:"" help:"Generate a prayer."`
	Quiz    cli.QuizCmd    `cmd:"" help:"Play today's quiz."`
	Chapter cli.ChapterCmd `cmd:"" help:"Read a full chapter."`
	Usage   cli.UsageCmd   `cmd:"" help:"Show today's remaining requests."`
	Verse   cli.VerseCmd   `cmd:"" help:"Show the verse of the day."`
	Key     struct {
		Set    cli.KeySetCmd    `cmd:"" help:"Store the Gemini API key in the OS keyring."`
		Delete cli.KeyDeleteCmd `cmd:"" help:"Remove the stored API key."`
	} `cmd:"" help:"Manage the Gemini API key."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("bibleai"),
		kong.Description("AI devotional assistant backed by Gemini"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)

	if err := config.LoadDotEnv(CLI.EnvFile...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty)

	err = kctx.Run(&cli.Context{
		Config:  cfg,
		Version: version,
		Session: CLI.Session,
	})
	if err != nil {
		log.Debug().Err(err).Str("command", kctx.Command()).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
