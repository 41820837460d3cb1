// Package services defines the assistant's use cases: chatting on the three
// surfaces, the daily quiz, chapter reading and preference management.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/bibleai/internal/conversation"
)

var (
	// ErrEmptyPrompt is returned when the user text is blank.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when the user text exceeds the configured rune limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrNotOnboarded is returned when an operation needs completed preferences.
	ErrNotOnboarded = errors.New("onboarding not completed")

	// ErrInvalidPreferences wraps preference validation failures.
	ErrInvalidPreferences = errors.New("invalid preferences")

	// ErrInvalidSession is returned for a blank session identifier.
	ErrInvalidSession = errors.New("session id is required")

	// ErrQuizUnavailable is returned when the day's questions could not be produced.
	ErrQuizUnavailable = errors.New("quiz unavailable")

	// ErrBusy is returned while a previous request on the same surface is pending.
	ErrBusy = conversation.ErrBusy
)
