// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompt used before installing packages.
//
// USABILITY: TTY detection for proper terminal handling
//
// The flow is the same for every caller:
//  1. --yes proceeds without prompting
//  2. JSON mode never prompts
//  3. A non-terminal stdin never prompts
//  4. Otherwise ask and wait for y/N

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// confirmPrompt asks question on the terminal with line editing.
// Ctrl+C and Ctrl+D count as "no".
func confirmPrompt(question string) (bool, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt(question + " [y/N]: ")
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return parseYes(input), nil
}

// parseYes reports whether input is an affirmative answer.
func parseYes(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// ConfirmationOptions describes how a command was invoked.
type ConfirmationOptions struct {
	// Yes is set by --yes / -y.
	Yes bool
	// JSONMode is set by --json.
	JSONMode bool
}

// RequireConfirmation asks the user to approve action through ask.
// A nil ask (no terminal) proceeds.
func RequireConfirmation(action string, opts ConfirmationOptions, ask func(string) (bool, error)) (bool, error) {
	if opts.Yes || opts.JSONMode || ask == nil {
		return true, nil
	}
	return ask(fmt.Sprintf("Proceed to %s?", action))
}
