package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/koltyakov/siren/internal/domain"
)

type alertAction int

const (
	actionNone alertAction = iota
	actionUpdate
	actionSkip
	actionLater
)

func (a alertAction) String() string {
	switch a {
	case actionUpdate:
		return "update"
	case actionSkip:
		return "skip"
	case actionLater:
		return "later"
	default:
		return "none"
	}
}

func isInteractiveInput() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func isInteractiveOutput() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 0
	}
	return w
}

// readPromptLineContext reads one line from reader, returning early with
// ctx.Err() when ctx is canceled. The pending read is left to finish in the
// background.
func readPromptLineContext(ctx context.Context, reader *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && (!errors.Is(r.err, io.EOF) || r.line == "") {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

// promptAlertAction asks which alert button to press. Soft alerts offer
// update and later, plus skip when canSkip; force alerts only update.
// Maintenance alerts and negative verdicts are informational and never
// prompt.
func promptAlertAction(ctx context.Context, reader *bufio.Reader, out io.Writer, alert domain.AlertType, canSkip bool) (alertAction, error) {
	var label string
	switch {
	case alert == domain.AlertForce:
		label = "Press Enter to open the App Store: "
	case alert == domain.AlertSoft && canSkip:
		label = "[U]pdate, [S]kip this version, [L]ater (default later): "
	case alert == domain.AlertSoft:
		label = "[U]pdate, [L]ater (default later): "
	default:
		return actionNone, nil
	}
	for {
		if _, err := fmt.Fprint(out, label); err != nil {
			return actionNone, err
		}
		line, err := readPromptLineContext(ctx, reader)
		if err != nil {
			return actionNone, err
		}
		if alert == domain.AlertForce {
			return actionUpdate, nil
		}
		if action, ok := parseAlertAction(line); ok && (action != actionSkip || canSkip) {
			return action, nil
		}
		if canSkip {
			_, _ = fmt.Fprintln(out, "Please answer u, s or l.")
		} else {
			_, _ = fmt.Fprintln(out, "Please answer u or l.")
		}
	}
}

func parseAlertAction(answer string) (alertAction, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "u", "update":
		return actionUpdate, true
	case "s", "skip":
		return actionSkip, true
	case "", "l", "later":
		return actionLater, true
	default:
		return actionNone, false
	}
}
