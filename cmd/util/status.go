package util

import (
	"fmt"
	"os"

	"github.com/buger/goterm"
	"golang.org/x/crypto/ssh/terminal"
)

// IsInteractive returns whether stdin is a terminal that the user can answer
// prompts from.
var IsInteractive = func() bool {
	return terminal.IsTerminal(int(os.Stdin.Fd()))
}

// ComparisonSummary describes the result of a diff, colored by whether the
// target is missing anything.
func ComparisonSummary(missing int, comparisonPath string) string {
	if missing == 0 {
		return goterm.Color("The target has every master file.", goterm.GREEN) +
			fmt.Sprintf(" Wrote an empty comparison to %s", comparisonPath)
	}

	noun := "files are"
	if missing == 1 {
		noun = "file is"
	}
	return goterm.Color(fmt.Sprintf("%d master %s missing from the target.", missing, noun),
		goterm.YELLOW) + fmt.Sprintf(" Differences are saved in %s", comparisonPath)
}
