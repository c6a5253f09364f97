package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mocked for unit testing.
var (
	Stdout io.Writer = os.Stdout
	Stdin  io.Reader = os.Stdin
)

// Prompt asks the user to pick one of `options`, or to enter a value
// manually if `allowManual` is set. The first option is recommended, and is
// chosen if the user just hits enter.
func Prompt(helpString, prompt string, options []string, allowManual bool) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(Stdout)

	if allowManual {
		options = append(append([]string{}, options...), "(Enter manually)")
	}

	fmt.Fprintln(Stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(Stdin)

	if nOptions := len(options); nOptions > 1 || !allowManual {
		fmt.Fprintln(Stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(Stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(Stdout)

		for {
			fmt.Fprintf(Stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if allowManual && choice == nOptions {
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(Stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
