package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Cycle completed
	ExitPartial = 1 // Cycle completed with partial data and --strict was set
	ExitError   = 2 // Configuration or runtime error
)

// PartialCycleError indicates that the cycle ran to the end, but some data
// could not be fetched.
type PartialCycleError struct {
	Warnings int
}

func (e *PartialCycleError) Error() string {
	return fmt.Sprintf("cycle completed with partial data (%d warning(s))", e.Warnings)
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var partial *PartialCycleError
	if errors.As(err, &partial) {
		return ExitPartial
	}
	return ExitError
}
