package service

import (
	"fmt"
	"regexp"
	"strconv"
)

// ParseError indicates the model output lacked a usable score. It recurs
// deterministically on retry, so workers treat it as terminal.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("score parse failed: %s", e.Reason)
}

// scorePattern matches the achieved/possible fraction the prompt instructs the
// model to emit.
var scorePattern = regexp.MustCompile(`<SCORE>(\d+\.\d+|\d+)/(\d+\.\d+|\d+)</SCORE>`)

// ParseScore extracts the achieved score from raw model output. The possible
// value echoed by the model is informational only; maxScore from the grading
// request is the authoritative bound. A missing pattern or an achieved score
// outside [0, maxScore] is a *ParseError.
func ParseScore(raw string, maxScore float64) (float64, error) {
	match := scorePattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, &ParseError{Reason: "no score pattern in model output"}
	}

	achieved, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, &ParseError{Reason: fmt.Sprintf("unreadable score %q", match[1])}
	}

	if achieved < 0 || achieved > maxScore {
		return 0, &ParseError{Reason: fmt.Sprintf("score %.2f outside [0, %.2f]", achieved, maxScore)}
	}

	return achieved, nil
}
