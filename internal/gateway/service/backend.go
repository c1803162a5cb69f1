package service

import (
	"context"
	"strings"
	"unicode"
)

// textTransformBackend is the demo business computation: it title-cases
// the input deterministically so tests can assert exact output. Real
// deployments register their own Backend per apiID.
type textTransformBackend struct{}

func (textTransformBackend) Invoke(_ context.Context, input string) (string, error) {
	var b strings.Builder
	b.Grow(len(input))
	newWord := true
	for _, r := range input {
		if unicode.IsSpace(r) {
			newWord = true
			b.WriteRune(r)
			continue
		}
		if newWord {
			b.WriteRune(unicode.ToUpper(r))
			newWord = false
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String(), nil
}
