// Package idgen generates human-facing record codes backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ProjectPrefix is prepended to every project code.
const ProjectPrefix = "PRJ-"

// Alphabet is the character set of the random part of a code.
var Alphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Length is the number of random characters after the prefix.
var Length = 8

// ProjectCode returns a new project code such as PRJ-7K2M9QXA.
func ProjectCode() (string, error) {
	return WithPrefix(ProjectPrefix)
}

func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
