package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AbilityKey is the case-folded identity of an ability name.
func AbilityKey(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// AbilityDisplayName title-cases an ability name for the player.
func AbilityDisplayName(name string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(name), " "))
}
