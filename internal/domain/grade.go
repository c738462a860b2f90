package domain

import "strings"

// Grade is a seniority level. IsManagerGrade is resolved once when the
// directory data is loaded and is not part of the upstream payload.
type Grade struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	IsManagerGrade bool   `json:"isManagerGrade"`
}

// ResolveManagerGrade reports whether a grade name denotes a manager.
func ResolveManagerGrade(name string) bool {
	return strings.Contains(strings.ToLower(name), "manager")
}
