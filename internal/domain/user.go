package domain

import "strings"

// User is a read-only snapshot of an employee from the directory service.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	GradeID      int64  `json:"gradeId"`
	DepartmentID int64  `json:"departmentId"`
	StatusID     int64  `json:"statusId"`
}

// DisplayName prefers the directory full name and falls back to first + last.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
