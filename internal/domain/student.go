package domain

type Student struct {
	ID       string
	SchoolID string

	Matricule string
	LastName  string
	FirstName string

	Active bool
}
