package domain

type School struct {
	ID   string
	Name string

	Address *string
	City    *string
	Phone   *string
	Email   *string
}
