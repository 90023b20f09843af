package domain

// CustomerIdentity is the identity attached to a booking submission.
type CustomerIdentity struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Profile is the stored account profile read from the identity collaborator.
type Profile struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}
