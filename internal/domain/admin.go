package domain

// Admin is the tenant identity resolved by the transport layer.
type Admin struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Actor is an admin acting through a request, with the request origin for audit entries.
type Actor struct {
	Admin
	IPAddress string
	UserAgent string
}
