package entity

// TokenClaims is the identity extracted from a verified access token.
type TokenClaims struct {
	UserId string `json:"userId"`
	Email  string `json:"email,omitempty"`
}
