package entity

// ExternalIdentity is the profile a third-party identity provider vouches
// for after its token has been verified.
type ExternalIdentity struct {
	Subject       string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool
	AvatarURL     string
}
