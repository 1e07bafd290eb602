package gifting

import "time"

// RSVP side categories as the save-a-seat form submits them.
const (
	SideBride = "bride"
	SideGroom = "groom"
	SideBoth  = "both"
)

// Guest is a save-a-seat submission. Extra is the number of additional
// guests, carried as a string on the wire.
type Guest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Representing string `json:"representing"`
	Extra        string `json:"extra"`
}

// GuestConfirmation is the server's answer to a saved seat; the invitation
// code unlocks the guest's access card.
type GuestConfirmation struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	InvitationCode string `json:"invitationCode"`
}

// GuestRecord is a stored guest looked up by invitation code.
type GuestRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Representing   string    `json:"representing"`
	InvitationCode string    `json:"invitationCode"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AccessCard is a rendered invitation card image.
type AccessCard struct {
	Filename string
	Image    []byte
}
