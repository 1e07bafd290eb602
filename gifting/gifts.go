package gifting

import "time"

type GiftType string

const (
	GiftTypeContributory GiftType = "CONTRIBUTORY"
	GiftTypeRegular      GiftType = "REGULAR"
)

// GiftItem is a single registry entry. All monetary fields are integers in
// minor currency units (kobo); Progress is a derived percentage in [0, 100].
type GiftItem struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	ImageURL     string        `json:"imageUrl"`
	Type         GiftType      `json:"type"`
	Amount       int64         `json:"amount"`
	RaisedAmount int64         `json:"raisedAmount"`
	Progress     float64       `json:"progress"`
	MinPerGuest  *int64        `json:"minPerGuest"`
	MaxPerGuest  *int64        `json:"maxPerGuest"`
	IsTaken      bool          `json:"isTaken"`
	IsCompleted  bool          `json:"isCompleted"`
	CreatedAt    time.Time     `json:"createdAt"`
	Selections   []Selection   `json:"selections"`
	Contributors []Contributor `json:"contributors"`
}

// Remaining is the capacity left before the gift hits its funding goal.
func (g GiftItem) Remaining() int64 {
	return g.Amount - g.RaisedAmount
}

// Selection is a named claimant of a REGULAR gift.
type Selection struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Representing string    `json:"representing"`
	Amount       int64     `json:"amount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Contributor is a named funder of a CONTRIBUTORY gift.
type Contributor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Representing categories offered on the contribution form.
const (
	RepresentingBride = "Bride's Family"
	RepresentingGroom = "Groom's Family"
	RepresentingBoth  = "Both"
)

// ContributeForm is the transient contribution form. Amount is what the guest
// typed, in major currency units (naira).
type ContributeForm struct {
	Name         string
	Phone        string
	Email        string
	Representing string
	Amount       int64
}

// ContributionRequest is the wire shape of a contribution creation call.
// Amount is in minor units.
type ContributionRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Representing string `json:"representing"`
	Amount       int64  `json:"amount"`
}

// Transaction is the server's answer to a contribution creation call.
type Transaction struct {
	TransactionNo string `json:"transactionNo"`
	Amount        int64  `json:"amount"`
	Gift          string `json:"gift"`
}

// ServiceError carries a message the remote gift service sent alongside an
// unsuccessful response, so callers can surface it verbatim.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
