package model

import "time"

// Comment is the cleaned message body posted to a task.
type Comment struct {
	Text string `json:"text" yaml:"text"`
}

// PromoCode is a letters-then-digits token such as "Burlesque123".
type PromoCode struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Suffix string `json:"suffix" yaml:"suffix"`
	Raw    string `json:"raw" yaml:"raw"`
}

func (p PromoCode) String() string {
	return p.Raw
}

// Intake is the result of normalizing one inbound message.
type Intake struct {
	MessageID  string     `json:"message_id,omitempty" yaml:"message_id,omitempty"`
	Sender     string     `json:"sender" yaml:"sender"`
	Subject    string     `json:"subject" yaml:"subject"`
	Comment    Comment    `json:"comment" yaml:"comment"`
	PromoCode  *PromoCode `json:"promo_code,omitempty" yaml:"promo_code,omitempty"`
	Recipients []string   `json:"recipients" yaml:"recipients"`
}

// Intake statuses recorded for each processed message.
const (
	IntakeRedeemed  = "redeemed"
	IntakeNoCode    = "no_code"
	IntakeUnmatched = "unmatched"
	IntakeFailed    = "failed"
)

// FinalStatus reports whether a message recorded with status needs no further
// processing. Failed messages are retried.
func FinalStatus(status string) bool {
	return status != "" && status != IntakeFailed
}

// IntakeRecord is the persisted outcome of processing one message.
type IntakeRecord struct {
	ID         string    `db:"id" json:"id"`
	MessageID  string    `db:"message_id" json:"message_id"`
	Sender     string    `db:"sender" json:"sender"`
	Subject    string    `db:"subject" json:"subject"`
	PromoCode  string    `db:"promo_code" json:"promo_code"`
	Recipients string    `db:"recipients" json:"recipients"`
	Comment    string    `db:"comment" json:"comment"`
	Status     string    `db:"status" json:"status"`
	Error      string    `db:"error" json:"error,omitempty"`
	TaskID     int64     `db:"task_id" json:"task_id,omitempty"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`

	// Fingerprint identifies the message across mailbox scans: the
	// Message-ID when present, otherwise a digest of the raw bytes.
	Fingerprint string `db:"fingerprint" json:"-"`
}

// Promo is a promo code issued to a show member.
type Promo struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	ProjectID int64     `db:"project_id" json:"project_id"`
	MemberID  int64     `db:"member_id" json:"member_id"`
	TaskID    int64     `db:"task_id" json:"task_id"`
	CommentID int64     `db:"comment_id" json:"comment_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PendingToken is an OAuth request token waiting for the user to come back
// from the authorize page.
type PendingToken struct {
	Token     string    `db:"token"`
	Secret    string    `db:"secret"`
	CreatedAt time.Time `db:"created_at"`
}
