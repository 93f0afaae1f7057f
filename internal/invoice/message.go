package invoice

import (
	"time"

	"github.com/roach88/billbook/internal/record"
)

// MessageCategory separates team chat from customer correspondence.
type MessageCategory string

const (
	MessageInternal MessageCategory = "internal"
	MessageCustomer MessageCategory = "customer"
)

// Message is one internal message. An empty ReceiverID is a broadcast.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Category   MessageCategory
	Content    string
	Read       bool
	CreatedAt  time.Time
}

// MessageFromRecord reads a message in internal field names.
func MessageFromRecord(rec record.Object) Message {
	m := Message{
		ID:         rec.ID(),
		SenderID:   str(rec, "senderId"),
		ReceiverID: str(rec, "receiverId"),
		Category:   MessageCategory(str(rec, "category")),
		Content:    str(rec, "content"),
		Read:       boolean(rec, "read"),
		CreatedAt:  date(rec, "createdAt"),
	}
	if m.Category == "" {
		m.Category = MessageInternal
	}
	return m
}

// Broadcast reports whether the message goes to everyone.
func (m Message) Broadcast() bool {
	return m.ReceiverID == ""
}

// VisibleTo reports whether userID sent or can receive the message.
func (m Message) VisibleTo(userID string) bool {
	return m.Broadcast() || m.SenderID == userID || m.ReceiverID == userID
}

// Unread counts messages addressed to userID that are not read yet.
func Unread(rows []record.Object, userID string) int {
	n := 0
	for _, r := range rows {
		m := MessageFromRecord(r)
		if m.Read || m.SenderID == userID {
			continue
		}
		if m.Broadcast() || m.ReceiverID == userID {
			n++
		}
	}
	return n
}

// DailyReport is an employee's end-of-day note for one site.
type DailyReport struct {
	ID         string
	EmployeeID string
	SiteID     string
	Date       time.Time
	Content    string
}

// DailyReportFromRecord reads a daily report in internal field names.
func DailyReportFromRecord(rec record.Object) DailyReport {
	return DailyReport{
		ID:         rec.ID(),
		EmployeeID: str(rec, "employeeId"),
		SiteID:     str(rec, "siteId"),
		Date:       date(rec, "date"),
		Content:    str(rec, "content"),
	}
}
