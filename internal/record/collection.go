package record

// Collection names a synced table. The same name is used for the remote
// table, the local snapshot key and the outbox entry.
type Collection string

const (
	Profile      Collection = "profile"
	Invoices     Collection = "invoices"
	Quotes       Collection = "quotes"
	Expenses     Collection = "expenses"
	Employees    Collection = "employees"
	Messages     Collection = "messages"
	DailyReports Collection = "daily_reports"
	Templates    Collection = "templates"
)

// Collections lists every synced collection in load order.
var Collections = []Collection{
	Profile,
	Invoices,
	Quotes,
	Expenses,
	Employees,
	Messages,
	DailyReports,
	Templates,
}

// ParseCollection validates a collection name from user input.
func ParseCollection(name string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Realtime reports whether the backend pushes live changes for c.
func (c Collection) Realtime() bool {
	return c == Messages || c == DailyReports
}
