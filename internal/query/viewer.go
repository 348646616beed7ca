package query

// Viewer is the identity a read query is evaluated for. The zero value is
// the guest sentinel: relational booleans are projected as literal false
// and the viewer id is never bound into the query.
type Viewer struct {
	userID string
}

func NewViewer(userID string) Viewer {
	return Viewer{userID: userID}
}

func Guest() Viewer {
	return Viewer{}
}

func (v Viewer) IsGuest() bool {
	return v.userID == ""
}

func (v Viewer) UserID() string {
	return v.userID
}
