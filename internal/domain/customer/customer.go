package customer

// Customer is the stored record. ID and Rev are managed by the document
// store; Rev is an opaque compare-and-swap token and is never interpreted.
type Customer struct {
	ID        string `json:"_id,omitempty" bson:"_id,omitempty"`
	Rev       string `json:"_rev,omitempty" bson:"_rev,omitempty"`
	Username  string `json:"username" bson:"username"`
	Password  string `json:"password" bson:"password"`
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
	Email     string `json:"email" bson:"email"`
	ImageURL  string `json:"imageUrl" bson:"imageUrl"`
}

// Clone returns a shallow copy so callers can adjust ID and Rev without
// touching the original payload.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// SameContent reports whether two records carry the same user-supplied
// fields, ignoring ID and Rev.
func (c *Customer) SameContent(other *Customer) bool {
	if c == nil || other == nil {
		return c == other
	}
	a, b := *c, *other
	a.ID, a.Rev, b.ID, b.Rev = "", "", "", ""
	return a == b
}
