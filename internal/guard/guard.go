// Package guard holds the ownership policy. Authorization in this system
// is a single question: is the caller the entity's owner? Keeping the
// predicate pure keeps it testable away from HTTP and the store.
package guard

// Owns reports whether caller may mutate an entity owned by owner.
// A guest caller (empty id) never owns anything.
func Owns(caller, owner string) bool {
	return caller != "" && caller == owner
}
