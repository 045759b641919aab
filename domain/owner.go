package domain

// Owner is the identity scoping a task collection. The zero value is the
// anonymous owner, which routes all persistence to the device-local store.
type Owner struct {
	id string
}

// AuthenticatedOwner wraps a non-empty identity.
func AuthenticatedOwner(id string) Owner { return Owner{id: id} }

// AnonymousOwner is the no-identity session used before sign-in.
func AnonymousOwner() Owner { return Owner{} }

// Anonymous reports whether this session has no authenticated identity.
func (o Owner) Anonymous() bool { return o.id == "" }

// ID returns the raw identity. Empty for anonymous owners; callers that need
// a storage key should prefer Key.
func (o Owner) ID() string { return o.id }

// Key returns a non-empty string usable as a partition or map key.
func (o Owner) Key() string {
	if o.id == "" {
		return "local"
	}
	return o.id
}
