package model

// TaggedAddress is a fully normalized record ready for persistence: one
// chain address plus every tag (with its resolved category) attached to it.
type TaggedAddress struct {
	Address    string
	Chain      string
	Name       string
	EntityType string
	Tags       []TagRef
}

// TagRef is one tag attached to an address, with the category it resolved to.
type TagRef struct {
	Tag      string
	Link     string
	Category string
}
