package domain

// Created is one identifier the API handed out during a run, with the
// entity it hangs off when there is one.
type Created struct {
	Kind       string
	ID         ID
	Label      string
	ParentKind string
	ParentID   ID
}
