package models

// User is a minimal reference row. Identity management (registration, login,
// profiles) lives outside the engine; the engine only needs user ids to exist
// so balance scopes can be validated.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Name is the display name.
	Name string

	// CreatedAt is the Unix timestamp when the row was created.
	CreatedAt int64
}

// Group is a reusable participant scope. Expenses may belong to a group;
// group balances are computed over the unsettled shares of its expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g. "Roommates").
	Name string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}
