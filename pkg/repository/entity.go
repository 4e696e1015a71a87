package repository

// Entity is the minimal contract of a record stored in a collection.
// Every model in pkg/model implements it.
type Entity interface {
	// TableName returns the database table name for this entity
	TableName() string

	// GetPrimaryKeyValue returns the actual value of the primary key
	GetPrimaryKeyValue() interface{}
}
