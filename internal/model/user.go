package model

// Roles carried in the access token "role" claim.
const (
	RoleParent = "PARENT"
	RoleAdmin  = "ADMIN"
)

// Child represents a child profile owned by exactly one guardian. The
// guardian id is the subject of the guardian's access token.
//
// Fields:
//
//	ID        – document identifier.
//	ParentID  – owning guardian.
//	FirstName – given name.
//	LastName  – family name.
type Child struct {
	ID        string `json:"id" bson:"_id"`
	ParentID  string `json:"parentId" bson:"parentId"`
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
}
