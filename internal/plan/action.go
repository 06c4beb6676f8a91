package plan

// Action is what the executor will do for one resource.
type Action string

const (
	NoOp    Action = "noop"
	Create  Action = "create"
	Update  Action = "update"
	Replace Action = "replace" // a force-new attribute changed: delete, then create
	Delete  Action = "delete"
)

// Symbol is the one-character prefix used in plan listings.
func (a Action) Symbol() string {
	switch a {
	case Create:
		return "+"
	case Update:
		return "~"
	case Replace:
		return "±"
	case Delete:
		return "-"
	default:
		return " "
	}
}
