package errcode

// Values carried in the "error" field of failed responses.
const (
	Validation   = "validation"
	NotFound     = "not_found"
	Conflict     = "conflict"
	Unauthorized = "unauthorized"
	Forbidden    = "forbidden"
	TooMany      = "too_many_requests"
	Internal     = "internal"
)
