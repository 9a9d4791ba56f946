package auth

// Owns reports whether the requester is the author of a resource. A false
// result is an expected outcome, not an error; callers decide whether to
// deny the request or just disable controls.
func Owns(authorID, requesterID int) bool {
	if requesterID < 1 {
		return false
	}
	return authorID == requesterID
}
