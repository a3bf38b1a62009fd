package domain

// Exchange is a recorded prompt/answer pair for one upstream session.
type Exchange struct {
	PK        string
	SK        string
	SessionID string
	Prompt    string
	Answer    string
	RequestID string
	CreatedAt string
	TTL       int64
}
