package model

type Member struct {
	ID            int64
	Nickname      string
	WalletAddress *string
}

// Principal is the authenticated caller of a request.
type Principal struct {
	MemberID int64
	Nickname string
}
