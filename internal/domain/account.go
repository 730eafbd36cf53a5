package domain

// Account identifies a logical custodial balance held by the ledger gateway.
// The core never mutates balances directly; every movement of funds goes
// through Balances.Transfer between two accounts.
type Account string

const (
	// VaultAccount holds all locked user principal.
	VaultAccount Account = "vault"

	// TreasuryAccount accumulates platform fees and early-withdrawal
	// penalties.
	TreasuryAccount Account = "treasury"
)

// UserAccount returns the custodial balance account for a user.
func UserAccount(user string) Account {
	return Account("user:" + user)
}

// EscrowAccount returns the escrow pool account owned 1:1 by a market. The
// pool holds every stake placed on that market until fee extraction and
// claims drain it.
func EscrowAccount(marketID string) Account {
	return Account("escrow:" + marketID)
}
