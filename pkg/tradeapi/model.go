package tradeapi

// Wire types of the trading service. Amounts travel as decimal strings and
// addresses as 0x-prefixed hex.

type NetworkStatusResponse struct {
	CurEpoch uint64 `json:"cur_epoch"`
}

type InfoResponse struct {
	VerifyParentAccessRuleHex string              `json:"verify_parent_access_rule_sbor_hex"`
	PerTokenSettlementFee     []SettlementFeeItem `json:"per_token_settlement_fee"`
	PerLevelAnthicFee         []AnthicLevelFee    `json:"per_level_anthic_fee"`
}

type SettlementFeeItem struct {
	Symbol                     string `json:"symbol"`
	SolverAmount               string `json:"solver_amount"`
	TransactionExecutionAmount string `json:"transaction_execution_amount"`
}

type AnthicLevelFee struct {
	TakerFee string `json:"taker_fee"`
	MakerFee string `json:"maker_fee"`
}

type AccountAddressInfo struct {
	Level uint64 `json:"level"`
}

type TokensResponse struct {
	Tokens []TokenDefinition `json:"tokens"`
}

type TokenDefinition struct {
	ResourceAddress string `json:"resource_address"`
	Symbol          string `json:"symbol"`
}

// TokenPair is a market by token symbols.
type TokenPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type TokenPairsResponse struct {
	TokenPairs []TokenPair `json:"token_pairs"`
}

type AccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type Account struct {
	Address  string            `json:"address"`
	Balances []ResourceBalance `json:"balances"`
}

type ResourceBalance struct {
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

type InstamintInfo struct {
	InstamintComponent    string `json:"instamint_component"`
	CustomerBadgeResource string `json:"customer_badge_resource"`
}

type InstamintAccountsResponse struct {
	Accounts []InstamintAccount `json:"accounts"`
}

type InstamintAccount struct {
	CustomerBadgeLocalIDs []string                  `json:"customer_badge_non_fungible_local_ids"`
	Address               string                    `json:"address"`
	InstamintAllowance    string                    `json:"instamint_allowance"`
	UnreconciledLoans     []ResourceBalance         `json:"unreconciled_loans"`
	PaybackAddresses      []InstamintPaybackAddress `json:"payback_addresses"`
}

type InstamintPaybackAddress struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Symbol  string `json:"symbol,omitempty"`
	// TokenAddress is empty for the chain's native token.
	TokenAddress string `json:"token_address,omitempty"`
}

// SubmitRequest carries a hex encoded signed partial transaction.
type SubmitRequest struct {
	SignedPartialTransactionHex string `json:"signed_partial_transaction_hex"`
}

type SubmitResponse struct {
	ID        string `json:"id"`
	Hash      string `json:"hash"`
	ExpiresAt int64  `json:"expires_at"`
}

// OrderResponse describes a stored order. Amounts are decimal strings.
type OrderResponse struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	Account     string `json:"account"`
	Status      string `json:"status"`
	Origin      string `json:"origin"`
	SellSymbol  string `json:"sell_symbol,omitempty"`
	SellAmount  string `json:"sell_amount"`
	BuySymbol   string `json:"buy_symbol,omitempty"`
	BuyAmount   string `json:"buy_amount"`
	VenueFee    string `json:"venue_fee"`
	SettleFee   string `json:"settlement_fee"`
	Instamint   bool   `json:"instamint"`
	ReceivedAt  int64  `json:"received_at"`
	ExpiresAt   int64  `json:"expires_at"`
	Transaction string `json:"signed_partial_transaction_hex"`
}

// CancelRequest carries the order account's signature over the cancel
// digest of the subintent hash, hex encoded.
type CancelRequest struct {
	Signature string `json:"signature"`
}

type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
