package authhttp

// Bucket names used by walletauth endpoints.
const (
	RLWalletChallenge = "wallet_challenge"
	RLWalletVerify    = "wallet_verify"
)
