package asset

// Defaults is the platform's tracked asset list.
var Defaults = []Asset{
	{Symbol: "SOL", Name: "Solana", CoinGeckoID: "solana", Address: "So11111111111111111111111111111111111111112", Chain: ChainSolana, Aliases: []string{"solana"}, Common: true},
	{Symbol: "ETH", Name: "Ethereum", CoinGeckoID: "ethereum", Aliases: []string{"ethereum"}, Common: true},
	{Symbol: "BTC", Name: "Bitcoin", CoinGeckoID: "bitcoin", Aliases: []string{"bitcoin"}, Common: true},
	{Symbol: "USDC", Name: "USD Coin", CoinGeckoID: "usd-coin", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Chain: ChainSolana, Aliases: []string{"usd-coin"}, Common: true},
	{Symbol: "USDT", Name: "Tether", CoinGeckoID: "tether", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Chain: ChainSolana, Aliases: []string{"tether"}, Common: true},
	{Symbol: "JUP", Name: "Jupiter", CoinGeckoID: "jupiter-exchange-solana", Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Chain: ChainSolana, Aliases: []string{"jupiter"}, Common: true},
	{Symbol: "BONK", Name: "Bonk", CoinGeckoID: "bonk", Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Chain: ChainSolana},
	{Symbol: "WIF", Name: "dogwifhat", CoinGeckoID: "dogwifcoin", Address: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", Chain: ChainSolana},
	{Symbol: "RAY", Name: "Raydium", CoinGeckoID: "raydium", Address: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Chain: ChainSolana},
}

// DefaultRegistry indexes Defaults.
func DefaultRegistry() *Registry { return MustRegistry(Defaults) }
