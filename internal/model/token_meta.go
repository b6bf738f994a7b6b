package model

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	// Partial is set when symbol or name could not be read and was left empty.
	Partial bool `json:"partial,omitempty"`
}
