package dto

// AccountQuotaDTO is the usage snapshot for one service account.
type AccountQuotaDTO struct {
	AccountID  uint   `json:"account_id"`
	Name       string `json:"name"`
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Percentage int    `json:"percentage"`
}

// QuotaStatusDTO aggregates a user's quota position for the current UTC
// day.
type QuotaStatusDTO struct {
	Date           string            `json:"date"`
	TotalUsed      int               `json:"total_used"`
	TotalLimit     int               `json:"total_limit"`
	TotalRemaining int               `json:"total_remaining"`
	Accounts       []AccountQuotaDTO `json:"accounts"`
}
