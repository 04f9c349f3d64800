package models

import "time"

// Trigger jobs
const (
	JobAccrual         = "accrual"
	JobSchedule        = "schedule"
	JobStakingMaturity = "staking_maturity"
)

// TriggerMessage is published by the external scheduler on the trigger topic.
type TriggerMessage struct {
	ID    string    `json:"id"`
	Job   string    `json:"job"`
	Cycle int64     `json:"cycle"`
	At    time.Time `json:"at"`
}

// NotificationMessage is published after a financial state transition.
type NotificationMessage struct {
	UserID    int64             `json:"user_id"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notification templates
const (
	TemplateInvestCreated    = "invest_created"
	TemplateInvestCompleted  = "invest_completed"
	TemplateWithdrawRequest  = "withdraw_request"
	TemplateWithdrawApprove  = "withdraw_approve"
	TemplateWithdrawReject   = "withdraw_reject"
	TemplateDepositComplete  = "deposit_complete"
	TemplateDepositReject    = "deposit_reject"
	TemplateReferralEarned   = "referral_commission"
	TemplateBalanceTransfer  = "balance_transfer"
	TemplatePoolDispatched   = "pool_interest"
	TemplateStakingMatured   = "staking_matured"
	TemplateRankingPromotion = "ranking_promotion"
)
