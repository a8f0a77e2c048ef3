package report

import (
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/checkin/internal/models"
)

func reportWith(success, total int, hash string) *models.RunReport {
	return &models.RunReport{
		ID:           "run-1",
		StartedAt:    time.Now(),
		FinishedAt:   time.Now(),
		SuccessCount: success,
		TotalCount:   total,
		BalanceHash:  hash,
	}
}

func TestNeedNotify(t *testing.T) {
	tests := []struct {
		name         string
		report       *models.RunReport
		previousHash string
		want         bool
	}{
		{"no attempts at all", reportWith(0, 0, ""), "", true},
		{"all failed", reportWith(0, 2, ""), "", true},
		{"partial failure", reportWith(1, 2, "abc"), "abc", true},
		{"all green, hash changed", reportWith(2, 2, "new"), "old", true},
		{"all green, hash unchanged", reportWith(2, 2, "same"), "same", false},
		{"all green, no balance data", reportWith(2, 2, ""), "old", false},
		{"all green, first run", reportWith(2, 2, "abc"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedNotify(tt.report, tt.previousHash); got != tt.want {
				t.Errorf("NeedNotify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBodyRendersAccountsAndSummary(t *testing.T) {
	report := &models.RunReport{
		ID:         "run-1",
		FinishedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		Outcomes: []models.CheckInOutcome{
			{
				Account:  "alice",
				Provider: "AnyRouter",
				Method:   models.AuthMethodGitHub,
				Success:  false,
				Message:  "签到失败: 认证已过期",
			},
			{
				Account:  "alice",
				Provider: "AnyRouter",
				Method:   models.AuthMethodCookies,
				Success:  true,
				Message:  "签到成功",
				Balance:  &models.UserBalance{Quota: 2.00, Used: 1.00},
				Delta:    &models.BalanceDelta{Recharge: 0.5, UsedChange: 0.1, QuotaChange: 0.4},
			},
			{
				Account:  "bob",
				Provider: "AgentRouter",
				Method:   models.AuthMethodLinuxDo,
				Success:  true,
				Message:  "保活成功（无签到接口）",
			},
		},
		SuccessCount: 2,
		TotalCount:   3,
	}

	body := Body(report)

	if !strings.Contains(body, "🕓 执行时间: 2025-06-01 08:00:00") {
		t.Error("timestamp line missing")
	}
	if !strings.Contains(body, "📋 alice (AnyRouter)") {
		t.Error("alice account header missing")
	}
	if !strings.Contains(body, "[github] ❌ FAILED: 签到失败: 认证已过期") {
		t.Error("failed github attempt missing")
	}
	if !strings.Contains(body, "[cookies] ✅ SUCCESS: 签到成功") {
		t.Error("successful cookies attempt missing")
	}
	if !strings.Contains(body, "💰 余额: $2.00, 已用: $1.00") {
		t.Error("balance line missing")
	}
	if !strings.Contains(body, "📈 变动: 充值 $0.50, 消费 $0.10") {
		t.Error("delta line missing")
	}
	if !strings.Contains(body, "📊 统计: 1/2 个认证方式成功 (1 个失败)") {
		t.Error("alice tally missing")
	}
	if !strings.Contains(body, "📋 bob (AgentRouter)") {
		t.Error("bob account header missing")
	}
	if !strings.Contains(body, "⚠️ 部分账号签到成功") {
		t.Error("partial-success summary missing")
	}

	// Account blocks keep first-seen order.
	if strings.Index(body, "📋 alice") > strings.Index(body, "📋 bob") {
		t.Error("account blocks out of order")
	}
}

func TestBodyZeroDeltaOmitted(t *testing.T) {
	report := &models.RunReport{
		FinishedAt: time.Now(),
		Outcomes: []models.CheckInOutcome{
			{
				Account:  "alice",
				Provider: "AnyRouter",
				Method:   models.AuthMethodCookies,
				Success:  true,
				Message:  "签到成功",
				Balance:  &models.UserBalance{Quota: 2.00, Used: 1.00},
				Delta:    &models.BalanceDelta{},
			},
		},
		SuccessCount: 1,
		TotalCount:   1,
	}

	body := Body(report)
	if strings.Contains(body, "📈 变动") {
		t.Error("zero delta should not be rendered")
	}
	if !strings.Contains(body, "✅ 所有账号签到成功!") {
		t.Error("all-green summary missing")
	}
}

func TestBodyAllFailedSummary(t *testing.T) {
	report := &models.RunReport{
		FinishedAt: time.Now(),
		Outcomes: []models.CheckInOutcome{
			{Account: "alice", Provider: "AnyRouter", Method: models.AuthMethodCookies, Message: "签到失败: 访问被拒绝 (403)"},
		},
		SuccessCount: 0,
		TotalCount:   1,
	}

	body := Body(report)
	if !strings.Contains(body, "❌ 所有账号签到失败") {
		t.Error("all-failed summary missing")
	}
	if !strings.Contains(body, "🔴 失败: 1/1") {
		t.Error("failure tally missing")
	}
}
