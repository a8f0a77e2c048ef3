package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/checkin/internal/models"
)

// Title is the fixed notification subject.
const Title = "Router签到提醒"

// NeedNotify decides whether the run warrants a push. Anything short of
// all-green notifies; an all-green run notifies only when the balance
// hash moved (or no previous hash exists).
func NeedNotify(report *models.RunReport, previousHash string) bool {
	if report.TotalCount == 0 {
		return true
	}
	if !report.AllSuccess() {
		return true
	}
	if report.BalanceHash == "" {
		// All green but no balance data came back; nothing to compare,
		// nothing to report.
		return false
	}
	if previousHash == "" {
		return true
	}
	return report.BalanceHash != previousHash
}

// Body renders the notification text: a timestamp, one block per
// account, then the overall tally.
func Body(report *models.RunReport) string {
	var sections []string
	sections = append(sections, fmt.Sprintf("🕓 执行时间: %s", report.FinishedAt.Format("2006-01-02 15:04:05")))

	for _, block := range accountBlocks(report.Outcomes) {
		sections = append(sections, block)
	}

	sections = append(sections, summary(report))
	return strings.Join(sections, "\n\n")
}

// accountBlocks groups outcomes by account, preserving first-seen order.
func accountBlocks(outcomes []models.CheckInOutcome) []string {
	var order []string
	grouped := make(map[string][]models.CheckInOutcome)
	for _, outcome := range outcomes {
		if _, seen := grouped[outcome.Account]; !seen {
			order = append(order, outcome.Account)
		}
		grouped[outcome.Account] = append(grouped[outcome.Account], outcome)
	}

	blocks := make([]string, 0, len(order))
	for _, account := range order {
		blocks = append(blocks, renderAccount(account, grouped[account]))
	}
	return blocks
}

func renderAccount(account string, outcomes []models.CheckInOutcome) string {
	var b strings.Builder
	successCount := 0

	b.WriteString(fmt.Sprintf("📋 %s (%s)\n", account, outcomes[0].Provider))
	for _, outcome := range outcomes {
		status := "❌ FAILED"
		if outcome.Success {
			status = "✅ SUCCESS"
			successCount++
		}
		b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", outcome.Method, status, outcome.Message))

		if outcome.Balance != nil {
			b.WriteString(fmt.Sprintf("    💰 余额: $%.2f, 已用: $%.2f\n", outcome.Balance.Quota, outcome.Balance.Used))
		}
		if outcome.Delta != nil && !outcome.Delta.IsZero() {
			b.WriteString(fmt.Sprintf("    📈 变动: 充值 $%.2f, 消费 $%.2f\n", outcome.Delta.Recharge, outcome.Delta.UsedChange))
		}
	}

	b.WriteString(fmt.Sprintf("📊 统计: %d/%d 个认证方式成功", successCount, len(outcomes)))
	if failed := len(outcomes) - successCount; failed > 0 {
		b.WriteString(fmt.Sprintf(" (%d 个失败)", failed))
	}
	return b.String()
}

func summary(report *models.RunReport) string {
	lines := []string{
		strings.Repeat("-", 60),
		"📢 签到结果统计:",
		fmt.Sprintf("🔵 成功: %d/%d", report.SuccessCount, report.TotalCount),
		fmt.Sprintf("🔴 失败: %d/%d", report.TotalCount-report.SuccessCount, report.TotalCount),
	}
	switch {
	case report.AllSuccess():
		lines = append(lines, "✅ 所有账号签到成功!")
	case report.AnySuccess():
		lines = append(lines, "⚠️ 部分账号签到成功")
	default:
		lines = append(lines, "❌ 所有账号签到失败")
	}
	return strings.Join(lines, "\n")
}
