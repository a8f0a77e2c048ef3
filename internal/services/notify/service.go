package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
)

// Service fans the run summary out to every configured channel. Channels
// with empty credentials are skipped; channel failures are logged and
// never propagate, so a dead webhook cannot fail an otherwise green run.
type Service struct {
	config     common.NotifyConfig
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewService creates the notification fan-out.
func NewService(config common.NotifyConfig, logger arbor.ILogger) *Service {
	return &Service{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type channel struct {
	name string
	send func(ctx context.Context, title, body string) error
}

func (s *Service) channels() []channel {
	var chans []channel
	if s.config.EmailUser != "" && s.config.EmailPass != "" && s.config.EmailTo != "" {
		chans = append(chans, channel{"Email", s.sendEmail})
	}
	if s.config.PushPlusToken != "" {
		chans = append(chans, channel{"PushPlus", s.sendPushPlus})
	}
	if s.config.ServerPushKey != "" {
		chans = append(chans, channel{"ServerChan", s.sendServerChan})
	}
	if s.config.DingTalkWebhook != "" {
		chans = append(chans, channel{"DingTalk", s.sendDingTalk})
	}
	if s.config.FeishuWebhook != "" {
		chans = append(chans, channel{"Feishu", s.sendFeishu})
	}
	if s.config.WeComWebhook != "" {
		chans = append(chans, channel{"WeCom", s.sendWeCom})
	}
	return chans
}

// Push delivers the message to every configured channel, best-effort.
func (s *Service) Push(ctx context.Context, title, body string) {
	chans := s.channels()
	if len(chans) == 0 {
		s.logger.Info().Msg("No notification channels configured")
		return
	}

	for _, ch := range chans {
		if err := ch.send(ctx, title, body); err != nil {
			s.logger.Warn().Err(err).Str("channel", ch.name).Msg("Notification delivery failed")
			continue
		}
		s.logger.Info().Str("channel", ch.name).Msg("Notification delivered")
	}
}

func (s *Service) postJSON(ctx context.Context, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) sendPushPlus(ctx context.Context, title, body string) error {
	return s.postJSON(ctx, "http://www.pushplus.plus/send", map[string]string{
		"token":    s.config.PushPlusToken,
		"title":    title,
		"content":  body,
		"template": "html",
	})
}

func (s *Service) sendServerChan(ctx context.Context, title, body string) error {
	url := fmt.Sprintf("https://sctapi.ftqq.com/%s.send", s.config.ServerPushKey)
	return s.postJSON(ctx, url, map[string]string{
		"title": title,
		"desp":  body,
	})
}

func (s *Service) sendDingTalk(ctx context.Context, title, body string) error {
	return s.postJSON(ctx, s.config.DingTalkWebhook, map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": title + "\n" + body,
		},
	})
}

func (s *Service) sendFeishu(ctx context.Context, title, body string) error {
	return s.postJSON(ctx, s.config.FeishuWebhook, map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"elements": []map[string]interface{}{
				{"tag": "markdown", "content": body, "text_align": "left"},
			},
			"header": map[string]interface{}{
				"template": "blue",
				"title":    map[string]string{"content": title, "tag": "plain_text"},
			},
		},
	})
}

func (s *Service) sendWeCom(ctx context.Context, title, body string) error {
	return s.postJSON(ctx, s.config.WeComWebhook, map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": title + "\n" + body,
		},
	})
}

// smtpHost picks the configured server or derives smtp.<domain> from the
// sender address, matching how the deployments have always behaved.
func (s *Service) smtpHost() string {
	if s.config.SMTPServer != "" {
		return s.config.SMTPServer
	}
	parts := strings.SplitN(s.config.EmailUser, "@", 2)
	if len(parts) != 2 {
		return ""
	}
	return "smtp." + parts[1]
}

func (s *Service) sendEmail(ctx context.Context, title, body string) error {
	host := s.smtpHost()
	if host == "" {
		return fmt.Errorf("cannot determine SMTP server for %s", s.config.EmailUser)
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: Router签到助手 <%s>\r\n", s.config.EmailUser))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", s.config.EmailTo))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", title))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	// Implicit TLS on 465 first, STARTTLS on 587 as fallback.
	if err := sendWithTLS(host+":465", host, s.config.EmailUser, s.config.EmailPass, s.config.EmailTo, msg.String()); err != nil {
		s.logger.Debug().Err(err).Msg("TLS delivery failed, trying STARTTLS")
		return sendWithSTARTTLS(host+":587", host, s.config.EmailUser, s.config.EmailPass, s.config.EmailTo, msg.String())
	}
	return nil
}
