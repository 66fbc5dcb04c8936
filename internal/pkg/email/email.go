package email

import (
	"fmt"
	"html"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/qs3c/audiosep_server/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg  *config.EmailConfig
	send sendFunc
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg, send: smtp.SendMail}
}

// SetSender 替换发信方式，默认使用 smtp.SendMail
func (s *Service) SetSender(fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.send = fn
}

// Enabled 未配置 SMTP 时不发信
func (s *Service) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.SMTPHost != "" && s.cfg.From != ""
}

// Receipt 支付回执内容
type Receipt struct {
	PlanName  string
	Amount    float64
	Currency  string
	PaidAt    time.Time
	ExpiresAt *time.Time
	CardLast4 string
}

// SendReceipt 发送模拟支付回执
func (s *Service) SendReceipt(to string, r *Receipt) error {
	subject := fmt.Sprintf("Payment receipt - %s plan", r.PlanName)

	validity := "no expiry"
	if r.ExpiresAt != nil {
		validity = "until " + r.ExpiresAt.UTC().Format("2006-01-02")
	}
	card := ""
	if r.CardLast4 != "" {
		card = fmt.Sprintf("<p>Card: **** %s</p>", html.EscapeString(r.CardLast4))
	}

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">Thank you for your purchase</h2>
        <p>Plan: <strong>%s</strong></p>
        <p>Amount: %.2f %s</p>
        <p>Paid at: %s</p>
        <p>Valid: %s</p>
        %s
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">This is a simulated payment. No money was charged.</p>
    </div>
</body>
</html>
`, html.EscapeString(r.PlanName), r.Amount, html.EscapeString(r.Currency),
		r.PaidAt.UTC().Format(time.RFC1123), validity, card)

	return s.sendHTML(to, subject, body)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := map[string]string{
		"From":         s.cfg.From,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg strings.Builder
	for _, k := range keys {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
