package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strconv"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/anoixa/image-predict/utils"
)

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig SMTP 连接配置
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// ShoutrrrSender 通过 shoutrrr smtp:// 服务发信
type ShoutrrrSender struct {
	cfg SMTPConfig
}

// NewShoutrrrSender 创建 SMTP 发送器
func NewShoutrrrSender(cfg SMTPConfig) *ShoutrrrSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ShoutrrrSender{cfg: cfg}
}

// serviceURL 为单个收件人构造 smtp:// 地址
func (s *ShoutrrrSender) serviceURL(to string) string {
	u := url.URL{
		Scheme: "smtp",
		Host:   s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port),
		Path:   "/",
	}
	if s.cfg.Username != "" {
		u.User = url.UserPassword(s.cfg.Username, s.cfg.Password)
	}

	q := url.Values{}
	q.Set("fromaddress", s.cfg.From)
	q.Set("toaddresses", to)
	if s.cfg.Username == "" {
		q.Set("auth", "None")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Send 发送纯文本邮件
func (s *ShoutrrrSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sender, err := shoutrrr.CreateSender(s.serviceURL(to))
	if err != nil {
		return fmt.Errorf("create smtp sender: %w", err)
	}
	sender.Timeout = s.cfg.Timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	params.SetTitle(subject)
	for _, e := range sender.Send(body, &params) {
		if e != nil {
			return fmt.Errorf("send mail to %s: %w", utils.SanitizeLogUsername(to), e)
		}
	}
	return nil
}

// LogSender 未配置 SMTP 时把邮件写到日志
type LogSender struct{}

// Send 记录邮件内容
func (LogSender) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[Mail] To: %s | Subject: %s\n%s", to, subject, body)
	return nil
}
