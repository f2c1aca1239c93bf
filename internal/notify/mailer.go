// Package notify sends the end-of-run email.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

const Subject = "Загрузка данных"

const bodyTemplate = `Добрый день,

Автоматический скрипт успешно завершил выполнение.
Период данных в отчете: с %s по %s.
Подробный отчет о работе скрипта и все зафиксированные события доступны для просмотра в файле логов.

С уважением,
Татьяна`

type Message struct {
	Subject string
	Body    string
}

// CompletionMessage is the notice sent after every run, whatever its outcome.
func CompletionMessage(window models.Window) Message {
	return Message{
		Subject: Subject,
		Body:    fmt.Sprintf(bodyTemplate, window.FormattedStart(), window.FormattedEnd()),
	}
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
	// Timeout bounds the whole SMTP exchange; zero keeps the library default.
	Timeout time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer delivers messages over implicit TLS with PLAIN auth as the sender.
type Mailer struct {
	config Config
	client sender
	log    *zap.SugaredLogger
}

func NewMailer(cfg Config, log *zap.SugaredLogger) (*Mailer, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Sender),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &Mailer{config: cfg, client: client, log: log}, nil
}

func (m *Mailer) compose(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.config.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", m.config.Sender, err)
	}
	if err := out.To(m.config.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", m.config.Recipient, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	out, err := m.compose(msg)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("failed to send email via %s:%d: %w", m.config.Host, m.config.Port, err)
	}

	m.log.Info("Email sent successfully.")
	return nil
}
