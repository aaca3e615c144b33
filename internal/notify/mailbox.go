package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// MailboxDeliverer files reminders as messages in an IMAP folder. It
// serves mailto: endpoints; the address becomes the message recipient.
type MailboxDeliverer struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	folder   string
	from     string
	now      func() time.Time
}

// NewMailboxDeliverer creates a deliverer from the IMAP settings and the
// account password.
func NewMailboxDeliverer(cfg model.IMAPConfig, password string) *MailboxDeliverer {
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	return &MailboxDeliverer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
		folder:   folder,
		from:     cfg.From,
		now:      time.Now,
	}
}

// Deliver implements Deliverer.
func (d *MailboxDeliverer) Deliver(ctx context.Context, endpoint, title, body string) error {
	to := strings.TrimPrefix(endpoint, "mailto:")
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: invalid mailto address %q", ErrUnsupportedEndpoint, to)
	}

	date := d.now()
	raw, err := ComposeMessage(d.from, to, title, body, date)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := d.connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	appendCmd := client.Append(d.folder, int64(len(raw)), &imap.AppendOptions{
		Time: date,
	})
	if _, err := appendCmd.Write(raw); err != nil {
		return fmt.Errorf("writing reminder to %s: %w", d.folder, err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", d.folder, err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending reminder to %s: %w", d.folder, err)
	}

	return nil
}

// connect dials and authenticates. The caller must log out.
func (d *MailboxDeliverer) connect() (*imapclient.Client, error) {
	addr := d.host + ":" + d.port

	var client *imapclient.Client
	var err error
	if d.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(d.username, d.password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("IMAP login for %s: %w", d.username, err)
	}

	return client, nil
}

// ComposeMessage renders a plain-text RFC 5322 reminder message.
func ComposeMessage(from, to, subject, body string, date time.Time) ([]byte, error) {
	var h gomail.Header
	h.SetDate(date)
	h.SetSubject(subject)
	h.SetAddressList("From", []*gomail.Address{{Address: from}})
	h.SetAddressList("To", []*gomail.Address{{Address: to}})
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body+"\r\n"); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing message: %w", err)
	}

	return buf.Bytes(), nil
}
