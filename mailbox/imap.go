package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"codegate"
)

// IMAPFetcher retrieves candidate messages over IMAP. One connection per
// Fetch call, torn down unconditionally before returning; dial and
// authentication are bounded by Timeout.
type IMAPFetcher struct {
	Timeout time.Duration
}

func NewIMAPFetcher(timeout time.Duration) *IMAPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IMAPFetcher{Timeout: timeout}
}

func (f *IMAPFetcher) Fetch(ctx context.Context, cfg codegate.IMAPConfig, since time.Time, max int) ([][]byte, error) {
	conn, err := f.dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codegate.ErrMailboxUnavailable, err)
	}

	client := imapclient.New(conn, nil)
	defer client.Close()

	// Greeting, login and select run under the connection deadline; once
	// authenticated the deadline is lifted for the (potentially larger)
	// fetch transfer.
	_ = conn.SetDeadline(time.Now().Add(f.Timeout))
	if err := client.WaitGreeting(); err != nil {
		return nil, fmt.Errorf("%w: greeting: %v", codegate.ErrMailboxUnavailable, err)
	}
	if err := client.Login(cfg.User, cfg.Password).Wait(); err != nil {
		return nil, fmt.Errorf("%w: login: %v", codegate.ErrMailboxUnavailable, err)
	}

	box := cfg.Mailbox
	if box == "" {
		box = "INBOX"
	}
	if _, err := client.Select(box, nil).Wait(); err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", codegate.ErrMailboxUnavailable, box, err)
	}
	_ = conn.SetDeadline(time.Time{})

	criteria := &imap.SearchCriteria{Since: since}
	if cfg.Sender != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{{Key: "From", Value: cfg.Sender}}
	}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", codegate.ErrMailboxUnavailable, err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		_ = client.Logout().Wait()
		return nil, nil
	}

	// UIDs ascend with arrival order; keep the newest max and emit them
	// newest first.
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}

	var set imap.UIDSet
	set.AddNum(uids...)

	section := &imap.FetchItemBodySection{}
	msgs, err := client.Fetch(set, &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", codegate.ErrMailboxUnavailable, err)
	}

	// Collect returns messages in server order; re-sort to newest first.
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].UID > msgs[j].UID })

	out := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		body := msg.FindBodySection(section)
		if len(body) == 0 {
			continue
		}
		out = append(out, body)
	}

	_ = client.Logout().Wait()
	return out, nil
}

func (f *IMAPFetcher) dial(ctx context.Context, cfg codegate.IMAPConfig) (net.Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: f.Timeout}
	if cfg.TLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.Host}}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}
