// Package inbound polls an IMAP mailbox and feeds unseen messages into the
// scheduling pipeline. Deployments that receive mail through the webhook
// leave this disabled.
package inbound

import (
	"context"
	"fmt"
	"time"

	imap "github.com/BrianLeishman/go-imap"

	"spike_backend/internal/config"
	"spike_backend/internal/scheduling"
	"spike_backend/platform/logger"
)

const inboxFolder = "INBOX"

// Poller drains unseen messages on a fixed interval.
type Poller struct {
	cfg *config.Config
	log *logger.Logger
	svc *scheduling.Service
}

func NewPoller(cfg *config.Config, log *logger.Logger, svc *scheduling.Service) *Poller {
	return &Poller{cfg: cfg, log: log, svc: svc}
}

// Run blocks until ctx is cancelled. Each tick is independent: a failed poll
// logs and waits for the next one.
func (p *Poller) Run(ctx context.Context) {
	interval := p.cfg.IMAPPollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info("imap poller started", "host", p.cfg.IMAPHost, "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			p.log.Info("imap poller stopped")
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				p.log.Warn("imap poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	dialer, err := imap.New(p.cfg.IMAPUsername, p.cfg.IMAPPassword, p.cfg.IMAPHost, p.cfg.IMAPPort)
	if err != nil {
		return fmt.Errorf("imap dial: %w", err)
	}
	defer dialer.Close()

	if err := dialer.SelectFolder(inboxFolder); err != nil {
		return fmt.Errorf("select %s: %w", inboxFolder, err)
	}
	uids, err := dialer.GetUIDs("UNSEEN")
	if err != nil {
		return fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	emails, err := dialer.GetEmails(uids...)
	if err != nil {
		return fmt.Errorf("fetch emails: %w", err)
	}

	for uid, email := range emails {
		if email == nil {
			continue
		}
		payload, ok := messagePayload(email)
		if !ok {
			// Still mark it so a malformed message cannot wedge the inbox.
			if err := dialer.MarkSeen(uid); err != nil {
				p.log.Warn("imap mark seen failed", "uid", uid, "error", err)
			}
			continue
		}

		if _, err := p.svc.Process(ctx, payload); err != nil {
			p.log.Warn("inbound message processing failed", "uid", uid, "error", err)
		}
		if err := dialer.MarkSeen(uid); err != nil {
			p.log.Warn("imap mark seen failed", "uid", uid, "error", err)
		}
	}
	return nil
}

// messagePayload maps a fetched message onto the scheduling payload. Messages
// without a sender address are skipped.
func messagePayload(email *imap.Email) (scheduling.EmailPayload, bool) {
	from := ""
	for addr := range email.From {
		from = addr
		break
	}
	if from == "" {
		return scheduling.EmailPayload{}, false
	}
	return scheduling.EmailPayload{
		FromEmail: from,
		Subject:   email.Subject,
		Body:      email.Text,
		Channel:   "imap",
	}, true
}
