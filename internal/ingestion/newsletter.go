package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// ErrWrongRecipient marks a newsletter delivery addressed to anything but
// the designated intake alias. Handlers treat it as an input error.
var ErrWrongRecipient = errors.New("not addressed to the radar intake alias")

// NewsletterAlias is the default local part the inbound webhook must be
// addressed to for events to be ingested.
const NewsletterAlias = "radar"

// SetNewsletterAlias overrides the intake alias.
func (p *Pipeline) SetNewsletterAlias(alias string) {
	if alias != "" {
		p.alias = alias
	}
}

// RunNewsletter ingests one inbound newsletter delivery. The strict
// five-rule validation applies, including topical relevance; the source
// name derives from the sender's domain.
func (p *Pipeline) RunNewsletter(ctx context.Context, email models.InboundEmail) (Result, error) {
	if !addressedTo(email.To, p.alias) {
		return Result{}, fmt.Errorf("recipient %q: %w", email.To, ErrWrongRecipient)
	}

	source := senderDomain(email.From)
	if source == "" {
		return Result{}, fmt.Errorf("unparseable sender %q", email.From)
	}

	content := email.Text
	if content == "" {
		content = email.HTML
	}
	content = email.Subject + "\n\n" + content

	candidates := p.extractor.Extract(ctx, content, models.ExtractionHints{})

	return p.processCandidates(ctx, candidates, source, Options{RequireRelevance: true})
}

// addressedTo checks whether any recipient carries the given local part.
// Inbound webhooks deliver "Name <radar@kinn.at>" as well as bare
// addresses, and may list several recipients comma-separated.
func addressedTo(to, alias string) bool {
	for _, part := range strings.Split(strings.ToLower(to), ",") {
		addr := extractAddress(part)
		if local, _, ok := strings.Cut(addr, "@"); ok && strings.TrimSpace(local) == alias {
			return true
		}
	}
	return false
}

// senderDomain derives the source name from the sender address.
func senderDomain(from string) string {
	addr := extractAddress(strings.ToLower(from))
	_, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return ""
	}
	return strings.TrimSpace(domain)
}

// extractAddress peels "Display Name <addr>" down to addr.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.LastIndex(s, "<"); start >= 0 {
		if end := strings.Index(s[start:], ">"); end > 0 {
			return s[start+1 : start+end]
		}
	}
	return s
}
