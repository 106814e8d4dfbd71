package services

import (
	"context"

	"google.golang.org/api/gmail/v1"
)

// MailSource is the part of the Gmail API the inbox sync uses.
type MailSource interface {
	// ListRecent returns ids of messages matching the Gmail search query.
	ListRecent(ctx context.Context, query string, max int64) ([]string, error)
	// ListHistory returns ids of messages added since startID and the newest history id.
	ListHistory(ctx context.Context, startID uint64) ([]string, uint64, error)
	CurrentHistoryID(ctx context.Context) (uint64, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
}

type gmailSource struct {
	svc *gmail.Service
}

func NewGmailSource(svc *gmail.Service) MailSource {
	return &gmailSource{svc: svc}
}

func (g *gmailSource) ListRecent(ctx context.Context, query string, max int64) ([]string, error) {
	resp, err := g.svc.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (g *gmailSource) ListHistory(ctx context.Context, startID uint64) ([]string, uint64, error) {
	var ids []string
	var latest uint64
	pageToken := ""
	for {
		// Label changes are irrelevant; only added messages.
		call := g.svc.Users.History.List("me").StartHistoryId(startID).HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, 0, err
		}
		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil {
					ids = append(ids, added.Message.Id)
				}
			}
		}
		latest = resp.HistoryId
		if resp.NextPageToken == "" {
			return ids, latest, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (g *gmailSource) CurrentHistoryID(ctx context.Context) (uint64, error) {
	profile, err := g.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	return profile.HistoryId, nil
}

func (g *gmailSource) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	return g.svc.Users.Messages.Get("me", id).Context(ctx).Do()
}
