package digest

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
)

// digestTemplate renders the thread excerpt. Message bodies are visitor
// input; html/template escaping is load-bearing here.
var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #24292f;">
  <h2 style="margin-bottom: 4px;">{{ .Subject }}</h2>
  <p style="color: #57606a; margin-top: 0;">Conversation: {{ .ConversationSubject }}</p>
  <div>
  {{ range .Messages }}
    <div style="margin: 12px 0; padding: 10px; border-radius: 6px; background: {{ if .New }}#ddf4ff{{ else }}#f6f8fa{{ end }};">
      <div style="font-size: 12px; color: #57606a;">{{ .Sender }} &middot; {{ .SentAt }}</div>
      <div>{{ .Body }}</div>
    </div>
  {{ end }}
  </div>
</body>
</html>
`))

type renderedMessage struct {
	Sender string
	SentAt string
	Body   string
	New    bool
}

type renderData struct {
	Subject             string
	ConversationSubject string
	Messages            []renderedMessage
}

func (s *Service) render(ctx context.Context, conv *model.Conversation, batch, thread []*model.Message, mode model.DigestMode) (string, string, error) {
	visitorName := "Visitor"
	if visitor, err := s.directory.GetVisitor(ctx, conv.VisitorID); err == nil && visitor.Name != "" {
		visitorName = visitor.Name
	}

	var subject string
	if mode == model.DigestModeMemberEmail {
		if len(batch) == 1 {
			subject = fmt.Sprintf("%s sent a new message", visitorName)
		} else {
			subject = fmt.Sprintf("%s sent %d new messages", visitorName, len(batch))
		}
	} else {
		if len(batch) == 1 {
			subject = "You have a new reply from the team"
		} else {
			subject = fmt.Sprintf("You have %d new replies from the team", len(batch))
		}
	}

	inBatch := make(map[uuid.UUID]struct{}, len(batch))
	for _, m := range batch {
		inBatch[m.ID] = struct{}{}
	}

	agentNames := make(map[uuid.UUID]string)
	data := renderData{
		Subject:             subject,
		ConversationSubject: conv.Subject,
		Messages:            make([]renderedMessage, 0, len(thread)),
	}
	for _, m := range thread {
		_, isNew := inBatch[m.ID]
		data.Messages = append(data.Messages, renderedMessage{
			Sender: s.senderLabel(ctx, m, visitorName, agentNames),
			SentAt: m.SentAt.Format("Jan 2, 15:04"),
			Body:   m.Body,
			New:    isNew,
		})
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

func (s *Service) senderLabel(ctx context.Context, m *model.Message, visitorName string, agentNames map[uuid.UUID]string) string {
	switch m.SenderType {
	case model.SenderTypeVisitor:
		return visitorName
	case model.SenderTypeBot:
		return "Bot"
	case model.SenderTypeAgent:
		if m.SenderID == nil {
			return "Agent"
		}
		if name, ok := agentNames[*m.SenderID]; ok {
			return name
		}
		name := "Agent"
		if user, err := s.directory.GetUser(ctx, *m.SenderID); err == nil && user.Name != "" {
			name = user.Name
		}
		agentNames[*m.SenderID] = name
		return name
	}
	return string(m.SenderType)
}
