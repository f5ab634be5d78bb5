package sns

import (
	"context"
	"encoding/json"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-telegram-login/internal/config"
)

// LoginEvent is the completion/error notification published for the
// surrounding system (CRM sync, audit, analytics). Best-effort only: a
// failed publish never affects the handshake.
type LoginEvent struct {
	Type       string    `json:"type"` // "login_completed" | "login_failed"
	Token      string    `json:"token"`
	UserID     string    `json:"user_id,omitempty"`
	TelegramID string    `json:"telegram_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher publishes login lifecycle events.
type EventPublisher interface {
	PublishLoginEvent(ctx context.Context, evt LoginEvent) error
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(cfg *config.Config) (EventPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &publisher{client: sns.NewFromConfig(awsCfg), topicARN: cfg.SNSTopicARN}, nil
}

func (p *publisher) PublishLoginEvent(ctx context.Context, evt LoginEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := string(body)
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &p.topicARN,
		Message:  &msg,
	})
	return err
}
