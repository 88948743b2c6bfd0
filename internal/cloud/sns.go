package cloud

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// SNS subjects are limited to 100 printable ASCII characters.
const maxSubject = 100

var umlauts = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

// SNSNotifier publishes stored alerts to a topic.
type SNSNotifier struct {
	svc      *sns.Client
	topicArn string
}

func NewSNSNotifier(ctx context.Context, region, topicArn string) (*SNSNotifier, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SNSNotifier{
		svc:      sns.NewFromConfig(cfg),
		topicArn: topicArn,
	}, nil
}

// SendAlert publishes a plain notification.
func (n *SNSNotifier) SendAlert(ctx context.Context, subject, message string) error {
	result, err := n.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Debug().Str("message_id", aws.ToString(result.MessageId)).Msg("alert sent")
	return nil
}

func (n *SNSNotifier) NotifyAlert(ctx context.Context, alert domain.AlertRecord) error {
	return n.SendAlert(ctx, AlertSubject(alert), AlertMessage(alert))
}

// AlertSubject is a single-line subject naming the fault.
func AlertSubject(alert domain.AlertRecord) string {
	reason := strings.Join(strings.Fields(toASCII(alert.Reason)), " ")
	subject := "Inverter alarm"
	if reason != "" {
		subject += ": " + reason
	}
	if len(subject) > maxSubject {
		subject = subject[:maxSubject-3] + "..."
	}
	return subject
}

// toASCII spells out German umlauts and strips other accents. Whatever is
// still outside printable ASCII afterwards is dropped.
func toASCII(s string) string {
	s = umlauts.Replace(norm.NFC.String(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII || (!unicode.IsPrint(r) && !unicode.IsSpace(r))
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

func AlertMessage(alert domain.AlertRecord) string {
	return fmt.Sprintf(
		"Inverter Alarm\n\n"+
			"Reason: %s\n"+
			"Time: %s\n\n"+
			"%s",
		alert.Reason,
		domain.FormatTime(alert.Datetime),
		alert.Message,
	)
}
