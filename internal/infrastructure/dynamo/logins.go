package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-telegram-login/internal/domain"
)

// LoginRepo provides typed DynamoDB operations for the pending-logins table.
// The created->consumed transition is enforced with a conditional write, so
// two concurrent completions for the same token can never both succeed.
type LoginRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewLoginRepo(client *dynamodb.Client, tableName string) *LoginRepo {
	return &LoginRepo{client: client, tableName: tableName}
}

func (r *LoginRepo) Put(ctx context.Context, l *domain.PendingLogin) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal pending login: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *LoginRepo) Get(ctx context.Context, token string) (*domain.PendingLogin, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending login not found: %w", domain.ErrNotFound)
	}
	var l domain.PendingLogin
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkConsumed transitions the row created->consumed and records the asserted
// identity attributes. The write is conditional on the row still being in the
// created state and inside its deadline; a failed condition is resolved to
// ErrLoginConsumed or ErrLoginExpired by re-reading the row.
func (r *LoginRepo) MarkConsumed(ctx context.Context, tok string, attrs domain.IdentityAttributes) error {
	now := time.Now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldState:      domain.LoginStateConsumed,
		fieldTelegramID: attrs.TelegramID,
		fieldName:       attrs.Name,
		fieldPhone:      attrs.Phone,
		fieldUsername:   attrs.Username,
		fieldPhoto:      attrs.Photo,
		"updated_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	ue.Names["#st"] = fieldState
	ue.Values[":created"] = &types.AttributeValueMemberS{Value: domain.LoginStateCreated}
	ue.Values[":now"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token", tok),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#tok) AND #st = :created AND expires_at >= :now"),
		ExpressionAttributeNames:  mergeNames(ue.Names, map[string]string{"#tok": "token"}),
		ExpressionAttributeValues: ue.Values,
	})
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return err
	}
	return r.resolveConditionFailure(ctx, tok, now)
}

// resolveConditionFailure figures out why a conditional consume was rejected.
func (r *LoginRepo) resolveConditionFailure(ctx context.Context, tok string, now time.Time) error {
	l, err := r.Get(ctx, tok)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("unknown login token: %w", domain.ErrLoginExpired)
		}
		return err
	}
	if l.State == domain.LoginStateConsumed {
		return domain.ErrLoginConsumed
	}
	if l.State == domain.LoginStateCreated && l.Expired(now) {
		// Opportunistic flip; correctness does not depend on it.
		if err := r.MarkExpired(ctx, tok); err != nil {
			slog.Warn("failed to mark lapsed login expired", "token", tok, "err", err)
		}
	}
	return domain.ErrLoginExpired
}

// MarkExpired flips a row to the expired state. Advisory: every read path
// re-checks the deadline itself.
func (r *LoginRepo) MarkExpired(ctx context.Context, tok string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldState:   domain.LoginStateExpired,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token", tok),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// SweepExpired marks all lapsed created rows as expired and returns how many
// were flipped. Periodic cleanup only; reads never trust a stale state.
func (r *LoginRepo) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#st = :created AND expires_at < :now"),
		ExpressionAttributeNames: map[string]string{
			"#st": fieldState,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":created": &types.AttributeValueMemberS{Value: domain.LoginStateCreated},
			":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, item := range out.Items {
		tokAttr, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.MarkExpired(ctx, tokAttr.Value); err != nil {
			slog.Warn("failed to expire login during sweep", "token", tokAttr.Value, "err", err)
			continue
		}
		swept++
	}
	return swept, nil
}

func mergeNames(a, b map[string]string) map[string]string {
	for k, v := range b {
		a[k] = v
	}
	return a
}
