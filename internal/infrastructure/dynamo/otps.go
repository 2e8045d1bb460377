package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shutterbook/studio-api/internal/domain"
)

// OTPRepo keeps one code item per user: the table's hash key is user_id,
// so writing a new code replaces whatever the user held before.
type OTPRepo struct {
	client    api
	tableName string
}

func NewOTPRepo(client api, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// otpItem is the stored form. Expiry is kept in milliseconds for the redeem
// condition and in seconds for DynamoDB's TTL reaper.
type otpItem struct {
	UserID      int64  `dynamodbav:"user_id"`
	ID          string `dynamodbav:"id"`
	Code        string `dynamodbav:"code"`
	ExpiresAtMs int64  `dynamodbav:"expires_at_ms"`
	TTL         int64  `dynamodbav:"ttl"`
	IsUsed      bool   `dynamodbav:"is_used"`
	CreatedAtMs int64  `dynamodbav:"created_at_ms"`
}

func toItem(c *domain.OneTimeCode) otpItem {
	return otpItem{
		UserID:      c.UserID,
		ID:          c.ID,
		Code:        c.Code,
		ExpiresAtMs: c.ExpiresAt.UnixMilli(),
		TTL:         c.ExpiresAt.Unix(),
		IsUsed:      c.IsUsed,
		CreatedAtMs: c.CreatedAt.UnixMilli(),
	}
}

func (it otpItem) toDomain() *domain.OneTimeCode {
	return &domain.OneTimeCode{
		ID:        it.ID,
		UserID:    it.UserID,
		Code:      it.Code,
		ExpiresAt: time.UnixMilli(it.ExpiresAtMs).UTC(),
		IsUsed:    it.IsUsed,
		CreatedAt: time.UnixMilli(it.CreatedAtMs).UTC(),
	}
}

// Replace writes c as the user's only code.
func (r *OTPRepo) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	item, err := attributevalue.MarshalMap(toItem(c))
	if err != nil {
		return fmt.Errorf("marshal one-time code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRepo) GetByUser(ctx context.Context, userID int64) (*domain.OneTimeCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            numKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("one-time code: %w", domain.ErrNotFound)
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return it.toDomain(), nil
}

// Consume marks the user's code used if it matches and is still live at now.
// The check and the write are one conditional update, so only one caller can win.
func (r *OTPRepo) Consume(ctx context.Context, userID int64, code string, now time.Time) (*domain.OneTimeCode, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 numKey(attrUserID, userID),
		UpdateExpression:    aws.String("SET #used = :t"),
		ConditionExpression: aws.String("#code = :code AND #used = :f AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{
			"#used": attrIsUsed,
			"#code": attrCode,
			"#exp":  attrExpiresAtMs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":    &types.AttributeValueMemberBOOL{Value: true},
			":f":    &types.AttributeValueMemberBOOL{Value: false},
			":code": &types.AttributeValueMemberS{Value: code},
			":now":  numValue(now.UnixMilli()),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("one-time code: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, err
	}
	return it.toDomain(), nil
}

// DeleteUsed removes the user's code only if it has been consumed.
func (r *OTPRepo) DeleteUsed(ctx context.Context, userID int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey(attrUserID, userID),
		ConditionExpression:       aws.String("#used = :t"),
		ExpressionAttributeNames:  map[string]string{"#used": attrIsUsed},
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": &types.AttributeValueMemberBOOL{Value: true}},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}

func (r *OTPRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey(attrUserID, userID),
	})
	return err
}

// DeleteExpired scans for codes past their expiry and deletes each one, re-checking
// the expiry on delete so a code issued during the scan survives.
func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := numValue(now.UnixMilli())
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("#exp < :now"),
		ProjectionExpression:      aws.String("#uid"),
		ExpressionAttributeNames:  map[string]string{"#exp": attrExpiresAtMs, "#uid": attrUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": cutoff},
	})
	var deleted int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scan expired codes: %w", err)
		}
		for _, key := range page.Items {
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(r.tableName),
				Key:                       key,
				ConditionExpression:       aws.String("#exp < :now"),
				ExpressionAttributeNames:  map[string]string{"#exp": attrExpiresAtMs},
				ExpressionAttributeValues: map[string]types.AttributeValue{":now": cutoff},
			})
			if isConditionFailed(err) {
				continue
			}
			if err != nil {
				return deleted, fmt.Errorf("delete expired code: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}
