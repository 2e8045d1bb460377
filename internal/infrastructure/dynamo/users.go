package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shutterbook/studio-api/internal/config"
	"github.com/shutterbook/studio-api/internal/domain"
)

// UserRepo stores users keyed by numeric id. Email and username uniqueness is held by
// guard items in the user_keys table, written in the same transaction as the user.
type UserRepo struct {
	client   api
	users    string
	keys     string
	counters string
}

func NewUserRepo(client api, tables config.DynamoTables) *UserRepo {
	return &UserRepo{client: client, users: tables.Users, keys: tables.UserKeys, counters: tables.Counters}
}

type keyItem struct {
	Key    string `dynamodbav:"key"`
	UserID int64  `dynamodbav:"user_id"`
}

// Create assigns u.ID from the counter and writes the user with both guards.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	u.ID = id
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.users),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			r.putGuard(emailKey(u.Email), id),
			r.putGuard(usernameKey(u.Username), id),
		},
	})
	if isTransactionCanceled(err) {
		return fmt.Errorf("email or username taken: %w", domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.users),
		Key:            numKey(attrUserID, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getByGuard(ctx, emailKey(email))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getByGuard(ctx, usernameKey(username))
}

// Update applies upd and moves the guards of every changed field in one transaction,
// so a collision leaves the user and both guards untouched.
func (r *UserRepo) Update(ctx context.Context, id int64, upd domain.UserUpdate, at time.Time) error {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	fields := map[string]interface{}{attrUpdatedAt: at}
	var guards []types.TransactWriteItem
	if upd.Email != nil && *upd.Email != cur.Email {
		fields[attrEmail] = *upd.Email
		guards = append(guards, r.deleteGuard(emailKey(cur.Email), id), r.putGuard(emailKey(*upd.Email), id))
	}
	if upd.Username != nil && *upd.Username != cur.Username {
		fields[attrUsername] = *upd.Username
		guards = append(guards, r.deleteGuard(usernameKey(cur.Username), id), r.putGuard(usernameKey(*upd.Username), id))
	}
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return err
	}
	ue.Values[":id"] = numValue(id)
	items := append([]types.TransactWriteItem{{Update: &types.Update{
		TableName:                 aws.String(r.users),
		Key:                       numKey(attrUserID, id),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("user_id = :id"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}}}, guards...)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if isTransactionCanceled(err) {
		return fmt.Errorf("email or username taken: %w", domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{attrIsActive: active, attrUpdatedAt: at})
	if err != nil {
		return err
	}
	ue.Values[":id"] = numValue(id)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.users),
		Key:                       numKey(attrUserID, id),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("user_id = :id"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return err
}

func (r *UserRepo) nextID(ctx context.Context) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.counters),
		Key:                       strKey(attrName, userIDCounter),
		UpdateExpression:          aws.String("ADD #v :one"),
		ExpressionAttributeNames:  map[string]string{"#v": attrValue},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": numValue(1)},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("allocate user id: %w", err)
	}
	n, ok := out.Attributes[attrValue].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("allocate user id: counter has no value")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func (r *UserRepo) getByGuard(ctx context.Context, key string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.keys),
		Key:            strKey(attrKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	var k keyItem
	if err := attributevalue.UnmarshalMap(out.Item, &k); err != nil {
		return nil, err
	}
	return r.Get(ctx, k.UserID)
}

func (r *UserRepo) putGuard(key string, id int64) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.keys),
		Item: map[string]types.AttributeValue{
			attrKey:    &types.AttributeValueMemberS{Value: key},
			attrUserID: numValue(id),
		},
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey},
	}}
}

func (r *UserRepo) deleteGuard(key string, id int64) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName:                 aws.String(r.keys),
		Key:                       strKey(attrKey, key),
		ConditionExpression:       aws.String("user_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": numValue(id)},
	}}
}
