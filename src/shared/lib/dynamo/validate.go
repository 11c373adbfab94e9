package dynamolib

import (
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/cockroachdb/errors"
)

var InvalidField = errors.New("invalid dynamo field")

func ValidateStringField(item map[string]*dynamodb.AttributeValue, key string) error {
	value, ok := item[key]
	if !ok || value == nil {
		return errors.Mark(errors.Newf("Field %s is missing", key), InvalidField)
	}

	if value.S == nil || *value.S == "" {
		return errors.Mark(errors.Newf("Field %s is not a non-empty string", key), InvalidField)
	}

	return nil
}
