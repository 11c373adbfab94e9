package testing

import (
	"net"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/guregu/dynamo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/dynamo"
)

const (
	RunsTable = "KaraokeRuns"
)

type run struct {
	ID string `dynamo:"id,hash"`
}

func MakeTestDB(testRegion string) dynamolib.DynamoDBWrapper {
	dbSession := session.Must(session.NewSession())

	config := aws.NewConfig().
		WithCredentials(credentials.NewStaticCredentials(DynamoAccessKeyID, DynamoSecretAccessKey, "")).
		WithEndpoint(DynamoDBHost).
		WithRegion(testRegion)

	db := dynamo.New(dbSession, config)
	return dynamolib.NewDynamoDBWrapper(db)
}

func LocalDBAvailable() bool {
	host := ExpectSuccess(url.Parse(DynamoDBHost)).Host

	conn, err := net.DialTimeout("tcp", host, time.Second)
	if err != nil {
		return false
	}

	_ = conn.Close()
	return true
}

// SkipWithoutLocalDB skips the current node when DynamoDB local isn't listening
func SkipWithoutLocalDB() {
	if !LocalDBAvailable() {
		Skip("DynamoDB local is not running at " + DynamoDBHost)
	}
}

func ResetDB(db dynamolib.DynamoDBWrapper) {
	DeleteAllTables(db)
	CreateAllTables(db)
}

func BeforeSuiteDB(testRegion string) dynamolib.DynamoDBWrapper {
	db := MakeTestDB(testRegion)
	DeleteAllTables(db)
	return db
}

func AfterSuiteDB(db dynamolib.DynamoDBWrapper) {
	DeleteAllTables(db)
}

func CreateAllTables(db dynamolib.DynamoDBWrapper) {
	err := db.CreateTable(RunsTable, run{}).Run()
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
}

func DeleteAllTables(db dynamolib.DynamoDBWrapper) {
	tableResults := db.ListTables()
	tableNames := ExpectSuccess(tableResults.All())

	for _, tableName := range tableNames {
		err := db.Table(tableName).DeleteTable().Run()
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
	}
}
