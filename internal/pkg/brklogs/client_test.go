package brklogs

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"
	"github.com/stretchr/testify/assert"
)

type mockLogsClient struct {
	cloudwatchlogsiface.CloudWatchLogsAPI
	streams []*cloudwatchlogs.LogStream
	events  []*cloudwatchlogs.OutputLogEvent
}

func (m *mockLogsClient) DescribeLogStreams(*cloudwatchlogs.DescribeLogStreamsInput) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	return &cloudwatchlogs.DescribeLogStreamsOutput{LogStreams: m.streams}, nil
}

func (m *mockLogsClient) GetLogEvents(*cloudwatchlogs.GetLogEventsInput) (*cloudwatchlogs.GetLogEventsOutput, error) {
	return &cloudwatchlogs.GetLogEventsOutput{Events: m.events}, nil
}

func stream(name string, created int64) *cloudwatchlogs.LogStream {
	return &cloudwatchlogs.LogStream{
		LogStreamName: aws.String(name),
		CreationTime:  aws.Int64(created),
	}
}

func TestStreamByPrefixPicksNewest(t *testing.T) {
	client := &Client{Client: &mockLogsClient{
		streams: []*cloudwatchlogs.LogStream{
			stream("prefix/old", 100),
			stream("prefix/newest", 300),
			stream("prefix/newer", 200),
		},
	}}

	name, err := client.StreamByPrefix("/aws/braket/jobs", "prefix")
	assert.Nil(t, err)
	assert.Equal(t, "prefix/newest", name)
}

func TestStreamByPrefixTieBreaksByName(t *testing.T) {
	client := &Client{Client: &mockLogsClient{
		streams: []*cloudwatchlogs.LogStream{
			stream("prefix/a", 100),
			stream("prefix/b", 100),
		},
	}}

	name, err := client.StreamByPrefix("/aws/braket/jobs", "prefix")
	assert.Nil(t, err)
	assert.Equal(t, "prefix/b", name)
}

func TestStreamByPrefixNoMatch(t *testing.T) {
	client := &Client{Client: &mockLogsClient{}}

	name, err := client.StreamByPrefix("/aws/braket/jobs", "prefix")
	assert.Nil(t, err)
	assert.Equal(t, "", name)
}

func TestEventsPreserveOrder(t *testing.T) {
	client := &Client{Client: &mockLogsClient{
		events: []*cloudwatchlogs.OutputLogEvent{
			{Message: aws.String("a"), Timestamp: aws.Int64(1)},
			{Message: aws.String("b"), Timestamp: aws.Int64(2)},
		},
	}}

	logs, err := client.Events("/aws/braket/jobs", "prefix/stream")
	assert.Nil(t, err)
	assert.Equal(t, "a\nb\n", logs)
}

func TestEventsEmptyStream(t *testing.T) {
	client := &Client{Client: &mockLogsClient{}}

	logs, err := client.Events("/aws/braket/jobs", "prefix/stream")
	assert.Nil(t, err)
	assert.Equal(t, "", logs)
}
