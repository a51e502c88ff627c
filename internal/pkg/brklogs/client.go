// Package brklogs retrieves job log streams from CloudWatch Logs.
package brklogs

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"
	log "github.com/sirupsen/logrus"
)

// Client wraps the CloudWatch Logs API.
type Client struct {
	Client cloudwatchlogsiface.CloudWatchLogsAPI
}

// New initializes a new Client on the given session.
func New(p client.ConfigProvider) *Client {
	return &Client{
		Client: cloudwatchlogs.New(p),
	}
}

// StreamByPrefix returns the name of the log stream matching prefix. When
// several streams match, the most recently created wins, with the name as
// tie-break so the choice is total. Returns "" when none match.
func (c *Client) StreamByPrefix(group, prefix string) (string, error) {
	out, err := c.Client.DescribeLogStreams(&cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(group),
		LogStreamNamePrefix: aws.String(prefix),
	})
	if err != nil {
		return "", err
	}

	var name string
	var created int64 = -1
	for _, stream := range out.LogStreams {
		streamName := aws.StringValue(stream.LogStreamName)
		streamCreated := aws.Int64Value(stream.CreationTime)
		if streamCreated > created || (streamCreated == created && streamName > name) {
			name = streamName
			created = streamCreated
		}
	}

	log.Debugf("Resolved log stream '%s' for prefix '%s'", name, prefix)
	return name, nil
}

// Events fetches all available events of a stream and concatenates their
// messages, one per line, in the order the service returns them.
//
// TODO: follow NextForwardToken; a single call returns at most 10k events.
func (c *Client) Events(group, stream string) (string, error) {
	out, err := c.Client.GetLogEvents(&cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
		StartFromHead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, event := range out.Events {
		sb.WriteString(aws.StringValue(event.Message))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
