package brkecr

import (
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/stretchr/testify/assert"
)

type mockECRClient struct {
	ecriface.ECRAPI
	output *ecr.GetAuthorizationTokenOutput
}

func (m *mockECRClient) GetAuthorizationToken(*ecr.GetAuthorizationTokenInput) (*ecr.GetAuthorizationTokenOutput, error) {
	return m.output, nil
}

func TestCredentials(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("AWS:secretpassword"))
	client := &Client{Client: &mockECRClient{
		output: &ecr.GetAuthorizationTokenOutput{
			AuthorizationData: []*ecr.AuthorizationData{
				{
					AuthorizationToken: aws.String(token),
					ProxyEndpoint:      aws.String("https://123456.dkr.ecr.us-east-1.amazonaws.com"),
				},
			},
		},
	}}

	creds, err := client.Credentials()
	assert.Nil(t, err)
	assert.Equal(t, "AWS", creds.Username)
	assert.Equal(t, "secretpassword", creds.Password)
	assert.Equal(t, "https://123456.dkr.ecr.us-east-1.amazonaws.com", creds.Endpoint)
	assert.Equal(t, "123456.dkr.ecr.us-east-1.amazonaws.com", creds.Registry())
}

func TestCredentialsNoAuthorizationData(t *testing.T) {
	client := &Client{Client: &mockECRClient{
		output: &ecr.GetAuthorizationTokenOutput{},
	}}

	_, err := client.Credentials()
	assert.NotNil(t, err)
}

func TestRepoURI(t *testing.T) {
	uri := RepoURI("123456.dkr.ecr.us-east-1.amazonaws.com", "braket-job-images", "d1-1")
	assert.Equal(t, "123456.dkr.ecr.us-east-1.amazonaws.com/braket-job-images:d1-1", uri)
}
