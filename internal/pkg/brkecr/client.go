// Package brkecr handles short-lived authentication against the ECR
// container registry.
package brkecr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	log "github.com/sirupsen/logrus"
)

// Client wraps the ECR API.
type Client struct {
	Client ecriface.ECRAPI
}

// New initializes a new Client on the given session.
func New(p client.ConfigProvider) *Client {
	return &Client{
		Client: ecr.New(p),
	}
}

// Credentials is a decoded registry authorization: the username/password
// pair and the registry endpoint they are valid for. Tokens are issued
// short-lived and must be requested per publish.
type Credentials struct {
	Username string
	Password string
	Endpoint string
}

// Registry is the endpoint stripped down to a taggable registry host.
func (c *Credentials) Registry() string {
	return strings.TrimPrefix(c.Endpoint, "https://")
}

// Credentials requests and decodes a registry authorization token.
func (c *Client) Credentials() (*Credentials, error) {
	out, err := c.Client.GetAuthorizationToken(&ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, err
	}
	if len(out.AuthorizationData) == 0 {
		return nil, errors.New("no authorization data returned")
	}

	data := out.AuthorizationData[0]
	decoded, err := base64.StdEncoding.DecodeString(aws.StringValue(data.AuthorizationToken))
	if err != nil {
		return nil, err
	}

	// Tokens decode to "AWS:<password>".
	password := strings.TrimPrefix(string(decoded), "AWS:")
	endpoint := aws.StringValue(data.ProxyEndpoint)
	log.Debugf("Obtained registry token for %s", endpoint)

	return &Credentials{
		Username: "AWS",
		Password: password,
		Endpoint: endpoint,
	}, nil
}

// RepoURI builds the fully-qualified image reference for a repository and
// tag within a registry.
func RepoURI(registry, repo, tag string) string {
	return fmt.Sprintf("%s/%s:%s", registry, repo, tag)
}
