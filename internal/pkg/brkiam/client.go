// Package brkiam resolves the caller's account identity via STS.
package brkiam

import (
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	log "github.com/sirupsen/logrus"
)

// Client wraps the STS API.
type Client struct {
	Client stsiface.STSAPI
}

// New initializes a new Client on the given session.
func New(p client.ConfigProvider) *Client {
	return &Client{
		Client: sts.New(p),
	}
}

// Account returns the caller's account identifier. An identity response
// without a usable account id is an error; nothing may be submitted on
// behalf of an unresolved caller.
func (c *Client) Account() (string, error) {
	out, err := c.Client.GetCallerIdentity(&sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}

	account := aws.StringValue(out.Account)
	if account == "" {
		log.Warnf("Caller identity carries no account: %+v", out)
		return "", errors.New("caller identity carries no account")
	}
	return account, nil
}
