package iam

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// BasicExecutionPolicyArn is the managed policy attached to roles this
// package creates.
const BasicExecutionPolicyArn = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

// Api is the subset of the IAM client the provisioner needs.
type Api interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

type ServiceWrapper struct {
	Client Api
	Wait   WaitOptions
}

// WaitOptions bounds the wait for a role to become visible after creation.
type WaitOptions struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

var DefaultWaitOptions = WaitOptions{
	MaxAttempts: 20,
	MinDelay:    time.Second,
	MaxDelay:    10 * time.Second,
	Timeout:     2 * time.Minute,
}

// RoleRef identifies the execution role a function runs as. Created is false
// when an existing role was reused.
type RoleRef struct {
	Name    string
	Arn     string
	Created bool
}

type PolicyDocument struct {
	Version   string
	Statement []PolicyStatement
}

// PolicyStatement defines a statement in a policy document.
type PolicyStatement struct {
	Effect    string
	Action    []string
	Principal map[string]string `json:",omitempty"`
	Resource  *string           `json:",omitempty"`
}

// LambdaTrustPolicy lets the Lambda service assume the role.
func LambdaTrustPolicy() PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []PolicyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "lambda.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// CreateOutcome tells a fresh role apart from a name collision.
type CreateOutcome int

const (
	RoleCreated CreateOutcome = iota
	RoleConflict
)
