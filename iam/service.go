package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/rs/zerolog/log"
)

func Client(cfg aws.Config) *iam.Client {
	return iam.NewFromConfig(cfg)
}

// EnsureRole creates roleName with the Lambda trust policy, waits for it and
// attaches the basic execution policy. When the role already exists it is
// reused as is and no policy is attached.
func (wrapper ServiceWrapper) EnsureRole(ctx context.Context, roleName string) (*RoleRef, error) {
	logger := log.Ctx(ctx).With().Str("role", roleName).Logger()

	role, outcome, err := wrapper.NewRole(ctx, roleName, LambdaTrustPolicy())
	if err != nil {
		logger.Error().Err(err).Msg("Couldn't create role")
		return nil, &common.RoleProvisioningError{RoleName: roleName, Op: "create", Err: err}
	}

	if outcome == RoleConflict {
		logger.Warn().Msg("Role already exists. Using it")
		arn, err := wrapper.existingRoleArn(ctx, roleName)
		if err != nil {
			return nil, err
		}
		return &RoleRef{Name: roleName, Arn: arn}, nil
	}

	if err := wrapper.waitForRole(ctx, roleName); err != nil {
		logger.Error().Err(err).Msg("Role did not become available")
		return nil, &common.RoleProvisioningError{RoleName: roleName, Op: "wait", Err: err}
	}
	logger.Info().Str("arn", aws.ToString(role.Arn)).Msg("Created role")

	if err := wrapper.AttachRolePolicy(ctx, BasicExecutionPolicyArn, roleName); err != nil {
		logger.Error().Err(err).Msg("Couldn't attach basic execution policy")
		return nil, &common.RoleProvisioningError{RoleName: roleName, Op: "attach", Err: err}
	}
	logger.Info().Str("policy", BasicExecutionPolicyArn).Msg("Attached basic execution policy")

	return &RoleRef{Name: roleName, Arn: aws.ToString(role.Arn), Created: true}, nil
}

// NewRole issues a single CreateRole call. A name collision is reported as
// RoleConflict with a nil error.
func (wrapper ServiceWrapper) NewRole(ctx context.Context, roleName string, trustPolicy PolicyDocument) (*types.Role, CreateOutcome, error) {
	policyBytes, err := json.Marshal(trustPolicy)
	if err != nil {
		return nil, RoleCreated, fmt.Errorf("encoding trust policy: %w", err)
	}

	result, err := wrapper.Client.CreateRole(ctx, &iam.CreateRoleInput{
		AssumeRolePolicyDocument: aws.String(string(policyBytes)),
		RoleName:                 aws.String(roleName),
	})
	if err != nil {
		var exists *types.EntityAlreadyExistsException
		if errors.As(err, &exists) {
			return nil, RoleConflict, nil
		}
		return nil, RoleCreated, err
	}
	if result.Role == nil || result.Role.Arn == nil {
		return nil, RoleCreated, errors.New("CreateRole returned no role")
	}
	return result.Role, RoleCreated, nil
}

func (wrapper ServiceWrapper) AttachRolePolicy(ctx context.Context, policyArn string, roleName string) error {
	_, err := wrapper.Client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		PolicyArn: aws.String(policyArn),
		RoleName:  aws.String(roleName),
	})
	return err
}

// CheckRoleExists returns the role's ARN, or nil when no such role is
// visible yet.
func (wrapper ServiceWrapper) CheckRoleExists(ctx context.Context, roleName string) (*string, error) {
	result, err := wrapper.Client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		var notFound *types.NoSuchEntityException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	if result.Role == nil || result.Role.Arn == nil {
		return nil, errors.New("GetRole returned no role")
	}
	return result.Role.Arn, nil
}

// existingRoleArn looks up a role another caller created. The creator may
// still be racing IAM's propagation, so a missing role is waited for once.
func (wrapper ServiceWrapper) existingRoleArn(ctx context.Context, roleName string) (string, error) {
	arn, err := wrapper.CheckRoleExists(ctx, roleName)
	if err != nil {
		return "", &common.RoleProvisioningError{RoleName: roleName, Op: "get", Err: err}
	}
	if arn != nil {
		return *arn, nil
	}

	if err := wrapper.waitForRole(ctx, roleName); err != nil {
		return "", &common.RoleProvisioningError{RoleName: roleName, Op: "wait", Err: err}
	}
	arn, err = wrapper.CheckRoleExists(ctx, roleName)
	if err != nil {
		return "", &common.RoleProvisioningError{RoleName: roleName, Op: "get", Err: err}
	}
	if arn == nil {
		return "", &common.RoleProvisioningError{RoleName: roleName, Op: "get", Err: errors.New("role disappeared")}
	}
	return *arn, nil
}

func (wrapper ServiceWrapper) waitForRole(ctx context.Context, roleName string) error {
	opts := wrapper.Wait.normalize()
	attempts := 0

	waiter := iam.NewRoleExistsWaiter(wrapper.Client, func(o *iam.RoleExistsWaiterOptions) {
		o.MinDelay = opts.MinDelay
		o.MaxDelay = opts.MaxDelay
		o.Retryable = func(ctx context.Context, in *iam.GetRoleInput, out *iam.GetRoleOutput, err error) (bool, error) {
			attempts++
			if err == nil {
				return false, nil
			}
			var notFound *types.NoSuchEntityException
			if !errors.As(err, &notFound) {
				return false, err
			}
			if attempts >= opts.MaxAttempts {
				return false, fmt.Errorf("role not visible after %d attempts", attempts)
			}
			log.Ctx(ctx).Debug().Str("role", roleName).Int("attempt", attempts).Msg("Waiting for role")
			return true, nil
		}
	})
	return waiter.Wait(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)}, opts.Timeout)
}

func (o WaitOptions) normalize() WaitOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultWaitOptions.MaxAttempts
	}
	if o.MinDelay <= 0 {
		o.MinDelay = DefaultWaitOptions.MinDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultWaitOptions.MaxDelay
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultWaitOptions.Timeout
	}
	return o
}
