package lambda

import (
	"context"
	"errors"
	"fmt"

	"github.com/a-pavithraa/lambda-publish/artifact"
	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/a-pavithraa/lambda-publish/iam"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

func Client(cfg aws.Config) *lambda.Client {
	return lambda.NewFromConfig(cfg)
}

// Publish creates the function with a single CreateFunction call and returns
// its ARN. An existing function with the same name is an error; there is no
// update path.
func (wrapper ServiceWrapper) Publish(ctx context.Context, role iam.RoleRef, art *artifact.Artifact, lambdaParams common.DeployParams) (string, error) {
	logger := log.Ctx(ctx).With().Str("function", lambdaParams.FunctionName).Logger()

	if art == nil || len(art.Bytes) == 0 {
		return "", &common.PublishError{FunctionName: lambdaParams.FunctionName, Err: errors.New("empty deployment artifact")}
	}

	output, err := wrapper.Client.CreateFunction(ctx, NewCreateFunctionInput(role, art, lambdaParams))
	if err != nil {
		logger.Error().Err(err).Msg("Couldn't create function")
		return "", &common.PublishError{FunctionName: lambdaParams.FunctionName, Err: describeError(err)}
	}

	functionArn := aws.ToString(output.FunctionArn)
	if functionArn == "" {
		return "", &common.PublishError{FunctionName: lambdaParams.FunctionName, Err: errors.New("CreateFunction returned no function ARN")}
	}
	if sha := aws.ToString(output.CodeSha256); sha != "" && sha != art.CodeSha256 {
		return "", &common.PublishError{
			FunctionName: lambdaParams.FunctionName,
			Err:          fmt.Errorf("uploaded code hash %s does not match artifact hash %s", sha, art.CodeSha256),
		}
	}
	logger.Info().
		Str("arn", functionArn).
		Str("version", aws.ToString(output.Version)).
		Msg("Created function")

	if wrapper.WaitActive {
		if err := wrapper.waitForActive(ctx, functionArn); err != nil {
			logger.Error().Err(err).Msg("Function did not become active")
			return "", &common.PublishError{FunctionName: lambdaParams.FunctionName, Err: err}
		}
		logger.Info().Msg("Function is active")
	}

	return functionArn, nil
}

func NewCreateFunctionInput(role iam.RoleRef, art *artifact.Artifact, lambdaParams common.DeployParams) *lambda.CreateFunctionInput {
	functionInput := &lambda.CreateFunctionInput{
		FunctionName: aws.String(lambdaParams.FunctionName),
		Role:         aws.String(role.Arn),
		Runtime:      types.Runtime(lambdaParams.Runtime),
		Handler:      aws.String(lambdaParams.HandlerName),
		Code:         &types.FunctionCode{ZipFile: art.Bytes},
		Publish:      lambdaParams.Publish,
		Tags:         lambdaParams.CopyTags(),
	}
	if !common.TrimAndCheckEmptyString(&lambdaParams.Description) {
		functionInput.Description = aws.String(lambdaParams.Description)
	}
	if lambdaParams.Memory > 0 {
		functionInput.MemorySize = aws.Int32(int32(lambdaParams.Memory))
	}
	if lambdaParams.Timeout > 0 {
		functionInput.Timeout = aws.Int32(int32(lambdaParams.Timeout))
	}
	return functionInput
}

func (wrapper ServiceWrapper) waitForActive(ctx context.Context, functionArn string) error {
	timeout := wrapper.ActiveTimeout
	if timeout <= 0 {
		timeout = DefaultActiveTimeout
	}
	waiter := lambda.NewFunctionActiveWaiter(wrapper.Client, func(o *lambda.FunctionActiveWaiterOptions) {
		if wrapper.ActiveDelay > 0 {
			o.MinDelay = wrapper.ActiveDelay
			o.MaxDelay = 8 * wrapper.ActiveDelay
		}
		o.Retryable = func(ctx context.Context, in *lambda.GetFunctionConfigurationInput, out *lambda.GetFunctionConfigurationOutput, err error) (bool, error) {
			if err != nil {
				return false, err
			}
			switch out.State {
			case types.StateActive:
				return false, nil
			case types.StateFailed:
				return false, fmt.Errorf("function state is Failed: %s", aws.ToString(out.StateReason))
			}
			return true, nil
		}
	})
	return waiter.Wait(ctx, &lambda.GetFunctionConfigurationInput{FunctionName: aws.String(functionArn)}, timeout)
}

// describeError keeps the service error but makes name collisions explicit.
func describeError(err error) error {
	var conflict *types.ResourceConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("function already exists: %w", err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return err
}
