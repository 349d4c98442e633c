package lambda

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// FunctionApi is the subset of the Lambda client the publisher needs.
type FunctionApi interface {
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
}

type ServiceWrapper struct {
	Client FunctionApi
	// WaitActive makes Publish block until the function leaves Pending.
	WaitActive    bool
	ActiveTimeout time.Duration
	// ActiveDelay overrides the waiter's first polling delay.
	ActiveDelay time.Duration
}

const DefaultActiveTimeout = 5 * time.Minute
