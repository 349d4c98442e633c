package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

type fakeIAM struct {
	mu          sync.Mutex
	roles       map[string]string
	attached    map[string]int
	createCalls int
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{roles: map[string]string{}, attached: map[string]int{}}
}

func (f *fakeIAM) CreateRole(ctx context.Context, input *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	name := aws.ToString(input.RoleName)
	if _, ok := f.roles[name]; ok {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("exists")}
	}
	f.roles[name] = "arn:aws:iam::123456789012:role/" + name
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{Arn: aws.String(f.roles[name]), RoleName: input.RoleName}}, nil
}

func (f *fakeIAM) GetRole(ctx context.Context, input *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	arn, ok := f.roles[aws.ToString(input.RoleName)]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("not found")}
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{Arn: aws.String(arn), RoleName: input.RoleName}}, nil
}

func (f *fakeIAM) AttachRolePolicy(ctx context.Context, input *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached[aws.ToString(input.RoleName)]++
	return &iam.AttachRolePolicyOutput{}, nil
}

type fakeLambda struct {
	mu          sync.Mutex
	functions   map[string]string
	createCalls int
}

func newFakeLambda() *fakeLambda {
	return &fakeLambda{functions: map[string]string{}}
}

func (f *fakeLambda) CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	name := aws.ToString(params.FunctionName)
	if _, ok := f.functions[name]; ok {
		return nil, &lambdatypes.ResourceConflictException{Message: aws.String("Function already exist: " + name)}
	}
	arn := "arn:aws:lambda:us-east-1:123456789012:function:" + name
	f.functions[name] = arn
	sum := sha256.Sum256(params.Code.ZipFile)
	return &lambda.CreateFunctionOutput{
		FunctionArn: aws.String(arn),
		CodeSha256:  aws.String(base64.StdEncoding.EncodeToString(sum[:])),
		State:       lambdatypes.StateActive,
	}, nil
}

func (f *fakeLambda) GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error) {
	return &lambda.GetFunctionConfigurationOutput{FunctionArn: params.FunctionName, State: lambdatypes.StateActive}, nil
}
